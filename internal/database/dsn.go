package database

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/edgard/chatlogger/internal/errors"
)

// Dialect is the storage backend family selected by the URL scheme.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQL driver names registered by modernc.org/sqlite and pgx/v5/stdlib.
const (
	sqliteDriver   = "sqlite"
	postgresDriver = "pgx"
)

// sqlitePragmas are appended to every SQLite DSN. WAL plus a busy timeout let
// several pools share one file; the time format keeps DATETIME columns
// readable by sqlite itself.
var sqlitePragmas = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_time_format=sqlite",
}

// Conn is a parsed connection URL.
type Conn struct {
	Dialect Dialect
	Driver  string
	DSN     string
}

// ParseURL maps a connection URL onto a driver and DSN.
//
// SQLite URLs follow the SQLAlchemy convention: sqlite:///relative.db,
// sqlite:////absolute/path.db and sqlite://:memory:. A "+driver" suffix on
// the scheme is accepted and ignored.
func ParseURL(raw string) (Conn, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Conn{}, apperrors.NewConfigError("database url is empty", nil)
	}

	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok || scheme == "" {
		return Conn{}, apperrors.NewConfigError(fmt.Sprintf("database url %q has no scheme", raw), nil)
	}
	family, _, _ := strings.Cut(strings.ToLower(scheme), "+")

	switch family {
	case "sqlite", "sqlite3", "file":
		return parseSQLite(raw, rest)
	case "postgres", "postgresql":
		return parsePostgres(raw, rest)
	default:
		return Conn{}, apperrors.NewConfigError(fmt.Sprintf("unsupported database scheme %q", scheme), nil)
	}
}

func parseSQLite(raw, rest string) (Conn, error) {
	rest, query, _ := strings.Cut(rest, "?")

	var path string
	if after, ok := strings.CutPrefix(rest, "//"); ok {
		// sqlite:///rel.db leaves "/rel.db", sqlite:////abs.db leaves "//abs.db".
		path = strings.TrimPrefix(after, "/")
	} else {
		path = rest
	}

	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}
	if path == "" {
		return Conn{}, apperrors.NewConfigError(fmt.Sprintf("database url %q has no path", raw), nil)
	}

	params := make([]string, 0, len(sqlitePragmas)+1)
	if query != "" {
		params = append(params, query)
	}
	params = append(params, sqlitePragmas...)

	return Conn{
		Dialect: DialectSQLite,
		Driver:  sqliteDriver,
		DSN:     path + "?" + strings.Join(params, "&"),
	}, nil
}

func parsePostgres(raw, rest string) (Conn, error) {
	u, err := url.Parse("postgres:" + rest)
	if err != nil {
		return Conn{}, apperrors.NewConfigError(fmt.Sprintf("invalid database url %q", raw), err)
	}
	if u.Host == "" && u.Query().Get("host") == "" {
		return Conn{}, apperrors.NewConfigError(fmt.Sprintf("database url %q has no host", raw), nil)
	}
	return Conn{
		Dialect: DialectPostgres,
		Driver:  postgresDriver,
		DSN:     u.String(),
	}, nil
}

// IsMemory reports whether the connection targets an in-memory SQLite database.
func (c Conn) IsMemory() bool {
	return c.Dialect == DialectSQLite && strings.HasPrefix(c.DSN, ":memory:")
}
