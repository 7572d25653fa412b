package database

import (
	"strings"
	"testing"

	apperrors "github.com/edgard/chatlogger/internal/errors"
)

func TestParseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		url       string
		dialect   Dialect
		dsnPrefix string
	}{
		{name: "relative sqlite", url: "sqlite:///./chat_logs.db", dialect: DialectSQLite, dsnPrefix: "./chat_logs.db?"},
		{name: "relative sqlite bare", url: "sqlite:///chat.db", dialect: DialectSQLite, dsnPrefix: "chat.db?"},
		{name: "absolute sqlite", url: "sqlite:////var/lib/chat.db", dialect: DialectSQLite, dsnPrefix: "/var/lib/chat.db?"},
		{name: "memory", url: "sqlite://:memory:", dialect: DialectSQLite, dsnPrefix: ":memory:?"},
		{name: "driver suffix", url: "sqlite+aiosqlite:///chat.db", dialect: DialectSQLite, dsnPrefix: "chat.db?"},
		{name: "sqlite3 scheme", url: "sqlite3:///chat.db", dialect: DialectSQLite, dsnPrefix: "chat.db?"},
		{name: "file scheme", url: "file:chat.db", dialect: DialectSQLite, dsnPrefix: "chat.db?"},
		{name: "extra query kept", url: "sqlite:///chat.db?mode=rwc", dialect: DialectSQLite, dsnPrefix: "chat.db?mode=rwc&"},
		{name: "postgres", url: "postgres://bot:pw@db:5432/chat", dialect: DialectPostgres, dsnPrefix: "postgres://bot:pw@db:5432/chat"},
		{name: "postgresql", url: "postgresql://db/chat?sslmode=disable", dialect: DialectPostgres, dsnPrefix: "postgres://db/chat?sslmode=disable"},
		{name: "postgres driver suffix", url: "postgresql+asyncpg://db/chat", dialect: DialectPostgres, dsnPrefix: "postgres://db/chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			conn, err := ParseURL(tt.url)
			if err != nil {
				t.Fatalf("ParseURL(%q) error: %v", tt.url, err)
			}
			if conn.Dialect != tt.dialect {
				t.Errorf("dialect = %q, want %q", conn.Dialect, tt.dialect)
			}
			if !strings.HasPrefix(conn.DSN, tt.dsnPrefix) {
				t.Errorf("dsn = %q, want prefix %q", conn.DSN, tt.dsnPrefix)
			}
			if tt.dialect == DialectSQLite {
				if conn.Driver != sqliteDriver {
					t.Errorf("driver = %q, want %q", conn.Driver, sqliteDriver)
				}
				for _, p := range sqlitePragmas {
					if !strings.Contains(conn.DSN, p) {
						t.Errorf("dsn %q missing %q", conn.DSN, p)
					}
				}
			}
		})
	}
}

func TestParseURLErrors(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "mysql://db/chat", "no-scheme", "sqlite://", "sqlite:///", "postgres:///chat"} {
		_, err := ParseURL(raw)
		if err == nil {
			t.Errorf("ParseURL(%q) expected error", raw)
			continue
		}
		if !apperrors.IsFatal(err) {
			t.Errorf("ParseURL(%q) error %v is not fatal", raw, err)
		}
		if code := apperrors.Code(err); code != apperrors.CodeConfig {
			t.Errorf("ParseURL(%q) code = %s, want %s", raw, code, apperrors.CodeConfig)
		}
	}
}

func TestConnIsMemory(t *testing.T) {
	t.Parallel()

	mem, _ := ParseURL("sqlite://:memory:")
	file, _ := ParseURL("sqlite:///chat.db")
	if !mem.IsMemory() {
		t.Error("memory url not reported as memory")
	}
	if file.IsMemory() {
		t.Error("file url reported as memory")
	}
}
