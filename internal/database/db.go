// Package database provides the persistence gateway for chat records: connection
// setup, schema migrations and the transactional write path.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" //revive:disable:blank-imports
	"github.com/jmoiron/sqlx"

	"github.com/edgard/chatlogger/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// PoolConfig tunes the connection pool of non-SQLite backends.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// migrateMu serializes schema bring-up within the process so that several
// gateways pointed at the same database never race on the version table.
var migrateMu sync.Mutex

// openDB connects to the database described by conn and applies the pool settings.
func openDB(conn Conn, pool PoolConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(conn.Driver, conn.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if conn.Dialect == DialectSQLite {
		// SQLite doesn't support concurrent writes, so max open conns = 1.
		// The connection is never recycled, an in-memory database lives in it.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(pool.MaxOpenConns)
		db.SetMaxIdleConns(pool.MaxIdleConns)
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// applyMigrations brings the schema up to date using the embedded migration
// set of the connection's dialect. An already current schema is success.
func applyMigrations(db *sqlx.DB, conn Conn, logger *slog.Logger) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	logger.Info("Applying database migrations...", "dialect", conn.Dialect)

	dir := migrations.SQLiteDir
	if conn.Dialect == DialectPostgres {
		dir = migrations.PostgresDir
	}
	sourceDriver, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	dbDriver, cleanup, err := migrationDriver(db, conn)
	if err != nil {
		_ = sourceDriver.Close()
		return err
	}
	defer cleanup()

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, string(conn.Dialect), dbDriver)
	if err != nil {
		_ = sourceDriver.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// migrator.Close would close the shared SQLite pool, so only the source is released.
	defer func() { _ = sourceDriver.Close() }()

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("Database migrations applied successfully.")
	return nil
}

// migrationDriver returns the golang-migrate database driver for conn. SQLite
// migrates through the gateway's own single connection. PostgreSQL gets a
// short-lived pool because the driver pins a connection for its advisory lock.
func migrationDriver(db *sqlx.DB, conn Conn) (migratedb.Driver, func(), error) {
	switch conn.Dialect {
	case DialectSQLite:
		drv, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create sqlite migration driver: %w", err)
		}
		return drv, func() {}, nil
	case DialectPostgres:
		migDB, err := sql.Open(conn.Driver, conn.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open migration connection: %w", err)
		}
		drv, err := migratepgx.WithInstance(migDB, &migratepgx.Config{})
		if err != nil {
			_ = migDB.Close()
			return nil, nil, fmt.Errorf("failed to create postgres migration driver: %w", err)
		}
		return drv, func() {
			_ = drv.Close()
			_ = migDB.Close()
		}, nil
	default:
		return nil, nil, fmt.Errorf("no migration driver for dialect %q", conn.Dialect)
	}
}
