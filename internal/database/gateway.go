package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/edgard/chatlogger/internal/errors"
	"github.com/edgard/chatlogger/internal/logger"
	"github.com/edgard/chatlogger/internal/metrics"
)

// State is the lifecycle position of a Gateway.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateShutDown:
		return "shut_down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const insertRecordSQL = `
	INSERT INTO chat_records (user_id, nickname, message, "timestamp", group_id, is_bot_message)
	VALUES (:user_id, :nickname, :message, :timestamp, :group_id, :is_bot_message)
	RETURNING id`

const selectRecordSQL = `
	SELECT id, user_id, nickname, message, "timestamp", group_id, is_bot_message
	FROM chat_records
	WHERE id = ?`

// Config describes the storage a Gateway connects to.
type Config struct {
	URL  string
	Name string
	Pool PoolConfig
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithClock overrides the time source used for default timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// Gateway owns the connection pool and the schema and performs one
// transactional insert per chat record.
//
// Lifecycle: Uninitialized -> Ready -> ShutDown. Writes are only accepted in
// Ready. A Gateway is safe for concurrent use.
type Gateway struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	state    State
	conn     Conn
	db       *sqlx.DB
	inflight sync.WaitGroup
	active   atomic.Int64
}

// NewGateway returns an uninitialized gateway for cfg. No connection is made
// until Initialize.
func NewGateway(cfg Config, opts ...Option) *Gateway {
	g := &Gateway{
		cfg:    cfg,
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "gateway", "database", cfg.Name)
	return g
}

// Name returns the configured database label.
func (g *Gateway) Name() string {
	return g.cfg.Name
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Initialize connects to storage and brings the schema up to date. It is a
// no-op when the gateway is already Ready. Failures are *errors.FatalError
// and leave the gateway Uninitialized.
func (g *Gateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StateReady:
		return nil
	case StateShutDown:
		return apperrors.NewFatalError("cannot initialize gateway", apperrors.ErrGatewayClosed)
	}

	if err := ctx.Err(); err != nil {
		return apperrors.NewFatalError("gateway initialization cancelled", err)
	}

	conn, err := ParseURL(g.cfg.URL)
	if err != nil {
		return err
	}

	db, err := openDB(conn, g.cfg.Pool)
	if err != nil {
		g.logger.ErrorContext(ctx, "Database connection failed", "dialect", conn.Dialect, "error", err)
		return apperrors.NewFatalError("database connection failed", err)
	}

	if err := applyMigrations(db, conn, g.logger); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			g.logger.ErrorContext(ctx, "Error closing database after migration failure", "error", closeErr)
		}
		g.logger.ErrorContext(ctx, "Schema bring-up failed", "error", err)
		return apperrors.NewFatalError("schema bring-up failed", err)
	}

	if conn.IsMemory() {
		g.logger.WarnContext(ctx, "Using in-memory database, records are lost on shutdown")
	}

	g.conn = conn
	g.db = db
	g.state = StateReady
	g.logger.InfoContext(ctx, "Database connected and schema ready", "dialect", conn.Dialect)
	return nil
}

// acquire registers an in-flight operation if the gateway is Ready.
func (g *Gateway) acquire() (*sqlx.DB, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StateReady:
		g.inflight.Add(1)
		g.active.Add(1)
		g.metrics.AddInflight(1)
		return g.db, nil
	case StateShutDown:
		return nil, apperrors.ErrGatewayClosed
	default:
		return nil, apperrors.ErrGatewayNotReady
	}
}

func (g *Gateway) release() {
	g.metrics.AddInflight(-1)
	g.active.Add(-1)
	g.inflight.Done()
}

// Write persists rec in its own transaction and sets rec.ID on success.
// A zero Timestamp is replaced with the current UTC time. Every failure is
// logged here and returned as *errors.WriteError.
func (g *Gateway) Write(ctx context.Context, rec *ChatRecord) error {
	if rec == nil {
		return g.fail(ctx, apperrors.NewValidationError("", "", "cannot write nil record"))
	}
	if rec.GroupID == "" {
		return g.fail(ctx, apperrors.NewValidationError(rec.GroupID, rec.UserID, "record has no group id"))
	}

	db, err := g.acquire()
	if err != nil {
		g.logger.WarnContext(ctx, "Write rejected, gateway not ready",
			"group_id", rec.GroupID, "user_id", rec.UserID, "error", err)
		werr := apperrors.NewWriteError(rec.GroupID, rec.UserID, "write rejected", err)
		g.metrics.IncWriteErrors(apperrors.Code(werr))
		return werr
	}
	defer g.release()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = g.now().UTC()
	}

	start := time.Now()
	id, err := g.insert(ctx, db, rec)
	if err != nil {
		return g.fail(ctx, apperrors.NewWriteError(rec.GroupID, rec.UserID, "failed to save chat record", err))
	}
	rec.ID = id
	g.metrics.ObserveWrite(rec.IsBotMessage, time.Since(start))

	g.logger.DebugContext(ctx, "Chat record saved",
		"record_id", rec.ID, "group_id", rec.GroupID, "user_id", rec.UserID, "is_bot_message", rec.IsBotMessage)
	return nil
}

func (g *Gateway) insert(ctx context.Context, db *sqlx.DB, rec *ChatRecord) (int64, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			g.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	query, args, err := tx.BindNamed(insertRecordSQL, rec)
	if err != nil {
		return 0, fmt.Errorf("failed to bind insert: %w", err)
	}

	var id int64
	if err := tx.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

func (g *Gateway) fail(ctx context.Context, err error) error {
	var werr *apperrors.WriteError
	if errors.As(err, &werr) {
		g.logger.ErrorContext(ctx, "Failed to write chat record",
			"group_id", werr.GroupID, "user_id", werr.UserID, "code", werr.Code(), "error", err)
	} else {
		g.logger.ErrorContext(ctx, "Failed to write chat record", "error", err)
	}
	g.metrics.IncWriteErrors(apperrors.Code(err))
	return err
}

// Record loads a single record by primary key.
func (g *Gateway) Record(ctx context.Context, id int64) (*ChatRecord, error) {
	db, err := g.acquire()
	if err != nil {
		return nil, err
	}
	defer g.release()

	var rec ChatRecord
	if err := db.GetContext(ctx, &rec, db.Rebind(selectRecordSQL), id); err != nil {
		return nil, fmt.Errorf("failed to load chat record %d: %w", id, err)
	}
	return &rec, nil
}

// Ping checks the database connection.
func (g *Gateway) Ping(ctx context.Context) error {
	db, err := g.acquire()
	if err != nil {
		return err
	}
	defer g.release()
	return db.PingContext(ctx)
}

// RunMaintenance refreshes planner statistics: PRAGMA optimize on SQLite,
// ANALYZE on PostgreSQL.
func (g *Gateway) RunMaintenance(ctx context.Context) error {
	db, err := g.acquire()
	if err != nil {
		return err
	}
	defer g.release()

	stmt := "PRAGMA optimize"
	if g.conn.Dialect == DialectPostgres {
		stmt = "ANALYZE chat_records"
	}

	start := time.Now()
	g.logger.InfoContext(ctx, "Starting database maintenance", "statement", stmt)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		g.logger.ErrorContext(ctx, "Database maintenance failed", "statement", stmt, "error", err)
		return fmt.Errorf("database maintenance failed: %w", err)
	}
	g.logger.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(start))
	return nil
}

// Shutdown stops accepting writes, waits for in-flight writes until ctx is
// done and closes the pool. It is a no-op unless the gateway is Ready.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StateReady {
		g.mu.Unlock()
		return nil
	}
	g.state = StateShutDown
	db := g.db
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		g.logger.WarnContext(ctx, "Shutdown deadline reached, abandoning in-flight writes",
			"inflight", g.active.Load(), "error", ctx.Err())
	}

	if err := db.Close(); err != nil {
		g.logger.ErrorContext(ctx, "Error closing database connection", "error", err)
		return fmt.Errorf("failed to close database: %w", err)
	}
	g.logger.InfoContext(ctx, "Database connection closed")
	return nil
}
