// Package database owns the PostgreSQL connection pool.
//
// It handles:
//   - building a DSN from config
//   - creating a bounded pgx connection pool (pgxpool)
//   - bounding every connection acquisition with the configured timeout
//   - wiring query tracing/logging (New Relic, pgx tracelog)
//   - draining the pool on shutdown within the destroy timeout
package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/coachpanel/backend/internal/config"
	loggerConfig "github.com/coachpanel/backend/internal/logger"
	pgxzero "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"
)

// DatabasePingTimeout bounds the startup connectivity check.
const DatabasePingTimeout = 10 * time.Second

// ErrAcquireTimeout is returned when no pooled connection became free in time.
var ErrAcquireTimeout = errors.New("database: timed out acquiring a connection")

// Querier is the subset of pgx used by repositories. *Database, pgx.Tx and
// pgxmock pools all satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Database wraps the pgx connection pool.
type Database struct {
	Pool *pgxpool.Pool
	log  *zerolog.Logger

	acquireTimeout time.Duration
	destroyTimeout time.Duration
}

var _ Querier = (*Database)(nil)

// multiTracer fans pgx query tracing out to several tracers, since
// ConnConfig only has a single Tracer slot.
type multiTracer struct {
	tracers []pgx.QueryTracer
}

func (mt *multiTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	for _, tracer := range mt.tracers {
		ctx = tracer.TraceQueryStart(ctx, conn, data)
	}
	return ctx
}

func (mt *multiTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	for _, tracer := range mt.tracers {
		tracer.TraceQueryEnd(ctx, conn, data)
	}
}

// DSN builds a postgres:// URL. The password is escaped so characters
// like ':' or '@' cannot break the URL.
func DSN(cfg config.DatabaseConfig) string {
	hostPort := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		hostPort,
		cfg.Name,
		cfg.SSLMode,
	)
}

// poolConfig turns the database settings into a pgxpool config.
func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	pgxPoolConfig, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx pool config: %w", err)
	}

	pgxPoolConfig.MaxConns = cfg.MaxConns
	pgxPoolConfig.MinConns = cfg.MinConns
	pgxPoolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	pgxPoolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	pgxPoolConfig.ConnConfig.ConnectTimeout = cfg.CreateTimeout

	return pgxPoolConfig, nil
}

// New creates the PostgreSQL connection pool and pings it.
//
// New Relic tracing is attached when APM is enabled. In the local
// environment every query is also logged through pgx tracelog.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) (*Database, error) {
	pgxPoolConfig, err := poolConfig(cfg.Database)
	if err != nil {
		return nil, err
	}

	var tracers []pgx.QueryTracer

	if loggerService.GetApplication() != nil {
		tracers = append(tracers, nrpgx5.NewTracer())
	}

	// Very noisy, which is why it's only in local.
	if cfg.Primary.Env == "local" {
		globalLevel := logger.GetLevel()
		pgxLogger := loggerConfig.NewPgxLogger(globalLevel)

		tracers = append(tracers, &tracelog.TraceLog{
			Logger:   pgxzero.NewLogger(pgxLogger),
			LogLevel: loggerConfig.GetPgxTraceLogLevel(globalLevel),
		})
	}

	switch len(tracers) {
	case 0:
	case 1:
		pgxPoolConfig.ConnConfig.Tracer = tracers[0]
	default:
		pgxPoolConfig.ConnConfig.Tracer = &multiTracer{tracers: tracers}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	database := &Database{
		Pool:           pool,
		log:            logger,
		acquireTimeout: cfg.Database.AcquireTimeout,
		destroyTimeout: cfg.Database.DestroyTimeout,
	}

	pingCtx, cancel := context.WithTimeout(ctx, DatabasePingTimeout)
	defer cancel()
	if err = database.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Int32("max_conns", cfg.Database.MaxConns).
		Int32("min_conns", cfg.Database.MinConns).
		Msg("connected to the database")

	return database, nil
}

// acquire takes a connection from the pool, waiting at most acquireTimeout.
// The timeout only bounds the wait; the caller's ctx still governs the query.
func (db *Database) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx := ctx
	if db.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, db.acquireTimeout)
		defer cancel()
	}

	conn, err := db.Pool.Acquire(acquireCtx)
	if err != nil {
		// Distinguish our own deadline from the caller's.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrAcquireTimeout, db.acquireTimeout)
		}
		return nil, err
	}
	return conn, nil
}

func (db *Database) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	conn, err := db.acquire(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	defer conn.Release()

	return conn.Exec(ctx, sql, args...)
}

func (db *Database) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	conn, err := db.acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		conn.Release()
		return nil, err
	}
	return &releasingRows{Rows: rows, release: releaseOnce(conn)}, nil
}

func (db *Database) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	conn, err := db.acquire(ctx)
	if err != nil {
		return errRow{err: err}
	}

	return &releasingRow{row: conn.QueryRow(ctx, sql, args...), release: releaseOnce(conn)}
}

// Begin starts a transaction on a dedicated connection. The connection
// goes back to the pool on Commit or Rollback.
func (db *Database) Begin(ctx context.Context) (pgx.Tx, error) {
	conn, err := db.acquire(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, err
	}
	return &releasingTx{Tx: tx, release: releaseOnce(conn)}, nil
}

// Ping checks that a connection can be acquired and answers.
func (db *Database) Ping(ctx context.Context) error {
	conn, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return conn.Ping(ctx)
}

// Close drains the pool. pgxpool.Close waits for every acquired connection
// to be released, so the wait is bounded by destroyTimeout.
func (db *Database) Close() error {
	db.log.Info().Msg("closing database connection pool")

	done := make(chan struct{})
	go func() {
		db.Pool.Close()
		close(done)
	}()

	if db.destroyTimeout <= 0 {
		<-done
		return nil
	}

	select {
	case <-done:
		return nil
	case <-time.After(db.destroyTimeout):
		return fmt.Errorf("database pool did not close within %s", db.destroyTimeout)
	}
}
