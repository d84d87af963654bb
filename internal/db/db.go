package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	pgxpgconn "github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/roomchat/roomchat-backend/internal/store"
)

var (
	dbLatency           metric.Float64Histogram
	dbActiveConnections metric.Int64UpDownCounter
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every query
// method runs identically inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgxpgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store executes queries against either the pool (autocommit) or an open
// transaction. It implements store.Tx.
type Store struct {
	q querier
}

// Database owns the connection pool and hands out Store handles. It
// implements store.Store.
type Database struct {
	*Store
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(dsn string) (*Database, error) {
	var err error

	// Initialize metrics
	meter := otel.Meter("db-client")
	dbLatency, err = meter.Float64Histogram("db.query.latency", metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create db.query.latency instrument: %w", err)
	}
	dbActiveConnections, err = meter.Int64UpDownCounter("db.active.connections", metric.WithUnit("connections"))
	if err != nil {
		return nil, fmt.Errorf("failed to create db.active.connections instrument: %w", err)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	config.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
		dbActiveConnections.Add(ctx, 1)
		return true
	}
	config.AfterRelease = func(conn *pgx.Conn) bool {
		dbActiveConnections.Add(context.Background(), -1)
		return true
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection with tracing
	ctx, span := otel.Tracer("db-client").Start(context.Background(), "db.ping")
	defer span.End()
	if err := pool.Ping(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to ping database")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	span.SetStatus(codes.Ok, "Database connected successfully")
	return &Database{
		Store: &Store{q: instrumented{pool}},
		pool:  pool,
	}, nil
}

func (db *Database) Close() error {
	db.pool.Close()
	return nil
}

func (db *Database) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Run executes fn under a single transaction. The handle passed to fn
// commits atomically on a nil return and rolls back on error.
func (db *Database) Run(ctx context.Context, fn func(tx store.Tx) error) error {
	start := time.Now()
	ctx, span := otel.Tracer("db-client").Start(ctx, "db.transaction")
	defer func() {
		dbLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("db.operation", "transaction")))
		span.End()
	}()

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Store{q: instrumented{tx}}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			span.RecordError(rbErr)
		}
		span.SetStatus(codes.Error, "Transaction rolled back")
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to commit transaction")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// instrumented wraps a querier with latency metrics and spans.
type instrumented struct {
	q querier
}

func (i instrumented) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	start := time.Now()
	ctx, span := otel.Tracer("db-client").Start(ctx, "db.query.row")
	defer func() {
		dbLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("db.query", query)))
		span.End()
	}()
	return i.q.QueryRow(ctx, query, args...)
}

func (i instrumented) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	start := time.Now()
	ctx, span := otel.Tracer("db-client").Start(ctx, "db.query")
	defer func() {
		dbLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("db.query", query)))
		span.End()
	}()
	rows, err := i.q.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
	}
	return rows, err
}

func (i instrumented) Exec(ctx context.Context, query string, args ...any) (pgxpgconn.CommandTag, error) {
	start := time.Now()
	ctx, span := otel.Tracer("db-client").Start(ctx, "db.exec")
	defer func() {
		dbLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("db.query", query)))
		span.End()
	}()
	cmdTag, err := i.q.Exec(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database exec failed")
	}
	return cmdTag, err
}
