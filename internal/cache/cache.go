package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var redisLatency metric.Float64Histogram

// Cache wraps the Redis client with tracing and latency metrics. Every
// KV store in this package is built on top of it.
type Cache struct {
	client *redis.Client
}

// New creates a new Redis cache connection
func New(dsn string) (*Cache, error) {
	var err error

	meter := otel.Meter("redis-client")
	redisLatency, err = meter.Float64Histogram("redis.command.latency", metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create redis.command.latency instrument: %w", err)
	}

	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, span := otel.Tracer("redis-client").Start(context.Background(), "redis.ping")
	defer span.End()
	if err := client.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to ping Redis")
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	span.SetStatus(codes.Ok, "Redis connected successfully")

	return &Cache{client: client}, nil
}

// NewFromClient wraps an existing client. Used by tests with miniredis.
func NewFromClient(client *redis.Client) (*Cache, error) {
	var err error
	meter := otel.Meter("redis-client")
	redisLatency, err = meter.Float64Histogram("redis.command.latency", metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create redis.command.latency instrument: %w", err)
	}
	return &Cache{client: client}, nil
}

// Client exposes the underlying Redis client. Direct access bypasses
// tracing and metrics.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis client
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// instrument starts a span and returns a done func that records the
// command latency and the error, then ends the span.
func (c *Cache) instrument(ctx context.Context, command string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append(attrs, attribute.String("redis.command", command))
	ctx, span := otel.Tracer("redis-client").Start(ctx, "redis."+command, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		redisLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("redis.command", command)))
		if err != nil && err != redis.Nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Redis "+command+" failed")
		}
		span.End()
	}
}
