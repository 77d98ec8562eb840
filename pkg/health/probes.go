package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FromFunc adapts a plain connectivity check to a probe: a nil error is
// healthy, anything else unhealthy.
func FromFunc(fn func(ctx context.Context) error) ProbeFunc {
	return func(ctx context.Context) (*Check, error) {
		if err := fn(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

// HTTPProbe checks an HTTP endpoint: 2xx is healthy, 3xx degraded, 4xx and
// up unhealthy. A nil client uses a default with a 10s timeout; the probe
// context still bounds the request.
func HTTPProbe(url string, client *http.Client) ProbeFunc {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context) (*Check, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		start := time.Now()
		resp, err := client.Do(req)
		elapsed := time.Since(start)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		status := StatusHealthy
		if resp.StatusCode >= 400 {
			status = StatusUnhealthy
		} else if resp.StatusCode >= 300 {
			status = StatusDegraded
		}

		return &Check{
			Status:         status,
			ResponseTimeMS: durationMS(elapsed),
			Details: map[string]any{
				"status_code": resp.StatusCode,
				"url":         url,
			},
		}, nil
	}
}

// RedisProbe pings a Redis instance.
func RedisProbe(client redis.UniversalClient) ProbeFunc {
	return func(ctx context.Context) (*Check, error) {
		start := time.Now()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		return &Check{
			Status:         StatusHealthy,
			ResponseTimeMS: durationMS(time.Since(start)),
		}, nil
	}
}

// PostgresProbe pings a Postgres pool.
func PostgresProbe(pool *pgxpool.Pool) ProbeFunc {
	return func(ctx context.Context) (*Check, error) {
		start := time.Now()
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("postgres ping failed: %w", err)
		}
		return &Check{
			Status:         StatusHealthy,
			ResponseTimeMS: durationMS(time.Since(start)),
			Details: map[string]any{
				"total_conns": pool.Stat().TotalConns(),
				"idle_conns":  pool.Stat().IdleConns(),
			},
		}, nil
	}
}
