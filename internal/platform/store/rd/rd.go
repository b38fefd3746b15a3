// Package rd opens redis connections with a boot-time health gate
package rd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client aliases the go-redis client so callers don't import the driver for the type
type Client = *redis.Client

// Config configures redis connectivity
type Config struct {
	Addr    string
	DB      int
	AppName string
}

// Open dials redis and pings with retry/backoff before returning the client
func Open(ctx context.Context, cfg Config) (Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		DB:         cfg.DB,
		ClientName: cfg.AppName,
	})

	const (
		maxAttempts    = 20
		pingTimeout    = 3 * time.Second
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)

	var lastErr error
	backoff := backoffStart
	for i := 0; i < maxAttempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = c.Ping(toCtx).Err()
		cancel()

		if lastErr == nil {
			return c, nil
		}
		if ctx.Err() != nil {
			_ = c.Close()
			return nil, ctx.Err()
		}
		time.Sleep(backoff)
		if backoff < backoffCeiling {
			backoff *= 2
			if backoff > backoffCeiling {
				backoff = backoffCeiling
			}
		}
	}

	_ = c.Close()
	return nil, fmt.Errorf("redis ping failed after %d attempts: %w", maxAttempts, lastErr)
}
