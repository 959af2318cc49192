// Package cache provides a small byte-value cache with TTLs, backed by memory
// or Redis.
package cache

import (
	"context"
	"time"
)

type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
