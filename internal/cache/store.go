// Package cache is a small byte-value store with Redis and in-process backends.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Options struct {
	Backend  string
	Addr     string
	Password string
	DB       int
}

// New picks a backend. It falls back to memory when redis has no address;
// the returned string says which backend was chosen.
func New(opts Options) (Store, string) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "redis":
		if strings.TrimSpace(opts.Addr) == "" {
			return NewMemoryStore(), "memory"
		}
		return NewRedisStore(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}), "redis"
	default:
		return NewMemoryStore(), "memory"
	}
}
