package app

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/groupdesk/internal/cache"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}

// OpenStore builds the counter store named by Driver. The returned close
// function is never nil.
func (c CacheConfig) OpenStore(ctx context.Context, db *gorm.DB) (cache.Store, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "", "memory":
		return cache.NewMemoryStore(nil), noop, nil
	case "database":
		if db == nil {
			return nil, noop, fmt.Errorf("cache: database driver requires a database handle")
		}
		return cache.NewDatabaseStore(db), noop, nil
	case "redis":
		store, err := cache.NewRedisStore(ctx, c.RedisClientConfig())
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("cache: unsupported driver %q", c.Driver)
	}
}
