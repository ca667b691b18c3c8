package cache

import (
	"context"
	"time"
)

// Store counts hits per key inside a fixed window.
type Store interface {
	// IncrementWithTTL bumps the counter for key, starting a new window when the
	// previous one elapsed. It returns the count and the time left in the window.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

const defaultWindow = time.Minute
