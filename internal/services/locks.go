package services

import (
	"context"
	"sync"
	"time"

	"github.com/charlesng35/groupdesk/pkg/metrics"
)

// aggregateLocks hands out one mutex per booking id. Entries are reference counted
// and dropped once no caller holds or waits on them, so idle bookings cost nothing.
type aggregateLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	slot chan struct{}
	refs int
}

func newAggregateLocks() *aggregateLocks {
	return &aggregateLocks{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the lock for key is held or ctx is done. When ctx carries
// no deadline, timeout bounds the wait. The returned func releases the lock.
func (l *aggregateLocks) acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	entry := l.retain(key)
	started := time.Now()

	select {
	case entry.slot <- struct{}{}:
		metrics.LockWait.Observe(time.Since(started).Seconds())
		return l.releaser(key, entry), nil
	default:
	}

	if _, ok := ctx.Deadline(); !ok && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case entry.slot <- struct{}{}:
		metrics.LockWait.Observe(time.Since(started).Seconds())
		return l.releaser(key, entry), nil
	case <-ctx.Done():
		l.drop(key, entry)
		metrics.LockTimeouts.Inc()
		return nil, ErrLockTimeout.WithInternal(ctx.Err())
	}
}

func (l *aggregateLocks) retain(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{slot: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *aggregateLocks) drop(key string, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *aggregateLocks) releaser(key string, entry *lockEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.slot
			l.drop(key, entry)
		})
	}
}

func (l *aggregateLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
