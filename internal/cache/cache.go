// Package cache holds the in-process caches used by the HTTP server.
package cache

import (
	"context"
	"time"

	"budgetpipe/internal/log"
)

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches with expiring entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps expired entries from registered caches.
type Manager struct {
	caches []Cleaner
	done   chan struct{}
}

func NewManager(caches ...Cleaner) *Manager {
	return &Manager{caches: caches, done: make(chan struct{})}
}

func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// Run sweeps every interval until ctx ends.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	defer close(m.done)
	logger := log.FromContext(ctx).WithComponent(log.ComponentCache)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.DebugContext(ctx, "Removed expired cache entries", "count", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Sweep cleans all caches once and returns the number of removed entries.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Done is closed when Run returns.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}
