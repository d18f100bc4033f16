// Package cache holds the in-process caches used by the ledger and a
// manager that sweeps their expired entries.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache is the subset the ledger needs for search results.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Purge()
	Stats() Stats
}

// Sweeper drops expired entries and reports how many it removed.
type Sweeper interface {
	CleanExpired() int
}

// Manager sweeps registered caches on a fixed interval.
type Manager struct {
	logger *slog.Logger

	mu     sync.Mutex
	caches map[string]Sweeper
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, caches: make(map[string]Sweeper)}
}

// Register adds c under name; a later registration with the same name replaces it.
func (m *Manager) Register(name string, c Sweeper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// Start sweeps every interval until Stop. Calling Start twice is a no-op.
func (m *Manager) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Sweep runs one pass over all caches and returns the number of evictions.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	caches := make(map[string]Sweeper, len(m.caches))
	for name, c := range m.caches {
		caches[name] = c
	}
	m.mu.Unlock()

	total := 0
	for name, c := range caches {
		if n := c.CleanExpired(); n > 0 {
			m.logger.Debug("Evicted expired cache entries", "cache", name, "count", n)
			total += n
		}
	}
	return total
}

// Stop ends the sweep loop and waits for it. Safe without Start and safe twice.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}
