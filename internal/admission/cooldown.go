package admission

import (
	"context"
	"sync"
	"time"
)

// CooldownStore tracks symbols that are temporarily barred from
// re-admission. Entries are created on displacement (by the controller)
// and on exit (by the host); expired entries are pruned lazily.
type CooldownStore interface {
	// Active reports whether symbol has an unexpired cooldown at now.
	Active(ctx context.Context, symbol string, now time.Time) (bool, error)
	// Place records a cooldown for symbol until the given time.
	Place(ctx context.Context, symbol string, until time.Time) error
	// Prune drops expired entries.
	Prune(ctx context.Context, now time.Time) error
}

// MemoryCooldowns is the in-process CooldownStore. The mutex guards
// against hosts that run exit management concurrently with the cycle.
type MemoryCooldowns struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

// NewMemoryCooldowns creates an empty in-memory cooldown store.
func NewMemoryCooldowns() *MemoryCooldowns {
	return &MemoryCooldowns{expires: make(map[string]time.Time)}
}

// Active reports whether symbol is on cooldown. Expired entries are
// removed on read.
func (m *MemoryCooldowns) Active(_ context.Context, symbol string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.expires[symbol]
	if !ok {
		return false, nil
	}
	if !until.After(now) {
		delete(m.expires, symbol)
		return false, nil
	}
	return true, nil
}

// Place records a cooldown for symbol until the given time.
func (m *MemoryCooldowns) Place(_ context.Context, symbol string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[symbol] = until
	return nil
}

// Prune drops all expired entries.
func (m *MemoryCooldowns) Prune(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for symbol, until := range m.expires {
		if !until.After(now) {
			delete(m.expires, symbol)
		}
	}
	return nil
}

// Len returns the number of entries, expired or not.
func (m *MemoryCooldowns) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.expires)
}
