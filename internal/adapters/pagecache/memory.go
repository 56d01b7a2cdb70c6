package pagecache

import (
	"context"
	"sync"
	"time"

	"github.com/okian/ladder/internal/domain/types"
)

type entry struct {
	page    types.Page
	expires time.Time
}

// Memory is an in-process Cache.
type Memory struct {
	mu      sync.Mutex
	gen     uint64
	entries map[string]entry
	now     func() time.Time
}

var _ Cache = (*Memory)(nil)

// MemoryOption applies a configuration option to the Memory cache.
type MemoryOption func(*Memory)

// WithClock overrides the clock used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory returns an empty in-process cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{entries: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Generation(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, nil
}

func (m *Memory) Get(_ context.Context, gen uint64, key string) (types.Page, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return types.Page{}, false, nil
	}
	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expires) {
		return types.Page{}, false, nil
	}
	return e.page, true, nil
}

// Set stores page unless the generation moved on. Expired entries are swept on each call.
func (m *Memory) Set(_ context.Context, gen uint64, key string, page types.Page, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return nil
	}
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = entry{page: page, expires: now.Add(ttl)}
	return nil
}

func (m *Memory) Purge(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	clear(m.entries)
	return nil
}
