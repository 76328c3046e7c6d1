package guard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Memory is a process-local guard. Its state does not survive a restart, so
// a request redelivered across a restart prints again.
type Memory struct {
	mu         sync.Mutex
	window     time.Duration
	maxEntries int
	now        Clock
	log        *zap.Logger

	admitted  map[string]time.Time
	lastSweep time.Time
}

type Option func(*Memory)

func WithClock(c Clock) Option {
	return func(m *Memory) { m.now = c }
}

func WithWindow(d time.Duration) Option {
	return func(m *Memory) {
		if d > 0 {
			m.window = d
		}
	}
}

// WithMaxEntries caps the number of remembered orders. When full, the oldest
// admission is dropped first.
func WithMaxEntries(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Memory) { m.log = l }
}

func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		window:     DefaultWindow,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		log:        zap.NewNop(),
		admitted:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastSweep = m.now()
	return m
}

func (m *Memory) CanPrint(_ context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	if at, ok := m.admitted[orderID]; ok && now.Sub(at) < m.window {
		m.log.Info("duplicate print attempt detected", zap.String("order_id", orderID))
		return false, nil
	}
	if _, ok := m.admitted[orderID]; !ok && len(m.admitted) >= m.maxEntries {
		m.evictOldest()
	}
	m.admitted[orderID] = now
	return true, nil
}

func (m *Memory) Release(_ context.Context, orderID string) error {
	m.mu.Lock()
	delete(m.admitted, orderID)
	m.mu.Unlock()
	return nil
}

// Len reports how many admissions are remembered.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.admitted)
}

// sweep drops expired admissions at most once per window. Caller holds mu.
func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.window {
		return
	}
	for id, at := range m.admitted {
		if now.Sub(at) >= m.window {
			delete(m.admitted, id)
		}
	}
	m.lastSweep = now
}

// evictOldest makes room under the cap. Caller holds mu.
func (m *Memory) evictOldest() {
	var (
		oldestID string
		oldestAt time.Time
		first    = true
	)
	for id, at := range m.admitted {
		if first || at.Before(oldestAt) {
			oldestID, oldestAt, first = id, at, false
		}
	}
	if !first {
		delete(m.admitted, oldestID)
		m.log.Warn("print guard full, evicting oldest admission",
			zap.String("order_id", oldestID), zap.Int("max_entries", m.maxEntries))
	}
}
