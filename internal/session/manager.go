package session

import (
	"context"
	"sync"
	"time"

	"pixelmagic/internal/domain"
)

const (
	// DefaultIdleTimeout is how long a session may sit untouched before it is destroyed.
	DefaultIdleTimeout = time.Hour

	// DefaultSweepInterval is how often idle sessions are looked for.
	DefaultSweepInterval = time.Minute

	// DefaultMaxSessions bounds the registry; the least recently used idle
	// session goes first. Sessions with an edit in flight are never evicted, so
	// the registry may briefly exceed the bound when all of them are busy.
	DefaultMaxSessions = 1000
)

// ManagerOptions tunes the registry.
type ManagerOptions struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	MaxSessions   int
	Now           func() time.Time
}

type entry struct {
	controller *Controller
	lastActive time.Time
}

// Manager maps browser session ids to controllers. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry

	factory     func() *Controller
	idleTimeout time.Duration
	maxSessions int
	now         func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager builds a registry whose sessions come from factory. When
// SweepInterval is positive a background goroutine evicts idle sessions until
// Close is called.
func NewManager(factory func() *Controller, opts ManagerOptions) *Manager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions:    make(map[string]*entry),
		factory:     factory,
		idleTimeout: opts.IdleTimeout,
		maxSessions: opts.MaxSessions,
		now:         opts.Now,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	if opts.SweepInterval > 0 {
		go m.sweepLoop(ctx, opts.SweepInterval)
	} else {
		close(m.done)
	}
	return m
}

// Get returns the controller for id, creating one on first use.
func (m *Manager) Get(id string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.sessions[id]; ok {
		e.lastActive = now
		return e.controller
	}
	if len(m.sessions) >= m.maxSessions {
		m.evictOldestLocked()
	}
	e := &entry{controller: m.factory(), lastActive: now}
	m.sessions[id] = e
	return e.controller
}

// Lookup returns the controller for id without creating one.
func (m *Manager) Lookup(id string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	e.lastActive = m.now()
	return e.controller, nil
}

// Remove destroys the session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep destroys sessions idle for longer than the idle timeout and returns
// how many were removed. Sessions with an edit in flight are kept.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.idleTimeout)
	removed := 0
	for id, e := range m.sessions {
		if e.lastActive.Before(cutoff) && e.controller.State() != domain.StateProcessing {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Close stops the background sweeper.
func (m *Manager) Close() {
	m.cancel()
	<-m.done
}

func (m *Manager) sweepLoop(ctx context.Context, interval time.Duration) {
	defer close(m.done)
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
}

func (m *Manager) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range m.sessions {
		if e.controller.State() == domain.StateProcessing {
			continue
		}
		if oldestID == "" || e.lastActive.Before(oldest) {
			oldestID = id
			oldest = e.lastActive
		}
	}
	if oldestID != "" {
		delete(m.sessions, oldestID)
	}
}
