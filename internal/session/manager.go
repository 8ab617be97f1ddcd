package session

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/storefront/internal/catalog"
	"github.com/roach88/storefront/internal/dispatch"
	"github.com/roach88/storefront/internal/engine"
	"github.com/roach88/storefront/internal/identity"
	"github.com/roach88/storefront/internal/metrics"
)

// DefaultIdleTimeout closes sessions nobody has used for this long.
const DefaultIdleTimeout = 30 * time.Minute

// ErrClosed is returned by Open after CloseAll.
var ErrClosed = errors.New("session manager closed")

// Manager creates and tracks sessions.
type Manager struct {
	catalog   catalog.Collaborator
	directory identity.Directory
	metrics   *metrics.Metrics
	idle      time.Duration
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// Option configures a Manager.
type Option func(*Manager)

func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.idle = d
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithNow replaces the wall clock used for idle tracking.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDs replaces the session id source (UUIDv4 by default).
func WithIDs(newID func() string) Option {
	return func(m *Manager) {
		m.newID = newID
	}
}

// NewManager creates a manager whose sessions share one catalog and one
// credential directory.
func NewManager(c catalog.Collaborator, dir identity.Directory, opts ...Option) *Manager {
	m := &Manager{
		catalog:   c,
		directory: dir,
		idle:      DefaultIdleTimeout,
		now:       time.Now,
		newID:     uuid.NewString,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts a new session. The reconciler receives the signed-out state
// immediately and opens the student catalog subscription.
func (m *Manager) Open() (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.mu.Unlock()

	ident := identity.NewSession(m.directory)
	views := engine.NewBroadcaster()
	rec := engine.New(m.catalog, views, engine.WithMetrics(m.metrics))

	ctx, stop := context.WithCancel(context.Background())
	s := &Session{
		ID:         m.newID(),
		Identity:   ident,
		Reconciler: rec,
		Dispatcher: dispatch.New(m.catalog, ident, dispatch.WithMetrics(m.metrics)),
		Views:      views,
		stop:       stop,
		done:       make(chan struct{}),
		lastSeen:   m.now(),
	}

	go func() {
		defer close(s.done)
		if err := rec.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("reconciler stopped", "session", s.ID, "error", err)
		}
	}()
	s.unsubscribe = ident.Subscribe(rec.OnPrincipalChanged)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.close()
		return nil, ErrClosed
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.metrics.SessionOpened()
	slog.Info("session opened", "session", s.ID)
	return s, nil
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()

	if ok {
		s.Touch(m.now())
	}
	return s, ok
}

// Touch records activity on s using the manager's clock.
func (m *Manager) Touch(s *Session) {
	s.Touch(m.now())
}

// Attach marks s as having a live view stream until the returned func is
// called. Sweep never expires a session with an attached stream; the
// idle timeout restarts when the last one detaches.
func (m *Manager) Attach(s *Session) (detach func()) {
	s.attach(m.now())
	var once sync.Once
	return func() {
		once.Do(func() { s.detach(m.now()) })
	}
}

// Close ends one session. It reports whether the session existed.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.close()
	m.metrics.SessionClosed()
	return true
}

// Sweep closes every session idle for longer than the idle timeout and
// returns how many were closed. Sessions with an attached view stream are
// never idle.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	var expired []string
	for _, id := range slices.Sorted(maps.Keys(m.sessions)) {
		if m.sessions[id].idleSince(cutoff) {
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		if m.Close(id) {
			slog.Info("session expired", "session", id)
		}
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done, then closes
// all sessions.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// CloseAll ends every session and refuses new ones.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	ids := slices.Sorted(maps.Keys(m.sessions))
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
