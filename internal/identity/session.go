package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Listener receives the current principal. nil means signed out.
type Listener func(p *Principal)

// Session is the sign-in state of one client.
//
// Listeners are invoked while the session lock is held so that every
// listener observes changes in the same order. A listener must not call
// back into the session.
type Session struct {
	dir Directory

	mu        sync.Mutex
	current   *Principal
	listeners map[uint64]Listener
	next      uint64
}

// NewSession creates a signed-out session backed by dir.
func NewSession(dir Directory) *Session {
	return &Session{
		dir:       dir,
		listeners: make(map[uint64]Listener),
	}
}

// SignIn authenticates and, on success, notifies listeners of the new
// principal. On failure the state is unchanged.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	p, err := s.dir.Authenticate(ctx, email, password)
	if err != nil {
		slog.Debug("sign in rejected", "email", NormalizeEmail(email), "error", err)
		return fmt.Errorf("sign in: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = &p
	slog.Info("signed in", "uid", p.UID, "email", p.Email)
	s.notify()
	return nil
}

// SignOut clears the principal. Signing out while signed out is a no-op
// and does not notify.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	slog.Info("signed out", "uid", s.current.UID)
	s.current = nil
	s.notify()
	return nil
}

// Subscribe registers fn and delivers the current state to it before
// returning. The returned func detaches the listener.
func (s *Session) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := s.next
	s.listeners[id] = fn
	fn(s.copyCurrent())

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

// Current returns a copy of the signed-in principal, or nil.
func (s *Session) Current() *Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyCurrent()
}

func (s *Session) copyCurrent() *Principal {
	if s.current == nil {
		return nil
	}
	p := *s.current
	return &p
}

// notify must be called with s.mu held.
func (s *Session) notify() {
	for id := uint64(1); id <= s.next; id++ {
		if fn, ok := s.listeners[id]; ok {
			fn(s.copyCurrent())
		}
	}
}
