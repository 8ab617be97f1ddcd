// Package session bootstraps one reconciler per client and keeps a
// registry of live clients with idle expiry.
//
// A Session owns an identity session, a reconciler fed by its principal
// stream, a dispatcher for commands and a broadcaster holding the latest
// view. The reconciler runs on its own goroutine for the session lifetime.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/storefront/internal/dispatch"
	"github.com/roach88/storefront/internal/engine"
	"github.com/roach88/storefront/internal/identity"
)

// Session is one connected client.
type Session struct {
	ID         string
	Identity   *identity.Session
	Reconciler *engine.Reconciler
	Dispatcher *dispatch.Dispatcher
	Views      *engine.Broadcaster

	unsubscribe func()
	stop        context.CancelFunc
	done        chan struct{}

	mu       sync.Mutex
	lastSeen time.Time
	streams  int
	closed   bool
}

// Touch records activity at t.
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = t
}

// LastSeen returns the time of the last recorded activity.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Streams returns how many live view streams are attached.
func (s *Session) Streams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams
}

func (s *Session) attach(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams++
	s.lastSeen = t
}

func (s *Session) detach(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams--
	s.lastSeen = t
}

// idleSince reports whether s has no attached streams and no activity
// since cutoff.
func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams == 0 && s.lastSeen.Before(cutoff)
}

// View returns the latest view, waiting for the first one until ctx is
// done. ok is false if no view was published in time.
func (s *Session) View(ctx context.Context) (engine.ViewDescription, bool) {
	if v, ok := s.Views.Latest(); ok {
		return v, true
	}

	ch, cancel := s.Views.Watch()
	defer cancel()

	select {
	case v, ok := <-ch:
		return v, ok
	case <-ctx.Done():
		return engine.ViewDescription{}, false
	}
}

// close tears the session down: stop listening to identity, stop the
// reconciler (which cancels its subscription) and close view watchers.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.unsubscribe()
	s.Reconciler.Stop()
	<-s.done
	s.stop()
	s.Views.Close()
	slog.Debug("session closed", "session", s.ID)
}
