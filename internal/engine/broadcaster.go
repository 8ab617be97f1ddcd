package engine

import "sync"

// Broadcaster is a Publisher that keeps the latest view and fans it out to
// watchers. Each watcher channel holds at most one pending view; a slow
// watcher skips intermediate views and always ends on the latest.
type Broadcaster struct {
	mu       sync.Mutex
	latest   ViewDescription
	has      bool
	watchers map[uint64]chan ViewDescription
	next     uint64
	closed   bool
}

var _ Publisher = (*Broadcaster)(nil)

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{watchers: make(map[uint64]chan ViewDescription)}
}

func (b *Broadcaster) Publish(v ViewDescription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.latest = v
	b.has = true
	for _, ch := range b.watchers {
		offer(ch, v)
	}
}

// offer replaces any pending value in ch with v without blocking.
func offer(ch chan ViewDescription, v ViewDescription) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Latest returns the most recent view, if any has been published.
func (b *Broadcaster) Latest() (ViewDescription, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.has
}

// Watch returns a channel that receives the latest view (immediately, if
// one exists) and every later one. The channel is closed by cancel or
// Close.
func (b *Broadcaster) Watch() (<-chan ViewDescription, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ViewDescription, 1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	if b.has {
		ch <- b.latest
	}

	b.next++
	id := b.next
	b.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if w, ok := b.watchers[id]; ok {
				delete(b.watchers, id)
				close(w)
			}
		})
	}
}

// Close closes every watcher channel. Later publishes are dropped.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.watchers {
		delete(b.watchers, id)
		close(ch)
	}
}
