package engine

import "sync"

// ViewRecorder is a Publisher that keeps every view, for tests and the
// scenario harness.
type ViewRecorder struct {
	mu    sync.Mutex
	views []ViewDescription
}

var _ Publisher = (*ViewRecorder)(nil)

func (r *ViewRecorder) Publish(v ViewDescription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

// Views returns a copy of every recorded view.
func (r *ViewRecorder) Views() []ViewDescription {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ViewDescription, len(r.views))
	copy(out, r.views)
	return out
}

// Last returns the most recent view.
func (r *ViewRecorder) Last() (ViewDescription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return ViewDescription{}, false
	}
	return r.views[len(r.views)-1], true
}

// Len returns the number of recorded views.
func (r *ViewRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}
