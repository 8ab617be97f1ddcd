package engine

import (
	"fmt"

	"github.com/roach88/storefront/internal/catalog"
	"github.com/roach88/storefront/internal/identity"
)

// ViewMode selects which view the client is shown.
type ViewMode string

const (
	ModeStudentCatalog ViewMode = "student_catalog"
	ModeAdminDashboard ViewMode = "admin_dashboard"
)

// ParseViewMode accepts the wire names of the two modes.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case ModeStudentCatalog, ModeAdminDashboard:
		return ViewMode(s), nil
	default:
		return "", fmt.Errorf("unknown view mode %q", s)
	}
}

func (m ViewMode) String() string {
	return string(m)
}

// defaultModeFor is the mode a principal lands on: admin when signed in.
func defaultModeFor(p *identity.Principal) ViewMode {
	if p != nil {
		return ModeAdminDashboard
	}
	return ModeStudentCatalog
}

// ViewStatus says whether products could be loaded.
type ViewStatus string

const (
	StatusReady       ViewStatus = "ready"
	StatusUnavailable ViewStatus = "unavailable"
)

// ViewDescription is everything a renderer needs. It is a pure function of
// the principal, the mode and the latest snapshot of the active
// subscription.
type ViewDescription struct {
	// Seq increases by one with every publish from the same reconciler.
	Seq             int64             `json:"seq"`
	Mode            ViewMode          `json:"mode"`
	Products        []catalog.Product `json:"products"`
	IsAuthenticated bool              `json:"isAuthenticated"`
	Principal       string            `json:"principal,omitempty"`
	Status          ViewStatus        `json:"status"`
	Error           string            `json:"error,omitempty"`
}

// Publisher receives every view the reconciler produces, in order, on the
// reconciler goroutine. Implementations must not block.
type Publisher interface {
	Publish(v ViewDescription)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(v ViewDescription)

func (f PublisherFunc) Publish(v ViewDescription) { f(v) }
