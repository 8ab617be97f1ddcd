package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/storefront/internal/catalog"
	"github.com/roach88/storefront/internal/engine"
)

// Scenario is a scripted session against the reconciler.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Users are registered with the identity directory before the run.
	Users []User `yaml:"users,omitempty"`

	// Products are the catalog contents before the run.
	Products []catalog.Product `yaml:"products,omitempty"`

	// DeliverOnSubscribe makes every subscription receive the current
	// contents immediately. Defaults to true.
	DeliverOnSubscribe *bool `yaml:"deliver_on_subscribe,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// User is a directory entry.
type User struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// ProductInput is the add_product payload.
type ProductInput struct {
	Name        string  `yaml:"name"`
	Price       float64 `yaml:"price"`
	Description string  `yaml:"description"`
	ImageURL    string  `yaml:"image_url,omitempty"`
	// InStock defaults to true.
	InStock *bool `yaml:"in_stock,omitempty"`
}

// Fields converts the input to catalog fields.
func (p ProductInput) Fields() catalog.Fields {
	inStock := true
	if p.InStock != nil {
		inStock = *p.InStock
	}
	return catalog.Fields{
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		InStock:     inStock,
	}
}

// Step is one scripted action.
type Step struct {
	Action string `yaml:"action"`

	Email    string `yaml:"email,omitempty"`
	Password string `yaml:"password,omitempty"`

	// Mode is the request_mode target.
	Mode string `yaml:"mode,omitempty"`

	// Sub targets deliver and fail. 0 means the latest subscription.
	Sub int `yaml:"sub,omitempty"`

	// Products is the deliver payload. Omitted means the catalog's current
	// contents.
	Products []catalog.Product `yaml:"products,omitempty"`

	// Error is the fail and reject_next message.
	Error string `yaml:"error,omitempty"`

	ID      string        `yaml:"id,omitempty"`
	InStock bool          `yaml:"in_stock,omitempty"`
	Product *ProductInput `yaml:"product,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is checked after a step has been fully processed. Mode and
// Authenticated are compared against reconciler state, the rest against
// the last published view.
type Expect struct {
	// Error is the expected error code of the step. Empty expects success.
	Error string `yaml:"error,omitempty"`

	Mode          string   `yaml:"mode,omitempty"`
	Authenticated *bool    `yaml:"authenticated,omitempty"`
	Status        string   `yaml:"status,omitempty"`
	Products      []string `yaml:"products,omitempty"`

	// Views is the number of views published so far.
	Views *int `yaml:"views,omitempty"`
}

// Step actions.
const (
	ActionSignIn        = "sign_in"
	ActionSignOut       = "sign_out"
	ActionRequestMode   = "request_mode"
	ActionReload        = "reload"
	ActionDeliver       = "deliver"
	ActionFail          = "fail"
	ActionRejectNext    = "reject_next"
	ActionAddProduct    = "add_product"
	ActionSetStock      = "set_stock"
	ActionToggleStock   = "toggle_stock"
	ActionDeleteProduct = "delete_product"
)

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count,
	// final_view, subscriptions.
	Type string `yaml:"type"`

	// Event is the trace key for trace_contains and trace_count.
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected key order (trace_order). Events need not be
	// consecutive.
	Events []string `yaml:"events,omitempty"`

	// final_view fields. Unset fields are not compared.
	Mode          string   `yaml:"mode,omitempty"`
	Status        string   `yaml:"status,omitempty"`
	Authenticated *bool    `yaml:"authenticated,omitempty"`
	Products      []string `yaml:"products,omitempty"`

	// subscriptions fields.
	Opened    *int `yaml:"opened,omitempty"`
	Active    *int `yaml:"active,omitempty"`
	MaxActive *int `yaml:"max_active,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalView     = "final_view"
	AssertSubscriptions = "subscriptions"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func (s *Scenario) deliverOnSubscribe() bool {
	return s.DeliverOnSubscribe == nil || *s.DeliverOnSubscribe
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, u := range s.Users {
		if u.Email == "" || u.Password == "" {
			return fmt.Errorf("users[%d]: email and password are required", i)
		}
	}
	for i, p := range s.Products {
		if p.ID == "" {
			return fmt.Errorf("products[%d]: id is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Action {
	case ActionSignIn, ActionSignOut, ActionReload:
	case ActionRequestMode:
		if _, err := engine.ParseViewMode(step.Mode); err != nil {
			return err
		}
	case ActionDeliver:
		if step.Sub < 0 {
			return fmt.Errorf("sub must be non-negative")
		}
	case ActionFail, ActionRejectNext:
		if step.Sub < 0 {
			return fmt.Errorf("sub must be non-negative")
		}
		if step.Error == "" {
			return fmt.Errorf("error is required for %s", step.Action)
		}
	case ActionAddProduct:
		if step.Product == nil {
			return fmt.Errorf("product is required for add_product")
		}
	case ActionSetStock, ActionToggleStock, ActionDeleteProduct:
		if step.ID == "" {
			return fmt.Errorf("id is required for %s", step.Action)
		}
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}

	if step.Expect != nil && step.Expect.Mode != "" {
		if _, err := engine.ParseViewMode(step.Expect.Mode); err != nil {
			return fmt.Errorf("expect: %w", err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("event is required for trace_contains")
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("event is required for trace_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("events list is required for trace_order")
		}
	case AssertFinalView:
		if a.Mode == "" && a.Status == "" && a.Authenticated == nil && a.Products == nil {
			return fmt.Errorf("final_view needs at least one field")
		}
	case AssertSubscriptions:
		if a.Opened == nil && a.Active == nil && a.MaxActive == nil {
			return fmt.Errorf("subscriptions needs opened, active or max_active")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
