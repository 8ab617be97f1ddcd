// Package dispatch turns user intents into collaborator calls.
//
// The dispatcher validates input and forwards commands to the catalog or
// identity collaborator. It never touches view state: the effect of a
// successful command shows up only through the next catalog snapshot or
// identity delivery.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/storefront/internal/catalog"
	"github.com/roach88/storefront/internal/identity"
	"github.com/roach88/storefront/internal/metrics"
)

// Op names a command.
type Op string

const (
	OpAddProduct    Op = "add_product"
	OpSetStock      Op = "set_stock"
	OpToggleStock   Op = "toggle_stock"
	OpDeleteProduct Op = "delete_product"
	OpSignIn        Op = "sign_in"
	OpSignOut       Op = "sign_out"
)

// Command is an explicit user intent.
type Command struct {
	Op Op `json:"op" yaml:"op"`

	// ID targets set_stock, toggle_stock and delete_product.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Fields is the product for add_product.
	Fields catalog.Fields `json:"fields,omitempty" yaml:"fields,omitempty"`

	// InStock is the new value for set_stock and the current value for
	// toggle_stock.
	InStock bool `json:"inStock,omitempty" yaml:"in_stock,omitempty"`

	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	Password string `json:"-" yaml:"password,omitempty"`
}

// Result is what a successful command returns.
type Result struct {
	// ID is the collaborator-assigned id for add_product.
	ID string `json:"id,omitempty"`
}

// Authenticator is the sign-in side of the identity collaborator.
// identity.Session implements it.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

// Dispatcher executes commands for one client.
type Dispatcher struct {
	catalog catalog.Collaborator
	auth    Authenticator
	metrics *metrics.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics counts commands by op and result.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New creates a dispatcher. auth may be nil for catalog-only use.
func New(c catalog.Collaborator, auth Authenticator, opts ...Option) *Dispatcher {
	d := &Dispatcher{catalog: c, auth: auth}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch executes cmd.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	switch cmd.Op {
	case OpAddProduct:
		id, err := d.AddProduct(ctx, cmd.Fields)
		return Result{ID: id}, err
	case OpSetStock:
		return Result{}, d.SetStock(ctx, cmd.ID, cmd.InStock)
	case OpToggleStock:
		return Result{}, d.ToggleStock(ctx, cmd.ID, cmd.InStock)
	case OpDeleteProduct:
		return Result{}, d.DeleteProduct(ctx, cmd.ID)
	case OpSignIn:
		return Result{}, d.SignIn(ctx, cmd.Email, cmd.Password)
	case OpSignOut:
		return Result{}, d.SignOut(ctx)
	default:
		return Result{}, fmt.Errorf("unknown command %q", cmd.Op)
	}
}

// AddProduct validates f and creates the product. Returns the id the
// catalog assigned.
func (d *Dispatcher) AddProduct(ctx context.Context, f catalog.Fields) (string, error) {
	valid, err := catalog.Validate(f)
	if err != nil {
		return "", d.fail(OpAddProduct, "", err)
	}

	id, err := d.catalog.Create(ctx, valid)
	if err != nil {
		return "", d.fail(OpAddProduct, "", err)
	}
	d.metrics.Command(string(OpAddProduct), nil)
	slog.Info("product added", "id", id, "name", valid.Name)
	return id, nil
}

// SetStock sets the inStock flag of product id.
func (d *Dispatcher) SetStock(ctx context.Context, id string, inStock bool) error {
	return d.setStock(ctx, OpSetStock, id, inStock)
}

// ToggleStock flips the inStock flag given the value currently displayed.
func (d *Dispatcher) ToggleStock(ctx context.Context, id string, current bool) error {
	return d.setStock(ctx, OpToggleStock, id, !current)
}

func (d *Dispatcher) setStock(ctx context.Context, op Op, id string, inStock bool) error {
	if strings.TrimSpace(id) == "" {
		return d.fail(op, id, catalog.ErrNotFound)
	}
	if err := d.catalog.Update(ctx, id, catalog.StockPatch(inStock)); err != nil {
		return d.fail(op, id, err)
	}
	d.metrics.Command(string(op), nil)
	slog.Info("stock updated", "id", id, "in_stock", inStock)
	return nil
}

// DeleteProduct removes product id.
func (d *Dispatcher) DeleteProduct(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return d.fail(OpDeleteProduct, id, catalog.ErrNotFound)
	}
	if err := d.catalog.Delete(ctx, id); err != nil {
		return d.fail(OpDeleteProduct, id, err)
	}
	d.metrics.Command(string(OpDeleteProduct), nil)
	slog.Info("product deleted", "id", id)
	return nil
}

func (d *Dispatcher) fail(op Op, id string, err error) error {
	d.metrics.Command(string(op), err)
	slog.Warn("command failed", "op", string(op), "id", id, "error", err)
	return &MutationError{Op: op, ID: id, Err: err}
}

// SignIn checks the form locally, then asks the identity collaborator.
func (d *Dispatcher) SignIn(ctx context.Context, email, password string) error {
	err := d.signIn(ctx, email, password)
	d.metrics.Command(string(OpSignIn), err)
	return err
}

func (d *Dispatcher) signIn(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return &AuthError{Code: CodeMissingFields, Err: ErrMissingFields}
	}
	if d.auth == nil {
		return &AuthError{Code: CodeUnavailable, Err: errors.New("no identity service configured")}
	}

	if err := d.auth.SignIn(ctx, email, password); err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return &AuthError{Code: CodeInvalidCredential, Err: err}
		}
		slog.Error("identity service failed", "error", err)
		return &AuthError{Code: CodeUnavailable, Err: err}
	}
	return nil
}

// SignOut ends the identity session.
func (d *Dispatcher) SignOut(ctx context.Context) error {
	if d.auth == nil {
		return nil
	}
	err := d.auth.SignOut(ctx)
	d.metrics.Command(string(OpSignOut), err)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}
