package catalog

import (
	_ "embed"
	"fmt"
	"math"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"golang.org/x/text/unicode/norm"
)

//go:embed product.cue
var productSchema string

// ValidationError describes the first field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid product: %s: %s", e.Field, e.Message)
	}
	return "invalid product: " + e.Message
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidProduct).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidProduct
}

// schemaValidator owns the compiled CUE schema. cue values from one
// context are not safe for concurrent use, so all access is serialized.
type schemaValidator struct {
	once    sync.Once
	mu      sync.Mutex
	ctx     *cue.Context
	product cue.Value
	err     error
}

var validator schemaValidator

func (v *schemaValidator) init() {
	v.ctx = cuecontext.New()
	schema := v.ctx.CompileString(productSchema, cue.Filename("product.cue"))
	if err := schema.Err(); err != nil {
		v.err = fmt.Errorf("compile product schema: %w", err)
		return
	}
	v.product = schema.LookupPath(cue.ParsePath("#Product"))
	if err := v.product.Err(); err != nil {
		v.err = fmt.Errorf("lookup #Product: %w", err)
	}
}

func (v *schemaValidator) validate(f Fields) error {
	v.once.Do(v.init)
	if v.err != nil {
		return v.err
	}

	doc := map[string]any{
		"name":        f.Name,
		"price":       f.Price,
		"description": f.Description,
		"inStock":     f.InStock,
	}
	if f.ImageURL != "" {
		doc["imageUrl"] = f.ImageURL
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	val := v.product.Unify(v.ctx.Encode(doc))
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return schemaError(err)
	}
	return nil
}

// schemaError converts the first CUE error into a ValidationError.
func schemaError(err error) *ValidationError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	first := errs[0]
	field := ""
	for _, sel := range first.Path() {
		if !strings.HasPrefix(sel, "#") {
			field = sel
		}
	}
	format, args := first.Msg()
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Normalize trims surrounding whitespace and NFC-normalizes the text fields
// so visually identical names compare equal.
func Normalize(f Fields) Fields {
	f.Name = norm.NFC.String(strings.TrimSpace(f.Name))
	f.Description = norm.NFC.String(strings.TrimSpace(f.Description))
	f.ImageURL = strings.TrimSpace(f.ImageURL)
	return f
}

// Validate normalizes f and checks it against the product schema:
// name and description non-empty, price a finite number >= 0.
func Validate(f Fields) (Fields, error) {
	f = Normalize(f)
	if math.IsNaN(f.Price) || math.IsInf(f.Price, 0) {
		return f, &ValidationError{Field: "price", Message: "must be a finite number"}
	}
	if err := validator.validate(f); err != nil {
		return f, err
	}
	return f, nil
}
