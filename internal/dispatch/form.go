package dispatch

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/roach88/storefront/internal/catalog"
)

// PriceInput is a price as typed into a form. It decodes from either a
// JSON string or a JSON number.
type PriceInput string

func (p *PriceInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PriceInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PriceInput(n.String())
	return nil
}

// ProductForm is the add-product form before conversion.
type ProductForm struct {
	Name        string     `json:"name"`
	Price       PriceInput `json:"price"`
	Description string     `json:"description"`
	ImageURL    string     `json:"imageUrl"`
	// InStock defaults to true when omitted.
	InStock *bool `json:"inStock"`
}

// ParseProductForm converts form input into validated product fields. The
// price is stored as a number.
func ParseProductForm(f ProductForm) (catalog.Fields, error) {
	raw := strings.TrimSpace(string(f.Price))
	if raw == "" {
		return catalog.Fields{}, &catalog.ValidationError{Field: "price", Message: "is required"}
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return catalog.Fields{}, &catalog.ValidationError{Field: "price", Message: "must be a number"}
	}

	inStock := true
	if f.InStock != nil {
		inStock = *f.InStock
	}

	return catalog.Validate(catalog.Fields{
		Name:        f.Name,
		Price:       price,
		Description: f.Description,
		ImageURL:    f.ImageURL,
		InStock:     inStock,
	})
}
