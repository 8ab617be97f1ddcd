package catalog

import (
	"errors"
)

var (
	// ErrNotFound is returned by Update and Delete when no product has the id.
	ErrNotFound = errors.New("product not found")

	// ErrInvalidProduct is the sentinel wrapped by every *ValidationError.
	ErrInvalidProduct = errors.New("invalid product")
)

// PlaceholderImageURL is shown by renderers when a product has no image.
const PlaceholderImageURL = "https://placehold.co/600x400/e2e8f0/3d4451?text=Item"

// Product is one catalog document as delivered by the collaborator.
type Product struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Price       float64 `json:"price" yaml:"price"`
	Description string  `json:"description" yaml:"description"`
	ImageURL    string  `json:"imageUrl,omitempty" yaml:"image_url,omitempty"`
	InStock     bool    `json:"inStock" yaml:"in_stock"`
}

// Fields are the writable attributes of a product. The id is always
// assigned by the collaborator on create.
type Fields struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	InStock     bool    `json:"inStock"`
}

// Fields returns the writable attributes of p.
func (p Product) Fields() Fields {
	return Fields{
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		InStock:     p.InStock,
	}
}

// WithID builds a product from fields and an id.
func (f Fields) WithID(id string) Product {
	return Product{
		ID:          id,
		Name:        f.Name,
		Price:       f.Price,
		Description: f.Description,
		ImageURL:    f.ImageURL,
		InStock:     f.InStock,
	}
}

// Patch is a partial field update. Nil fields are left untouched.
type Patch struct {
	Name        *string  `json:"name,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Description *string  `json:"description,omitempty"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
	InStock     *bool    `json:"inStock,omitempty"`
}

// StockPatch returns a patch that only sets inStock.
func StockPatch(inStock bool) Patch {
	return Patch{InStock: &inStock}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Price == nil && p.Description == nil && p.ImageURL == nil && p.InStock == nil
}

// Apply returns a copy of prod with the patch applied.
func (p Patch) Apply(prod Product) Product {
	if p.Name != nil {
		prod.Name = *p.Name
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Description != nil {
		prod.Description = *p.Description
	}
	if p.ImageURL != nil {
		prod.ImageURL = *p.ImageURL
	}
	if p.InStock != nil {
		prod.InStock = *p.InStock
	}
	return prod
}

// Snapshot is the display-ordered product list: in-stock items first.
type Snapshot []Product

// Partition orders products for display. It is a stable partition, not a
// sort: in-stock items keep their relative delivery order, as do
// out-of-stock items. The result is never nil.
func Partition(products []Product) Snapshot {
	out := make(Snapshot, 0, len(products))
	for _, p := range products {
		if p.InStock {
			out = append(out, p)
		}
	}
	for _, p := range products {
		if !p.InStock {
			out = append(out, p)
		}
	}
	return out
}

// IDs returns the product ids in order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s))
	for i, p := range s {
		ids[i] = p.ID
	}
	return ids
}

// Clone returns a copy of products that shares no backing array.
func Clone(products []Product) []Product {
	if products == nil {
		return []Product{}
	}
	out := make([]Product, len(products))
	copy(out, products)
	return out
}
