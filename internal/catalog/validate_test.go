package catalog

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() Fields {
	return Fields{Name: "Pen", Price: 1.5, Description: "Blue ink", InStock: true}
}

func TestValidate_Accepts(t *testing.T) {
	got, err := Validate(validFields())
	require.NoError(t, err)
	assert.Equal(t, "Pen", got.Name)
	assert.Equal(t, 1.5, got.Price)
}

func TestValidate_AcceptsZeroPriceAndImage(t *testing.T) {
	f := validFields()
	f.Price = 0
	f.ImageURL = "https://example.com/pen.png"
	_, err := Validate(f)
	assert.NoError(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Fields)
		field  string
	}{
		{"empty name", func(f *Fields) { f.Name = "" }, "name"},
		{"blank name", func(f *Fields) { f.Name = "   " }, "name"},
		{"empty description", func(f *Fields) { f.Description = "" }, "description"},
		{"negative price", func(f *Fields) { f.Price = -0.01 }, "price"},
		{"nan price", func(f *Fields) { f.Price = math.NaN() }, "price"},
		{"infinite price", func(f *Fields) { f.Price = math.Inf(1) }, "price"},
		{"non-http image", func(f *Fields) { f.ImageURL = "ftp://example.com/x.png" }, "imageUrl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(&f)

			_, err := Validate(f)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProduct))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Error(), tt.field)
		})
	}
}

func TestNormalize_TrimsAndComposes(t *testing.T) {
	// "e" followed by a combining acute accent composes to U+00E9.
	f := Fields{Name: "  Café mug ", Description: " hot\t"}
	got := Normalize(f)
	assert.Equal(t, "Café mug", got.Name)
	assert.Equal(t, "hot", got.Description)
}
