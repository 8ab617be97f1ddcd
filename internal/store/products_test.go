package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storefront/internal/catalog"
)

func TestProducts_InsertListOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertProduct(ctx, catalog.Product{ID: "b", Name: "B", Price: 2, Description: "b", InStock: true}))
	require.NoError(t, s.InsertProduct(ctx, catalog.Product{ID: "a", Name: "A", Price: 1.5, Description: "a"}))

	got, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID, "insertion order, not id order")
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, 1.5, got[1].Price)
	assert.False(t, got[1].InStock)
	assert.True(t, got[0].InStock)
}

func TestProducts_ListEmptyIsNonNil(t *testing.T) {
	s := createTestStore(t)
	got, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestProducts_NegativePriceRejectedByConstraint(t *testing.T) {
	s := createTestStore(t)
	err := s.InsertProduct(context.Background(), catalog.Product{ID: "x", Name: "X", Price: -1, Description: "x"})
	assert.Error(t, err)
}

func TestProducts_Update(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertProduct(ctx, catalog.Product{ID: "p1", Name: "Pen", Price: 1, Description: "d", InStock: true}))

	require.NoError(t, s.UpdateProduct(ctx, "p1", catalog.StockPatch(false)))

	got, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, got.InStock)
	assert.Equal(t, "Pen", got.Name)

	assert.ErrorIs(t, s.UpdateProduct(ctx, "missing", catalog.StockPatch(true)), catalog.ErrNotFound)
}

func TestProducts_Delete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertProduct(ctx, catalog.Product{ID: "p1", Name: "Pen", Description: "d"}))

	require.NoError(t, s.DeleteProduct(ctx, "p1"))
	_, err := s.GetProduct(ctx, "p1")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.ErrorIs(t, s.DeleteProduct(ctx, "p1"), catalog.ErrNotFound)
}

func TestProducts_UpsertKeepsOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertProduct(ctx, catalog.Product{ID: "x", Name: "X", Description: "x"}))
	require.NoError(t, s.UpsertProduct(ctx, catalog.Product{ID: "y", Name: "Y", Description: "y"}))
	require.NoError(t, s.UpsertProduct(ctx, catalog.Product{ID: "x", Name: "X2", Description: "x"}))

	got, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"x", "y"}, catalog.Snapshot(got).IDs())
	assert.Equal(t, "X2", got[0].Name)
}
