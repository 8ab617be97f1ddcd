package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_CreateAssignsIDAndKeepsNumericPrice(t *testing.T) {
	m := NewMemory(NewFixedGenerator("p-1"))
	ctx := context.Background()

	var rec recorder
	_, err := m.Subscribe(ctx, rec.onSnapshot, rec.onError)
	require.NoError(t, err)

	id, err := m.Create(ctx, Fields{Name: "Pen", Price: 1.5, Description: "blue", InStock: true})
	require.NoError(t, err)
	assert.Equal(t, "p-1", id)

	require.Len(t, rec.snapshots, 2)
	last := rec.snapshots[1]
	require.Len(t, last, 1)
	assert.Equal(t, "p-1", last[0].ID)
	assert.Equal(t, 1.5, last[0].Price)
}

func TestMemory_UpdateAndDelete(t *testing.T) {
	m := NewMemory(NewFixedGenerator("a", "b"))
	ctx := context.Background()

	_, err := m.Create(ctx, Fields{Name: "A", InStock: true})
	require.NoError(t, err)
	_, err = m.Create(ctx, Fields{Name: "B", InStock: true})
	require.NoError(t, err)

	require.NoError(t, m.Update(ctx, "a", StockPatch(false)))
	list, err := m.List(ctx)
	require.NoError(t, err)
	assert.False(t, list[0].InStock)

	require.NoError(t, m.Delete(ctx, "a"))
	list, err = m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
}

func TestMemory_NotFound(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	assert.ErrorIs(t, m.Update(ctx, "missing", StockPatch(true)), ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "missing"), ErrNotFound)
}

func TestMemory_UpsertKeepsPosition(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, Product{ID: "x", Name: "X"}))
	require.NoError(t, m.Upsert(ctx, Product{ID: "y", Name: "Y"}))
	require.NoError(t, m.Upsert(ctx, Product{ID: "x", Name: "X2"}))

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "x", list[0].ID)
	assert.Equal(t, "X2", list[0].Name)
}

func TestFixedGenerator_Exhausts(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
