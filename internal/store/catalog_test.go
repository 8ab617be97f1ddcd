package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storefront/internal/catalog"
)

type snapshots struct {
	mu  sync.Mutex
	got [][]catalog.Product
}

func (s *snapshots) add(p []catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, p)
}

func (s *snapshots) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func (s *snapshots) last() []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got[len(s.got)-1]
}

func TestCatalog_CreateDeliversAssignedID(t *testing.T) {
	c := NewCatalog(createTestStore(t), catalog.NewFixedGenerator("pen-1"))
	ctx := context.Background()

	var snaps snapshots
	sub, err := c.Subscribe(ctx, snaps.add, func(error) {})
	require.NoError(t, err)
	defer sub.Cancel()
	require.Equal(t, 1, snaps.len())
	assert.Empty(t, snaps.last())

	id, err := c.Create(ctx, catalog.Fields{Name: "Pen", Price: 1.5, Description: "blue", InStock: true})
	require.NoError(t, err)
	assert.Equal(t, "pen-1", id)

	require.Equal(t, 2, snaps.len())
	last := snaps.last()
	require.Len(t, last, 1)
	assert.Equal(t, "pen-1", last[0].ID)
	assert.Equal(t, 1.5, last[0].Price)
}

func TestCatalog_MutationsNotify(t *testing.T) {
	c := NewCatalog(createTestStore(t), catalog.NewFixedGenerator("a"))
	ctx := context.Background()

	_, err := c.Create(ctx, catalog.Fields{Name: "A", Description: "a", InStock: true})
	require.NoError(t, err)

	var snaps snapshots
	_, err = c.Subscribe(ctx, snaps.add, func(error) {})
	require.NoError(t, err)

	require.NoError(t, c.Update(ctx, "a", catalog.StockPatch(false)))
	assert.False(t, snaps.last()[0].InStock)

	require.NoError(t, c.Upsert(ctx, catalog.Product{ID: "b", Name: "B", Description: "b"}))
	assert.Len(t, snaps.last(), 2)

	require.NoError(t, c.Delete(ctx, "a"))
	assert.Len(t, snaps.last(), 1)

	assert.ErrorIs(t, c.Delete(ctx, "a"), catalog.ErrNotFound)
	assert.Equal(t, 4, snaps.len(), "failed mutation delivers nothing")
}

func TestCatalog_CloseFailsSubscribers(t *testing.T) {
	c := NewCatalog(createTestStore(t), nil)

	var got error
	_, err := c.Subscribe(context.Background(), func([]catalog.Product) {}, func(err error) { got = err })
	require.NoError(t, err)

	c.Close(assert.AnError)
	assert.ErrorIs(t, got, assert.AnError)
}

func TestCatalog_PollPicksUpExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	server, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	writer, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { writer.Close() })

	c := NewCatalog(server, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var snaps snapshots
	_, err = c.Subscribe(ctx, snaps.add, func(error) {})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Poll(ctx, 10*time.Millisecond) }()

	// Poll reads its baseline asynchronously, so keep writing until a
	// delivery shows up.
	n := 0
	require.Eventually(t, func() bool {
		if snaps.len() >= 2 {
			return true
		}
		n++
		err := writer.InsertProduct(ctx, catalog.Product{ID: fmt.Sprintf("ext-%d", n), Name: "Ext", Description: "e"})
		assert.NoError(t, err)
		return false
	}, 5*time.Second, 20*time.Millisecond)
	assert.NotEmpty(t, snaps.last())

	cancel()
	assert.NoError(t, <-done)
}
