package docstore

import (
	"context"
	"sync"
	"testing"

	"github.com/MeBadDev/GDWeb/internal/app"
	"github.com/MeBadDev/GDWeb/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ app.DocStore = (*Memory)(nil)
	_ app.DocStore = None{}
)

type doc struct {
	Name string `json:"name"`
}

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "games", "g1", doc{Name: "a"}))
	require.NoError(t, m.Put(ctx, "games", "g1", doc{Name: "b"}))

	var got doc
	require.NoError(t, m.Get(ctx, "games", "g1", &got))
	assert.Equal(t, "b", got.Name)

	assert.ErrorIs(t, m.Get(ctx, "games", "nope", &got), apperr.ErrNotFound)
	assert.ErrorIs(t, m.Get(ctx, "users", "g1", &got), apperr.ErrNotFound)

	require.NoError(t, m.Delete(ctx, "games", "g1"))
	assert.ErrorIs(t, m.Get(ctx, "games", "g1", &got), apperr.ErrNotFound)
	require.NoError(t, m.Delete(ctx, "games", "g1"))
	require.NoError(t, m.Create(ctx, "games", "g1", doc{Name: "c"}))
}

func TestMemoryCreateOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Create(ctx, "users_by_email", "a@b.c", doc{Name: "x"}) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.ErrorIs(t, m.Create(ctx, "users_by_email", "a@b.c", doc{}), apperr.ErrConflict)
}

func TestNone(t *testing.T) {
	var n None
	assert.False(t, n.Available())
	assert.ErrorIs(t, n.Put(context.Background(), "c", "i", doc{}), apperr.ErrUnavailable)
	assert.ErrorIs(t, n.Get(context.Background(), "c", "i", &doc{}), apperr.ErrUnavailable)
	assert.ErrorIs(t, n.Delete(context.Background(), "c", "i"), apperr.ErrUnavailable)
}
