package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/tessera/pkg/adapters/memory"
	"github.com/aretw0/tessera/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs(t *testing.T) {
	a := memory.New()
	ctx := t.Context()

	id, _, err := a.Create(ctx, "Note", core.Fields{"title": "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id, _, err = a.Create(ctx, "Note", core.Fields{"id": int64(10), "title": "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	id, _, err = a.Create(ctx, "Note", core.Fields{"title": "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id, "explicit ids advance the sequence")

	require.NoError(t, a.DestroyAll(ctx, "Note"))
	id, _, err = a.Create(ctx, "Note", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
}

func TestRecordsAreCopied(t *testing.T) {
	a := memory.New()
	ctx := t.Context()
	data := core.Fields{"title": "a"}
	id, _, err := a.Create(ctx, "Note", data)
	require.NoError(t, err)
	data["title"] = "mutated"

	row, err := a.Find(ctx, "Note", id)
	require.NoError(t, err)
	assert.Equal(t, "a", row["title"])
	row["title"] = "mutated"

	again, err := a.Find(ctx, "Note", int64(1))
	require.NoError(t, err)
	assert.Equal(t, "a", again["title"])
}

func TestUpdates(t *testing.T) {
	a := memory.New()
	ctx := t.Context()
	for _, n := range []int64{1, 2, 3} {
		_, _, err := a.Create(ctx, "Note", core.Fields{"rank": n, "title": "t"})
		require.NoError(t, err)
	}

	require.NoError(t, a.UpdateAttributes(ctx, "Note", 2.0, core.Fields{"title": "two"}))
	row, err := a.Find(ctx, "Note", 2)
	require.NoError(t, err)
	assert.Equal(t, core.Fields{"id": int64(2), "rank": int64(2), "title": "two"}, row)

	err = a.UpdateAttributes(ctx, "Note", 99, core.Fields{"title": "x"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	n, err := a.Update(ctx, "Note", core.Where{"rank": core.Ops{"gte": 2}}, core.Fields{"title": "late", "id": 50})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	late, err := a.Count(ctx, "Note", core.Where{"title": "late"})
	require.NoError(t, err)
	assert.Equal(t, 2, late)

	require.NoError(t, a.Save(ctx, "Note", core.Fields{"id": int64(3), "title": "replaced"}))
	row, err = a.Find(ctx, "Note", 3)
	require.NoError(t, err)
	assert.Equal(t, core.Fields{"id": int64(3), "title": "replaced"}, row)
	assert.Error(t, a.Save(ctx, "Note", core.Fields{"title": "no id"}))

	require.NoError(t, a.Destroy(ctx, "Note", 1))
	ok, err := a.Exists(ctx, "Note", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := a.All(ctx, "Note", core.Query{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0]["id"], "insertion order is kept")
}

func TestUnknownModel(t *testing.T) {
	a := memory.New()
	ctx := t.Context()
	rows, err := a.All(ctx, "Ghost", core.Query{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	n, err := a.Count(ctx, "Ghost", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCanceledContext(t *testing.T) {
	a := memory.New()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, _, err := a.Create(ctx, "Note", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentCreates(t *testing.T) {
	a := memory.New()
	ctx := t.Context()
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			_, _, _ = a.Create(ctx, "Note", core.Fields{"title": "x"})
		})
	}
	wg.Wait()
	n, err := a.Count(ctx, "Note", nil)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	state := a.State().(memory.AdapterState)
	assert.Equal(t, map[string]int{"Note": 50}, state.Tables)
	assert.Equal(t, "memory", a.ComponentType())
}
