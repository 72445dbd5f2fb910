package hooks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/tessera/pkg/adapters/memory"
	"github.com/aretw0/tessera/pkg/core"
	"github.com/aretw0/tessera/pkg/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Timestamps(t *testing.T) {
	s := core.NewSchema(memory.New())
	post := s.Define("Post", core.Properties{
		"title":     {Kind: core.String},
		"updatedAt": {Kind: core.Date},
	})
	stamp := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	post.UseHooks(hooks.New().Before(core.EventSave, func(_ context.Context, e *core.Entity, _ core.Fields) error {
		e.Set("updatedAt", stamp)
		return nil
	}))

	p, err := post.Create(t.Context(), core.Fields{"title": "x"})
	require.NoError(t, err)

	fresh, err := post.Find(t.Context(), p.ID())
	require.NoError(t, err)
	assert.True(t, stamp.Equal(fresh.Get("updatedAt").(time.Time)), "values set by before-save hooks are persisted")
}

func TestRegistry_BeforeAborts(t *testing.T) {
	s := core.NewSchema(memory.New())
	user := s.Define("User", core.Properties{"name": {Kind: core.String}})
	deny := errors.New("read-only")

	var after []core.Event
	reg := hooks.New().
		Before(core.EventDestroy, func(context.Context, *core.Entity, core.Fields) error { return deny }).
		After(core.EventCreate, func(_ context.Context, _ *core.Entity, _ core.Fields) error {
			after = append(after, core.EventCreate)
			return nil
		})
	user.UseHooks(reg)

	u, err := user.Create(t.Context(), core.Fields{"name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, []core.Event{core.EventCreate}, after)

	err = u.Destroy(t.Context())
	require.ErrorIs(t, err, deny)
	assert.Contains(t, err.Error(), "before destroy")

	ok, err := user.Exists(t.Context(), u.ID())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegistry_DestroySnapshot(t *testing.T) {
	s := core.NewSchema(memory.New())
	user := s.Define("User", core.Properties{"name": {Kind: core.String}})
	var seen core.Fields
	user.UseHooks(hooks.New().After(core.EventDestroy, func(_ context.Context, _ *core.Entity, data core.Fields) error {
		seen = data
		return nil
	}))

	u, err := user.Create(t.Context(), core.Fields{"name": "Ann"})
	require.NoError(t, err)
	require.NoError(t, u.Destroy(t.Context()))
	assert.Equal(t, "Ann", seen["name"])
	assert.Equal(t, u.ID(), seen["id"])
}
