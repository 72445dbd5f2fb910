package core_test

import (
	"errors"
	"testing"

	"github.com/aretw0/tessera/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	u, err := f.User.Create(ctx, core.Fields{"name": "Ann", "age": "42"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID())
	assert.False(t, u.IsNew())
	assert.Empty(t, u.Changed())

	found, err := f.User.Find(ctx, u.ID())
	require.NoError(t, err)
	assert.Equal(t, u.ToObject(true), found.ToObject(true))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	f.User.UseValidator(requireName{})
	ctx := t.Context()

	_, err := f.User.Create(ctx, core.Fields{"email": "a@b.c"})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"presence"}, verr.Codes["name"])
	assert.Equal(t, []string{"can't be blank"}, verr.Messages["name"])

	n, err := f.User.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n, "invalid entity must not reach the adapter")

	e := f.User.New(nil)
	require.Error(t, e.Save(ctx))
	require.NotNil(t, e.Errors())
	assert.Same(t, e, e.Errors().Subject)

	e.Set("name", "fixed")
	require.NoError(t, e.Save(ctx))
	assert.Nil(t, e.Errors())

	skipped, err := f.User.Create(ctx, nil, core.SkipValidation())
	require.NoError(t, err)
	assert.False(t, skipped.IsNew())
}

func TestLifecycle_HookOrder(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	f.User.UseHooks(rec)
	ctx := t.Context()

	u, err := f.User.Create(ctx, core.Fields{"name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, []string{"before create", "before save", "after save", "after create"}, rec.Events())

	rec.events = nil
	u.Set("name", "Bea")
	require.NoError(t, u.Save(ctx))
	assert.Equal(t, []string{"before save", "before update", "after update", "after save"}, rec.Events())

	rec.events = nil
	require.NoError(t, u.Destroy(ctx))
	assert.Equal(t, []string{"before destroy", "after destroy"}, rec.Events())
	assert.Equal(t, "Bea", rec.data["after destroy"]["name"])

	exists, err := f.User.Exists(ctx, u.ID())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLifecycle_HookAbort(t *testing.T) {
	f := newFixture(t)
	f.User.UseHooks(&recorder{abort: core.EventSave})
	ctx := t.Context()

	_, err := f.User.Create(ctx, core.Fields{"name": "Ann"})
	require.ErrorIs(t, err, errAborted)
	assert.Zero(t, f.spy.Calls("Create:User"))
}

func TestLifecycle_AdapterErrorSkipsPostHooks(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	f.User.UseHooks(rec)
	boom := errors.New("disk full")
	f.spy.failCreate = boom

	_, err := f.User.Create(t.Context(), core.Fields{"name": "Ann"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"before create", "before save"}, rec.Events())
}

func TestCreateMany_Positional(t *testing.T) {
	f := newFixture(t)
	f.User.UseValidator(requireName{})
	ctx := t.Context()

	items, err := f.User.CreateMany(ctx, []core.Fields{{"name": "a"}, {}, {"name": "c"}})
	var batch *core.BatchError
	require.ErrorAs(t, err, &batch)
	require.Len(t, items, 3)
	require.Len(t, batch.Errors, 3)

	assert.NoError(t, batch.Errors[0])
	assert.Error(t, batch.Errors[1])
	assert.NoError(t, batch.Errors[2])
	assert.False(t, items[0].IsNew())
	assert.True(t, items[1].IsNew())
	assert.Equal(t, "c", items[2].Get("name"))

	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr, "element errors are reachable through the batch")

	empty, err := f.User.CreateMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateAttributes_AdvancesOnlyGivenKeys(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	u, err := f.User.Create(ctx, core.Fields{"name": "Ann", "bio": "old"})
	require.NoError(t, err)

	u.Set("bio", "pending")
	require.NoError(t, u.UpdateAttributes(ctx, core.Fields{"name": "Bea"}))
	assert.False(t, u.PropertyChanged("name"))
	assert.True(t, u.PropertyChanged("bio"))

	fresh, err := u.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bea", fresh.Get("name"))
	assert.Equal(t, "old", fresh.Get("bio"))

	require.NoError(t, u.UpdateAttribute(ctx, "age", "5"))
	fresh, err = u.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), fresh.Get("age"))
}

func TestSave_WritesFullRecord(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	u, err := f.User.Create(ctx, core.Fields{"name": "Ann"})
	require.NoError(t, err)
	u.Set("bio", "hello")
	u.Set("age", 3)
	require.NoError(t, u.Save(ctx))
	assert.Empty(t, u.Changed())
	assert.Equal(t, 1, f.spy.Calls("Save:User"))

	fresh, err := f.User.Find(ctx, u.ID())
	require.NoError(t, err)
	assert.Equal(t, "hello", fresh.Get("bio"))
	assert.Equal(t, int64(3), fresh.Get("age"))
}

func TestUnsavedEntityUsage(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	e := f.User.New(core.Fields{"name": "Ann"})

	assert.ErrorIs(t, e.Destroy(ctx), core.ErrUsage)
	assert.ErrorIs(t, e.UpdateAttributes(ctx, core.Fields{"name": "x"}), core.ErrUsage)
	_, err := e.Reload(ctx)
	assert.ErrorIs(t, err, core.ErrUsage)
}

func TestUpdateOrCreate(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	created, err := f.User.UpdateOrCreate(ctx, core.Fields{"id": 10, "name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), created.ID())

	updated, err := f.User.UpdateOrCreate(ctx, core.Fields{"id": 10, "name": "Bea"})
	require.NoError(t, err)
	assert.Equal(t, "Bea", updated.Get("name"))

	n, err := f.User.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fresh, err := f.User.Create(ctx, core.Fields{"name": "next"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), fresh.ID(), "explicit ids advance the sequence")
}

func TestFindOrCreate(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	a, err := f.User.FindOrCreate(ctx, core.Query{Where: core.Where{"email": "a@x.io"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", a.Get("email"))

	b, err := f.User.FindOrCreate(ctx, core.Query{Where: core.Where{"email": "a@x.io"}}, core.Fields{"email": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, a.ID(), b.ID())
}

func TestUpdate_Bulk(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.User.CreateMany(ctx, []core.Fields{{"name": "a", "age": 1}, {"name": "b", "age": 1}, {"name": "c", "age": 2}})
	require.NoError(t, err)

	n, err := f.User.Update(ctx, core.Where{"age": 1}, core.Fields{"bio": "one"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ones, err := f.User.All(ctx, core.Query{Where: core.Where{"bio": "one"}})
	require.NoError(t, err)
	assert.Len(t, ones, 2)
}
