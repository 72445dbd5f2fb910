package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/tessera/pkg/adapters/sqlite"
	"github.com/aretw0/tessera/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSchema(t *testing.T, dsn string) (*core.Schema, *sqlite.Adapter) {
	t.Helper()
	a, err := sqlite.Open(dsn)
	require.NoError(t, err)
	s := core.NewSchema(a)
	t.Cleanup(func() { _ = s.Close() })
	return s, a
}

func defineBlog(s *core.Schema) (*core.Model, *core.Model) {
	user := s.Define("User", core.Properties{
		"name":   {Kind: core.String, Index: true},
		"age":    {Kind: core.Number},
		"active": {Kind: core.Boolean},
		"joined": {Kind: core.Date},
		"meta":   {Kind: core.JSON},
		"tags":   {Kind: core.Array},
		"email":  {Kind: core.String, Column: "email_address"},
	})
	post := s.Define("Post", core.Properties{"title": {Kind: core.String}})
	user.HasMany("posts", post, core.RelationOptions{ForeignKey: "userId"})
	post.BelongsTo("author", user, core.RelationOptions{ForeignKey: "userId"})
	return user, post
}

func TestLifecycle(t *testing.T) {
	s, _ := openSchema(t, ":memory:")
	user, _ := defineBlog(s)
	ctx := t.Context()

	u, err := user.Create(ctx, core.Fields{"name": "Ann", "age": 30})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID())

	found, err := user.Find(ctx, u.ID())
	require.NoError(t, err)
	assert.Equal(t, "Ann", found.Get("name"))
	assert.Equal(t, int64(30), found.Get("age"))

	require.NoError(t, found.UpdateAttributes(ctx, core.Fields{"age": 31}))
	found.Set("name", "Anna")
	require.NoError(t, found.Save(ctx))

	again, err := user.Find(ctx, u.ID())
	require.NoError(t, err)
	assert.Equal(t, "Anna", again.Get("name"))
	assert.Equal(t, int64(31), again.Get("age"))

	n, err := user.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, again.Destroy(ctx))
	_, err = user.Find(ctx, u.ID())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestValueRoundTrip(t *testing.T) {
	s, _ := openSchema(t, ":memory:")
	user, _ := defineBlog(s)
	ctx := t.Context()
	joined := time.Date(2024, 2, 29, 12, 30, 0, 500, time.UTC)

	u, err := user.Create(ctx, core.Fields{
		"name":   "Ann",
		"active": true,
		"joined": joined,
		"meta":   map[string]any{"level": 3},
		"tags":   []any{"go", "sql"},
		"email":  "ann@example.com",
	})
	require.NoError(t, err)

	got, err := user.Find(ctx, u.ID())
	require.NoError(t, err)
	assert.Equal(t, true, got.Get("active"))
	assert.True(t, joined.Equal(got.Get("joined").(time.Time)))
	assert.Equal(t, map[string]any{"level": int64(3)}, got.Get("meta"))
	assert.Equal(t, 2, got.List("tags").Len())
	assert.Equal(t, "ann@example.com", got.Get("email"))
}

func TestQueries(t *testing.T) {
	s, _ := openSchema(t, ":memory:")
	user, _ := defineBlog(s)
	ctx := t.Context()
	for i, name := range []string{"alice", "bob", "carol", "dave", "erin"} {
		_, err := user.Create(ctx, core.Fields{"name": name, "age": 20 + i*10})
		require.NoError(t, err)
	}

	names := func(q core.Query) []any {
		t.Helper()
		items, err := user.All(ctx, q)
		require.NoError(t, err)
		out := make([]any, len(items))
		for i, e := range items {
			out[i] = e.Get("name")
		}
		return out
	}

	assert.Equal(t, []any{"dave", "erin"}, names(core.Query{Where: core.Where{"age": core.Ops{"gt": 40}}, Order: "age"}))
	assert.Equal(t, []any{"carol", "alice"}, names(core.Query{Where: core.Where{"name": core.In("alice", "carol")}, Order: "name DESC"}))
	assert.Equal(t, []any{"bob", "carol"}, names(core.Query{Where: core.Where{"age": core.Ops{"between": []any{30, 40}}}, Order: "age"}))
	assert.Equal(t, []any{"carol"}, names(core.Query{Where: core.Where{"name": core.Ops{"like": "CA%"}}}))
	assert.Equal(t, []any{"dave"}, names(core.Query{Where: core.Where{"name": core.Ops{"glob": "d*"}}}))
	assert.Equal(t, []any{"carol", "dave"}, names(core.Query{Order: "age", Skip: 2, Limit: 2}))
	assert.Equal(t, []any{"erin"}, names(core.Query{Order: "age", Skip: 4}))
	assert.Empty(t, names(core.Query{Where: core.Where{"name": core.In()}}))
	assert.Empty(t, names(core.Query{Where: core.Where{"email": "nobody"}}))
	assert.Len(t, names(core.Query{Where: core.Where{"email": nil}}), 5)

	_, err := user.All(ctx, core.Query{Where: core.Where{"name": core.Ops{"regexp": "x"}}})
	assert.Error(t, err)

	n, err := user.Update(ctx, core.Where{"age": core.Ops{"lt": 40}}, core.Fields{"active": true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	active, err := user.Count(ctx, core.Where{"active": true})
	require.NoError(t, err)
	assert.Equal(t, 2, active)
}

func TestRelations(t *testing.T) {
	s, _ := openSchema(t, ":memory:")
	user, post := defineBlog(s)
	ctx := t.Context()

	ann, err := user.Create(ctx, core.Fields{"name": "Ann"})
	require.NoError(t, err)
	_, err = ann.Scope("posts").Create(ctx, core.Fields{"title": "one"})
	require.NoError(t, err)
	_, err = ann.Scope("posts").Create(ctx, core.Fields{"title": "two"})
	require.NoError(t, err)

	users, err := user.All(ctx, core.Query{Include: "posts"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Len(t, users[0].CachedList("posts"), 2)

	posts, err := post.All(ctx, core.Query{Include: "author", Order: "title"})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "Ann", posts[0].CachedOne("author").Get("name"))
}

func TestUpdateOrCreate(t *testing.T) {
	s, _ := openSchema(t, ":memory:")
	user, _ := defineBlog(s)
	ctx := t.Context()

	created, err := user.UpdateOrCreate(ctx, core.Fields{"id": 7, "name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID())

	updated, err := user.UpdateOrCreate(ctx, core.Fields{"id": 7, "name": "Anna"})
	require.NoError(t, err)
	assert.Equal(t, "Anna", updated.Get("name"))

	n, err := user.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	next, err := user.Create(ctx, core.Fields{"name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(8), next.ID())
}

func TestDuplicateKey(t *testing.T) {
	a, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	a.Define(core.Definition{Name: "Tag", Columns: []core.Column{{Name: "id"}, {Name: "label", Kind: core.String}}})
	ctx := t.Context()

	_, _, err = a.Create(ctx, "Tag", core.Fields{"id": int64(1), "label": "a"})
	require.NoError(t, err)
	_, _, err = a.Create(ctx, "Tag", core.Fields{"id": int64(1), "label": "b"})
	assert.ErrorIs(t, err, sqlite.ErrDuplicateKey)

	_, _, err = a.Create(ctx, "Tag", core.Fields{"color": "red"})
	assert.Error(t, err)

	_, err = a.Count(ctx, "Nope", nil)
	assert.Error(t, err)
}

func TestAutoupdateAddsColumns(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "tessera.db")
	ctx := t.Context()

	s1, _ := openSchema(t, dsn)
	note := s1.Define("Note", core.Properties{"title": {Kind: core.String}})
	_, err := note.Create(ctx, core.Fields{"title": "kept"})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, a := openSchema(t, dsn)
	note = s2.Define("Note", core.Properties{
		"title": {Kind: core.String},
		"body":  {Kind: core.Text},
	})
	require.NoError(t, s2.Autoupdate(ctx))

	items, err := note.All(ctx, core.Query{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "kept", items[0].Get("title"))
	assert.Nil(t, items[0].Get("body"))

	state := a.State().(sqlite.AdapterState)
	assert.Equal(t, []string{"Note"}, state.Models)
	assert.Equal(t, "sqlite", a.ComponentType())

	require.NoError(t, s2.Automigrate(ctx))
	n, err := note.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConnect(t *testing.T) {
	a, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Connect(context.Background()))

	_, err = sqlite.Open("  ")
	assert.Error(t, err)
}
