package core_test

import (
	"testing"

	"github.com/aretw0/tessera/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBlog(t *testing.T, f *fixture) []*core.Entity {
	t.Helper()
	ctx := t.Context()
	var users []*core.Entity
	for _, name := range []string{"Ann", "Bob", "Cid"} {
		u, err := f.User.Create(ctx, core.Fields{"name": name})
		require.NoError(t, err)
		users = append(users, u)
	}
	for i, u := range users[:2] {
		for j := 0; j <= i; j++ {
			_, err := f.Post.Create(ctx, core.Fields{"title": u.Get("name"), "author": u})
			require.NoError(t, err)
		}
	}
	return users
}

func TestInclude_HasMany(t *testing.T) {
	f := newFixture(t)
	seedBlog(t, f)

	users, err := f.User.All(t.Context(), core.Query{Include: "posts", Order: "name"})
	require.NoError(t, err)
	require.Len(t, users, 3)

	assert.Len(t, users[0].CachedList("posts"), 1)
	assert.Len(t, users[1].CachedList("posts"), 2)

	empty, ok := users[2].Cached("posts")
	require.True(t, ok, "parents without children still get an entry")
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	assert.Equal(t, 1, f.spy.Calls("All:Post"), "one query per relation")
}

func TestInclude_BelongsToAndNested(t *testing.T) {
	f := newFixture(t)
	seedBlog(t, f)
	_, err := f.Post.Create(t.Context(), core.Fields{"title": "orphan"})
	require.NoError(t, err)

	posts, err := f.Post.All(t.Context(), core.Query{Include: core.Include{"author": "posts"}})
	require.NoError(t, err)
	require.Len(t, posts, 4)

	for _, p := range posts[:3] {
		author := p.CachedOne("author")
		require.NotNil(t, author)
		assert.Equal(t, p.Get("title"), author.Get("name"))
		assert.NotEmpty(t, author.CachedList("posts"))
	}
	v, ok := posts[3].Cached("author")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestInclude_Forms(t *testing.T) {
	f := newFixture(t)
	seedBlog(t, f)
	ctx := t.Context()

	for name, spec := range map[string]any{
		"slice":  []string{"posts"},
		"mixed":  []any{"posts", map[string]any{"posts": []any{"author"}}},
		"nested": map[string]any{"posts": "author"},
	} {
		t.Run(name, func(t *testing.T) {
			users, err := f.User.All(ctx, core.Query{Include: spec})
			require.NoError(t, err)
			require.Len(t, users, 3)
			assert.NotNil(t, users[0].CachedList("posts"))
		})
	}
}

func TestInclude_UndefinedRelation(t *testing.T) {
	f := newFixture(t)
	seedBlog(t, f)

	users, err := f.User.All(t.Context(), core.Query{Include: "dontexist"})
	require.ErrorIs(t, err, core.ErrUndefinedRelation)
	assert.Contains(t, err.Error(), `relation "dontexist" is not defined for User model`)
	assert.Nil(t, users)

	_, err = f.User.All(t.Context(), core.Query{Include: 42})
	assert.ErrorIs(t, err, core.ErrUsage)
}

func TestInclude_Collect(t *testing.T) {
	f := newFixture(t)
	seedBlog(t, f)

	authors, err := f.Post.All(t.Context(), core.Query{
		Where:   core.Where{"title": "Bob"},
		Include: "author",
		Collect: "author",
	})
	require.NoError(t, err)
	require.Len(t, authors, 2)
	for _, a := range authors {
		assert.Equal(t, "Bob", a.Get("name"))
	}
}
