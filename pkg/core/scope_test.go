package core_test

import (
	"testing"

	"github.com/aretw0/tessera/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_CacheAndRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	u, err := f.User.Create(ctx, core.Fields{"name": "Ann"})
	require.NoError(t, err)
	_, err = u.Scope("posts").Create(ctx, core.Fields{"title": "first"})
	require.NoError(t, err)

	posts, err := u.Scope("posts").Get(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, u.ID(), posts[0].Get("userId"))

	_, err = f.Post.Create(ctx, core.Fields{"title": "second", "userId": u.ID()})
	require.NoError(t, err)

	calls := f.spy.Calls("All:Post")
	cached, err := u.Scope("posts").Get(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1, "plain fetch answers from the cache")
	assert.Equal(t, calls, f.spy.Calls("All:Post"), "cached fetch does not reach the adapter")
	assert.Same(t, &posts[0], &cached[0], "cached fetch returns the same result")
	assert.Same(t, posts[0], cached[0])
	assert.Len(t, u.CachedList("posts"), 1)

	fresh, err := u.Scope("posts").Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)

	filtered, err := u.Scope("posts").Where(ctx, core.Query{Where: core.Where{"title": "second"}})
	require.NoError(t, err)
	assert.Len(t, filtered, 1)

	again, err := u.Scope("posts").Get(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 2, "ad hoc conditions never overwrite the cache")

	_, err = u.Scope("posts").Fetch(ctx, core.Refresh(true), core.PlainFetch)
	assert.ErrorIs(t, err, core.ErrUsage)
}

func TestScope_BoundConditionsWin(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	ann, err := f.User.Create(ctx, core.Fields{"name": "Ann"})
	require.NoError(t, err)
	bob, err := f.User.Create(ctx, core.Fields{"name": "Bob"})
	require.NoError(t, err)
	_, err = bob.Scope("posts").Create(ctx, core.Fields{"title": "bob's"})
	require.NoError(t, err)

	leaked, err := ann.Scope("posts").Where(ctx, core.Query{Where: core.Where{"userId": bob.ID()}})
	require.NoError(t, err)
	assert.Empty(t, leaked)
}

func TestScope_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	ann, err := f.User.Create(ctx, core.Fields{"name": "Ann"})
	require.NoError(t, err)
	bob, err := f.User.Create(ctx, core.Fields{"name": "Bob"})
	require.NoError(t, err)
	mine, err := ann.Scope("posts").Create(ctx, core.Fields{"title": "mine"})
	require.NoError(t, err)
	theirs, err := bob.Scope("posts").Create(ctx, core.Fields{"title": "theirs"})
	require.NoError(t, err)

	found, err := ann.Scope("posts").Find(ctx, mine.ID())
	require.NoError(t, err)
	assert.Equal(t, "mine", found.Get("title"))

	_, err = ann.Scope("posts").Find(ctx, theirs.ID())
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	_, err = ann.Scope("posts").Find(ctx, 404)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, ann.Scope("posts").Destroy(ctx, theirs.ID()), core.ErrPermissionDenied)
	ok, err := f.Post.Exists(ctx, theirs.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, ann.Scope("posts").Destroy(ctx, mine.ID()))
	ok, err = f.Post.Exists(ctx, mine.ID())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScope_BuildAndDestroyAll(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	u, err := f.User.Create(ctx, core.Fields{"name": "Ann"})
	require.NoError(t, err)

	built, err := u.Scope("posts").Build(core.Fields{"title": "draft"})
	require.NoError(t, err)
	assert.True(t, built.IsNew())
	assert.Equal(t, u.ID(), built.Get("userId"))

	_, err = u.Scope("posts").DestroyAll(ctx)
	require.ErrorIs(t, err, core.ErrNoMatches)

	require.NoError(t, built.Save(ctx))
	_, err = u.Scope("posts").Create(ctx, core.Fields{"title": "two"})
	require.NoError(t, err)

	owner, err := u.Scope("posts").DestroyAll(ctx)
	require.NoError(t, err)
	assert.Same(t, u, owner)

	n, err := f.Post.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScope_NamedAndSub(t *testing.T) {
	f := newFixture(t)
	f.Post.DefineScope("published", core.Query{Where: core.Where{"published": true}})
	ctx := t.Context()

	u, err := f.User.Create(ctx, core.Fields{"name": "Ann"})
	require.NoError(t, err)
	_, err = u.Scope("posts").Create(ctx, core.Fields{"title": "out", "published": true})
	require.NoError(t, err)
	_, err = u.Scope("posts").Create(ctx, core.Fields{"title": "wip"})
	require.NoError(t, err)
	_, err = f.Post.Create(ctx, core.Fields{"title": "orphan", "published": true})
	require.NoError(t, err)

	all, err := f.Post.Scope("published").Get(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	s := u.Scope("posts")
	assert.Same(t, s, s.Sub("published"))
	mine, err := s.Get(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "out", mine[0].Get("title"))
	assert.Equal(t, core.Where{"userId": u.ID(), "published": true}, s.Query().Where)

	unnarrowed, err := u.Scope("posts").Get(ctx)
	require.NoError(t, err)
	assert.Len(t, unnarrowed, 2, "a narrowed fetch does not fill the relation cache")

	calls := f.spy.Calls("All:Post")
	mine, err = u.Scope("posts").Sub("published").Get(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 1, "a narrowed fetch does not answer from the cache")
	assert.Equal(t, calls+1, f.spy.Calls("All:Post"))

	_, err = u.Scope("posts").Sub("missing").Get(ctx)
	assert.ErrorIs(t, err, core.ErrUndefinedScope)

	_, err = u.Scope("comments").Get(ctx)
	assert.ErrorIs(t, err, core.ErrUndefinedScope)
	assert.ErrorIs(t, err, core.ErrUsage)

	_, err = f.Post.Scope("drafts").Get(ctx)
	assert.ErrorIs(t, err, core.ErrUndefinedScope)
}

func TestScope_ManyToMany(t *testing.T) {
	s := core.NewSchema(newSpy())
	article := s.Define("Article", core.Properties{"title": {Kind: core.String}})
	tag := s.Define("Tag", core.Properties{"name": {Kind: core.String}})
	article.HasAndBelongsToMany("tags", tag)
	ctx := t.Context()

	a, err := article.Create(ctx, core.Fields{"title": "Go"})
	require.NoError(t, err)

	golang, err := a.Scope("tags").Create(ctx, core.Fields{"name": "golang"})
	require.NoError(t, err)
	loose, err := tag.Create(ctx, core.Fields{"name": "loose"})
	require.NoError(t, err)

	tags, err := a.Scope("tags").Get(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "golang", tags[0].Get("name"))

	_, err = a.Scope("tags").Find(ctx, loose.ID())
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	link, err := a.Scope("tags").Add(ctx, loose)
	require.NoError(t, err)
	assert.Equal(t, a.ID(), link.Get("articleId"))
	assert.Equal(t, loose.ID(), link.Get("tagId"))

	tags, err = a.Scope("tags").Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	require.NoError(t, a.Scope("tags").Remove(ctx, golang))
	tags, err = a.Scope("tags").Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "loose", tags[0].Get("name"))

	f := newFixture(t)
	u, err := f.User.Create(ctx, core.Fields{"name": "Ann"})
	require.NoError(t, err)
	_, err = u.Scope("posts").Add(ctx, u)
	assert.ErrorIs(t, err, core.ErrUsage)
}
