package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/tessera/pkg/adapters/memory"
	"github.com/aretw0/tessera/pkg/core"
)

var errAborted = errors.New("aborted by hook")

// spyAdapter wraps the memory adapter, counting calls and injecting failures.
type spyAdapter struct {
	*memory.Adapter

	mu         sync.Mutex
	calls      map[string]int
	failCreate error
	failSave   error
}

func newSpy() *spyAdapter {
	return &spyAdapter{Adapter: memory.New(), calls: make(map[string]int)}
}

func (s *spyAdapter) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
}

func (s *spyAdapter) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *spyAdapter) Create(ctx context.Context, model string, data core.Fields) (any, core.Fields, error) {
	s.record("Create:" + model)
	if s.failCreate != nil {
		return nil, nil, s.failCreate
	}
	return s.Adapter.Create(ctx, model, data)
}

func (s *spyAdapter) Save(ctx context.Context, model string, data core.Fields) error {
	s.record("Save:" + model)
	if s.failSave != nil {
		return s.failSave
	}
	return s.Adapter.Save(ctx, model, data)
}

func (s *spyAdapter) All(ctx context.Context, model string, q core.Query) ([]core.Fields, error) {
	s.record("All:" + model)
	return s.Adapter.All(ctx, model, q)
}

// recorder is a Hookable that logs every hook point it passes.
type recorder struct {
	mu     sync.Mutex
	events []string
	data   map[string]core.Fields
	abort  core.Event
}

func (r *recorder) log(s string, data core.Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
	if r.data == nil {
		r.data = make(map[string]core.Fields)
	}
	r.data[s] = data
}

func (r *recorder) Trigger(ctx context.Context, event core.Event, _ *core.Entity, data core.Fields, work func(context.Context) error) error {
	r.log("before "+string(event), data)
	if event == r.abort {
		return errAborted
	}
	if err := work(ctx); err != nil {
		return err
	}
	r.log("after "+string(event), data)
	return nil
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// requireName fails validation when "name" is blank.
type requireName struct{}

func (requireName) IsValid(_ context.Context, e *core.Entity) error {
	if core.IsBlank(e.Get("name")) {
		verr := core.NewValidationError(e)
		verr.Add("name", "presence", "can't be blank")
		return verr
	}
	return nil
}

type fixture struct {
	schema *core.Schema
	spy    *spyAdapter
	User   *core.Model
	Post   *core.Model
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	spy := newSpy()
	s := core.NewSchema(spy)
	f := &fixture{schema: s, spy: spy}
	f.User = s.Define("User", core.Properties{
		"name":  {Kind: core.String},
		"email": {Kind: core.String},
		"bio":   {Kind: core.Text},
		"age":   {Kind: core.Number},
	})
	f.Post = s.Define("Post", core.Properties{
		"title":     {Kind: core.String},
		"published": {Kind: core.Boolean, Default: false},
	})
	f.User.HasMany("posts", f.Post)
	f.Post.BelongsTo("author", f.User, core.RelationOptions{ForeignKey: "userId"})
	return f
}
