// Package hooks provides a registry of before/after functions per lifecycle
// event. A *Registry satisfies core.Hookable and is installed with
// Model.UseHooks.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/tessera/pkg/core"
)

// Func runs at a hook point. data is the entity's values as seen by the
// operation; for destroy it is the snapshot taken before removal.
type Func func(ctx context.Context, e *core.Entity, data core.Fields) error

// Registry holds hook functions in registration order.
type Registry struct {
	mu     sync.RWMutex
	before map[core.Event][]Func
	after  map[core.Event][]Func
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		before: make(map[core.Event][]Func),
		after:  make(map[core.Event][]Func),
	}
}

// Before registers fn to run before event. An error aborts the operation.
func (r *Registry) Before(event core.Event, fn Func) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.before[event] = append(r.before[event], fn)
	return r
}

// After registers fn to run once event succeeded.
func (r *Registry) After(event core.Event, fn Func) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.after[event] = append(r.after[event], fn)
	return r
}

func (r *Registry) funcs(event core.Event) (before, after []Func) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.before[event], r.after[event]
}

// Trigger implements core.Hookable.
func (r *Registry) Trigger(ctx context.Context, event core.Event, e *core.Entity, data core.Fields, work func(context.Context) error) error {
	before, after := r.funcs(event)
	for _, fn := range before {
		if err := fn(ctx, e, data); err != nil {
			return fmt.Errorf("before %s: %w", event, err)
		}
	}
	if err := work(ctx); err != nil {
		return err
	}
	for _, fn := range after {
		if err := fn(ctx, e, data); err != nil {
			return fmt.Errorf("after %s: %w", event, err)
		}
	}
	return nil
}

var _ core.Hookable = (*Registry)(nil)
