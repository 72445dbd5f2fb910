package core

import "context"

// Event names a lifecycle hook point.
type Event string

const (
	EventCreate  Event = "create"
	EventSave    Event = "save"
	EventUpdate  Event = "update"
	EventDestroy Event = "destroy"
)

// Hookable wraps lifecycle work with user hooks. Implementations run their
// pre-hooks, call work, and run post-hooks only when work succeeded. An error
// from a pre-hook must abort without calling work.
type Hookable interface {
	Trigger(ctx context.Context, event Event, subject *Entity, data Fields, work func(ctx context.Context) error) error
}

// Validatable checks an entity. A failure is reported as *ValidationError;
// any other error aborts the operation as is.
type Validatable interface {
	IsValid(ctx context.Context, e *Entity) error
}

type noHooks struct{}

func (noHooks) Trigger(ctx context.Context, _ Event, _ *Entity, _ Fields, work func(ctx context.Context) error) error {
	return work(ctx)
}
