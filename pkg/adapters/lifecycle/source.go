// Package lifecycle publishes model changes as a lifecycle.Source.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/tessera/pkg/core"
	"github.com/aretw0/tessera/pkg/hooks"
)

// DefaultBuffer is the number of changes held for the consumer.
const DefaultBuffer = 64

// Change describes a successful write on a model.
type Change struct {
	Event     core.Event
	Model     string
	ID        any
	Timestamp int64 // Unix timestamp
}

func (c Change) String() string {
	return fmt.Sprintf("%s %s %v", c.Event, c.Model, c.ID)
}

// Option configures a change source.
type Option func(*changeSource)

// WithEvents selects the events to publish. The default is create, update
// and destroy, one per write.
func WithEvents(events ...core.Event) Option {
	return func(s *changeSource) {
		s.events = events
	}
}

// WithBuffer sets how many changes are held before new ones are dropped.
func WithBuffer(n int) Option {
	return func(s *changeSource) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithLogger sets the logger reporting dropped changes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *changeSource) {
		s.logger = logger
	}
}

type changeSource struct {
	events  []core.Event
	buffer  int
	logger  *slog.Logger
	changes chan Change
	out     chan lifecycle.Event
	stopped atomic.Bool
	dropped atomic.Int64
}

// NewSource registers after-hooks on reg and returns a lifecycle.Source
// emitting a Change for each selected event. Publishing never fails or
// blocks a write: when the buffer is full the change is dropped, and once
// the context given to Start is done the hooks do nothing.
func NewSource(reg *hooks.Registry, opts ...Option) lifecycle.Source {
	s := &changeSource{
		events: []core.Event{core.EventCreate, core.EventUpdate, core.EventDestroy},
		buffer: DefaultBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.changes = make(chan Change, s.buffer)
	s.out = make(chan lifecycle.Event)
	for _, event := range s.events {
		reg.After(event, func(_ context.Context, e *core.Entity, _ core.Fields) error {
			s.publish(Change{Event: event, Model: e.Model().Name, ID: e.ID(), Timestamp: time.Now().Unix()})
			return nil
		})
	}
	return s
}

func (s *changeSource) publish(c Change) {
	if s.stopped.Load() {
		return
	}
	select {
	case s.changes <- c:
	default:
		n := s.dropped.Add(1)
		if s.logger != nil {
			s.logger.Warn("change feed full, dropping change", "change", c.String(), "dropped", n)
		}
	}
}

func (s *changeSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start forwards changes until ctx is done, then stops publishing and
// closes Events.
func (s *changeSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		defer s.stopped.Store(true)
		for {
			select {
			case <-ctx.Done():
				return nil
			case c := <-s.changes:
				select {
				case s.out <- c:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}

// Dropped reports how many changes a source built by NewSource discarded
// because its buffer was full.
func Dropped(src lifecycle.Source) int64 {
	if s, ok := src.(*changeSource); ok {
		return s.dropped.Load()
	}
	return 0
}
