package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/lifecycle"
)

var errConnectInterrupted = errors.New("connect interrupted")

// Schema owns an adapter and the models defined against it.
type Schema struct {
	adapter Adapter
	logger  *slog.Logger

	mu     sync.RWMutex
	models map[string]*Model

	connectOnce sync.Once
	connected   chan struct{}
	connErr     error
}

// SchemaOption configures a Schema.
type SchemaOption func(*Schema)

// WithLogger sets the logger used for connection, definition and batch
// events. A nil logger keeps the schema silent.
func WithLogger(logger *slog.Logger) SchemaOption {
	return func(s *Schema) {
		s.logger = logger
	}
}

// NewSchema binds models to adapter.
func NewSchema(adapter Adapter, opts ...SchemaOption) *Schema {
	s := &Schema{
		adapter:   adapter,
		models:    make(map[string]*Model),
		connected: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Adapter returns the underlying storage adapter.
func (s *Schema) Adapter() Adapter {
	return s.adapter
}

// Define registers a model. Redefining an existing name panics with ErrDefinition.
func (s *Schema) Define(name string, props Properties) *Model {
	if name == "" {
		panic(fmt.Errorf("%w: empty model name", ErrDefinition))
	}
	m := newModel(s, name, props)

	s.mu.Lock()
	if _, exists := s.models[name]; exists {
		s.mu.Unlock()
		panic(fmt.Errorf("%w: model %q already defined", ErrDefinition, name))
	}
	s.models[name] = m
	s.mu.Unlock()

	s.announce(m)
	return m
}

// Model returns the model registered under name.
func (s *Schema) Model(name string) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[name]
	return m, ok
}

// Models returns every registered model ordered by name.
func (s *Schema) Models() []*Model {
	s.mu.RLock()
	out := make([]*Model, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// announce hands the model layout to adapters that want it.
func (s *Schema) announce(m *Model) {
	if d, ok := s.adapter.(Definer); ok {
		d.Define(m.Definition())
	}
	if s.logger != nil {
		s.logger.Debug("model defined", "model", m.Name, "properties", len(m.names))
	}
}

// Connect starts the adapter connection, if not started yet, and waits for it.
func (s *Schema) Connect(ctx context.Context) error {
	return s.ready(ctx)
}

// Connected reports whether the connection attempt finished successfully.
func (s *Schema) Connected() bool {
	select {
	case <-s.connected:
		return s.connErr == nil
	default:
		return false
	}
}

// ready blocks until the adapter is connected. The connection is started at
// most once, in the background, so a cancelled caller does not abort it for
// everyone else.
func (s *Schema) ready(ctx context.Context) error {
	select {
	case <-s.connected:
		return s.connErr
	default:
	}

	s.connectOnce.Do(func() { s.startConnect(ctx) })

	select {
	case <-s.connected:
		return s.connErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Schema) startConnect(ctx context.Context) {
	c, ok := s.adapter.(Connector)
	if !ok {
		close(s.connected)
		return
	}
	if s.logger != nil {
		s.logger.Debug("connecting adapter")
	}
	lifecycle.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		err := errConnectInterrupted
		defer func() { s.finishConnect(err) }()
		err = c.Connect(ctx)
		return err
	}, lifecycle.WithErrorHandler(func(err error) {
		if s.logger != nil {
			s.logger.Error("connect panic", "error", err)
		}
	}))
}

func (s *Schema) finishConnect(err error) {
	if err != nil {
		s.connErr = fmt.Errorf("connect: %w", err)
		if s.logger != nil {
			s.logger.Warn("adapter connection failed", "error", err)
		}
	} else if s.logger != nil {
		s.logger.Debug("adapter connected")
	}
	close(s.connected)
}

// Automigrate asks the adapter to drop and recreate storage for all models.
func (s *Schema) Automigrate(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	m, ok := s.adapter.(Migrator)
	if !ok {
		return nil
	}
	return m.Automigrate(ctx)
}

// Autoupdate asks the adapter to add missing storage without dropping data.
func (s *Schema) Autoupdate(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	m, ok := s.adapter.(Migrator)
	if !ok {
		return nil
	}
	return m.Autoupdate(ctx)
}

// Close releases the adapter when it holds resources.
func (s *Schema) Close() error {
	if c, ok := s.adapter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
