package tessera

import (
	"log/slog"

	"github.com/aretw0/tessera/internal/platform"
	"github.com/aretw0/tessera/pkg/core"
	"github.com/aretw0/tessera/pkg/typed"
)

// --- Types ---

// Core types re-exported for callers that only import the root package.
type (
	Schema     = core.Schema
	Model      = core.Model
	Entity     = core.Entity
	Fields     = core.Fields
	Where      = core.Where
	Ops        = core.Ops
	Include    = core.Include
	Query      = core.Query
	Properties = core.Properties
	Property   = core.Property
)

// Record is a public alias for the typed record.
type Record[T any] = typed.Record[T]

// Repository is a public alias for the typed repository.
type Repository[T any] = typed.Repository[T]

// --- Configuration ---

// Option defines a functional option for configuring tessera.
type Option = platform.Option

// WithLogger sets the logger for the schema and the adapter.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithAdapter selects the storage adapter by name ("memory", "sqlite", "fs").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithStore injects a custom storage adapter.
func WithStore(store core.Adapter) Option {
	return platform.WithStore(store)
}

// WithFormat sets the file format of the fs adapter.
func WithFormat(format string) Option {
	return platform.WithFormat(format)
}

// WithWatch makes the fs adapter reload files edited by other processes.
func WithWatch(enabled bool) Option {
	return platform.WithWatch(enabled)
}

// WithWatcherErrorHandler registers a callback for fs watcher failures.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// New creates a schema over the selected adapter. uri is adapter-specific.
func New(uri string, opts ...Option) (*core.Schema, error) {
	return platform.New(uri, opts...)
}

// Init builds the selected adapter without a schema.
func Init(uri string, opts ...Option) (core.Adapter, error) {
	return platform.Init(uri, opts...)
}

// Open creates a schema and defines the models of a YAML schema file.
func Open(uri, schemaFile string, opts ...Option) (*core.Schema, error) {
	f, err := platform.LoadSchemaFile(schemaFile)
	if err != nil {
		return nil, err
	}
	s, err := platform.New(uri, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := f.Apply(s); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// NewRepository creates a type-safe wrapper around a model.
func NewRepository[T any](m *core.Model) *typed.Repository[T] {
	return typed.NewRepository[T](m)
}

// FindRoot looks upwards from startDir for a directory holding a schema file.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
