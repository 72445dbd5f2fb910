package platform

import (
	"log/slog"

	"github.com/aretw0/tessera/pkg/core"
)

// options holds the internal configuration for a tessera schema.
type options struct {
	store        core.Adapter
	logger       *slog.Logger
	adapter      string
	format       string
	watch        bool
	errorHandler func(error)
}

// Option defines a functional option for configuring tessera.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		adapter: "memory",
		format:  "json",
	}
}

// WithLogger sets the logger for the schema and the adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithAdapter selects the storage adapter by name: "memory" (default),
// "sqlite" or "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithStore injects a ready adapter. The adapter name and the URI are then
// ignored.
func WithStore(store core.Adapter) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithFormat sets the file format of the fs adapter ("json" or "yaml").
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithWatch makes the fs adapter reload models edited outside the process.
func WithWatch(enabled bool) Option {
	return func(o *options) {
		o.watch = enabled
	}
}

// WithWatcherErrorHandler receives fs watcher failures, which are otherwise
// only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}
