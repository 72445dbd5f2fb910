package platform

import (
	"fmt"

	"github.com/aretw0/tessera/pkg/adapters/fs"
	"github.com/aretw0/tessera/pkg/adapters/memory"
	"github.com/aretw0/tessera/pkg/adapters/sqlite"
	"github.com/aretw0/tessera/pkg/core"
)

// Adapters lists the adapter names Init understands.
var Adapters = []string{"memory", "sqlite", "fs"}

// Init builds the storage adapter selected by the options. The uri argument
// is adapter-specific: a DSN for sqlite, a directory for fs, ignored by memory.
func Init(uri string, opts ...Option) (core.Adapter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return initAdapter(uri, o)
}

func initAdapter(uri string, o *options) (core.Adapter, error) {
	if o.store != nil {
		return o.store, nil
	}

	switch o.adapter {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		if uri == "" {
			uri = ":memory:"
		}
		a, err := sqlite.Open(uri, sqlite.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		return a, nil
	case "fs":
		a, err := fs.New(fs.Config{
			Path:         uri,
			Format:       o.format,
			Logger:       o.logger,
			Watch:        o.watch,
			ErrorHandler: o.errorHandler,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
}

// New returns a schema bound to the adapter selected by the options.
//
//	s, err := tessera.New("./data", tessera.WithAdapter("fs"))
func New(uri string, opts ...Option) (*core.Schema, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	adapter, err := initAdapter(uri, o)
	if err != nil {
		return nil, err
	}
	if o.logger != nil {
		o.logger.Debug("adapter ready", "adapter", o.adapter, "uri", uri)
	}
	return core.NewSchema(adapter, core.WithLogger(o.logger)), nil
}
