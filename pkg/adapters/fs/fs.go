// Package fs implements core.Adapter on plain files: one JSON or YAML file per
// model under a directory, holding the model's records as a list.
//
// Records are served from an in-process index that is loaded on first use and
// written back atomically after every change. With Config.Watch set, external
// edits to a model file are picked up through fsnotify.
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/tessera/pkg/adapters/memory"
	"github.com/aretw0/tessera/pkg/core"
	"github.com/google/uuid"
)

// ErrDuplicateKey is returned when a create reuses an existing id.
var ErrDuplicateKey = errors.New("duplicate key")

// Config holds the configuration for the file adapter.
type Config struct {
	Path   string
	Format string // "json" (default) or "yaml"
	Logger *slog.Logger
	// Watch reloads a model when its file changes outside the adapter.
	Watch bool
	// ErrorHandler receives watcher failures. Nil logs them.
	ErrorHandler func(error)
}

// Adapter stores every model in its own file.
type Adapter struct {
	path       string
	config     Config
	serializer Serializer

	mu     sync.Mutex
	index  *memory.Adapter
	loaded map[string]bool

	watchMu       sync.Mutex
	stopWatch     context.CancelFunc
	watchDone     chan struct{}
	watcherActive bool
	lastReload    *time.Time
}

// New returns an adapter rooted at config.Path.
func New(config Config) (*Adapter, error) {
	if strings.TrimSpace(config.Path) == "" {
		return nil, fmt.Errorf("fs path is required")
	}
	s, err := SerializerFor(config.Format)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		path:       config.Path,
		config:     config,
		serializer: s,
		index:      memory.New(),
		loaded:     make(map[string]bool),
	}, nil
}

// Path returns the directory holding the model files.
func (a *Adapter) Path() string {
	return a.path
}

// Connect implements core.Connector. It creates the directory and starts the
// watcher when configured.
func (a *Adapter) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(a.path, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", a.path, err)
	}
	if a.config.Watch {
		return a.startWatch()
	}
	return nil
}

// Close stops the watcher.
func (a *Adapter) Close() error {
	a.watchMu.Lock()
	stop, done := a.stopWatch, a.watchDone
	a.stopWatch = nil
	a.watchMu.Unlock()
	if stop == nil {
		return nil
	}
	stop()
	<-done
	return nil
}

func (a *Adapter) file(model string) (string, error) {
	if model == "" || strings.ContainsAny(model, `/\`) || model != filepath.Base(model) {
		return "", fmt.Errorf("fs: invalid model name %q", model)
	}
	return filepath.Join(a.path, model+a.serializer.Ext()), nil
}

// loadLocked fills the index from the model's file unless it is current.
func (a *Adapter) loadLocked(ctx context.Context, model string) error {
	if a.loaded[model] {
		return nil
	}
	filename, err := a.file(model)
	if err != nil {
		return err
	}
	if err := a.index.DestroyAll(ctx, model); err != nil {
		return err
	}

	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		a.loaded[model] = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}
	rows, err := a.serializer.Decode(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", filename, err)
	}
	for _, row := range rows {
		if core.IsBlank(row["id"]) {
			row["id"] = uuid.NewString()
		}
		if err := a.index.Save(ctx, model, row); err != nil {
			return err
		}
	}
	a.loaded[model] = true
	if a.config.Logger != nil {
		a.config.Logger.Debug("fs model loaded", "model", model, "records", len(rows))
	}
	return nil
}

func (a *Adapter) persistLocked(ctx context.Context, model string) error {
	filename, err := a.file(model)
	if err != nil {
		return err
	}
	rows, err := a.index.All(ctx, model, core.Query{})
	if err != nil {
		return err
	}
	data, err := a.serializer.Encode(rows)
	if err != nil {
		return fmt.Errorf("encode %s: %w", model, err)
	}
	if err := os.MkdirAll(a.path, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", a.path, err)
	}
	return writeAtomic(filename, data, 0o644)
}

// read runs fn against the loaded index of model.
func (a *Adapter) read(ctx context.Context, model string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.loadLocked(ctx, model); err != nil {
		return err
	}
	return fn()
}

// write runs fn against the loaded index of model and writes the file back.
// A failed write drops the index so the next access reloads from disk.
func (a *Adapter) write(ctx context.Context, model string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.loadLocked(ctx, model); err != nil {
		return err
	}
	if err := fn(); err != nil {
		a.loaded[model] = false
		return err
	}
	if err := a.persistLocked(ctx, model); err != nil {
		a.loaded[model] = false
		return fmt.Errorf("persist %s: %w", model, err)
	}
	return nil
}

// invalidate forgets the loaded records of model.
func (a *Adapter) invalidate(model string) {
	a.mu.Lock()
	delete(a.loaded, model)
	a.mu.Unlock()

	now := time.Now()
	a.watchMu.Lock()
	a.lastReload = &now
	a.watchMu.Unlock()
}

// Create implements core.Adapter. Records without an id get a UUID.
func (a *Adapter) Create(ctx context.Context, model string, data core.Fields) (any, core.Fields, error) {
	row := data.Clone()
	if core.IsBlank(row["id"]) {
		row["id"] = uuid.NewString()
	}
	err := a.write(ctx, model, func() error {
		exists, err := a.index.Exists(ctx, model, row["id"])
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("create %s %v: %w", model, row["id"], ErrDuplicateKey)
		}
		_, _, err = a.index.Create(ctx, model, row)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return row["id"], nil, nil
}

// Save implements core.Adapter.
func (a *Adapter) Save(ctx context.Context, model string, data core.Fields) error {
	return a.write(ctx, model, func() error {
		return a.index.Save(ctx, model, data)
	})
}

// UpdateAttributes implements core.Adapter.
func (a *Adapter) UpdateAttributes(ctx context.Context, model string, id any, data core.Fields) error {
	return a.write(ctx, model, func() error {
		return a.index.UpdateAttributes(ctx, model, id, data)
	})
}

// Update implements core.Updater.
func (a *Adapter) Update(ctx context.Context, model string, where core.Where, data core.Fields) (int, error) {
	var n int
	err := a.write(ctx, model, func() error {
		var err error
		n, err = a.index.Update(ctx, model, where, data)
		return err
	})
	return n, err
}

// Destroy implements core.Adapter.
func (a *Adapter) Destroy(ctx context.Context, model string, id any) error {
	return a.write(ctx, model, func() error {
		return a.index.Destroy(ctx, model, id)
	})
}

// DestroyAll implements core.Adapter.
func (a *Adapter) DestroyAll(ctx context.Context, model string) error {
	return a.write(ctx, model, func() error {
		return a.index.DestroyAll(ctx, model)
	})
}

// Find implements core.Adapter.
func (a *Adapter) Find(ctx context.Context, model string, id any) (core.Fields, error) {
	var row core.Fields
	err := a.read(ctx, model, func() error {
		var err error
		row, err = a.index.Find(ctx, model, id)
		return err
	})
	return row, err
}

// All implements core.Adapter.
func (a *Adapter) All(ctx context.Context, model string, q core.Query) ([]core.Fields, error) {
	var rows []core.Fields
	err := a.read(ctx, model, func() error {
		var err error
		rows, err = a.index.All(ctx, model, q)
		return err
	})
	return rows, err
}

// Count implements core.Adapter.
func (a *Adapter) Count(ctx context.Context, model string, where core.Where) (int, error) {
	var n int
	err := a.read(ctx, model, func() error {
		var err error
		n, err = a.index.Count(ctx, model, where)
		return err
	})
	return n, err
}

// Exists implements core.Adapter.
func (a *Adapter) Exists(ctx context.Context, model string, id any) (bool, error) {
	var ok bool
	err := a.read(ctx, model, func() error {
		var err error
		ok, err = a.index.Exists(ctx, model, id)
		return err
	})
	return ok, err
}

// models lists the model files present on disk.
func (a *Adapter) models() []string {
	entries, err := os.ReadDir(a.path)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || isTempFile(e.Name()) {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), a.serializer.Ext()); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

var (
	_ core.Adapter   = (*Adapter)(nil)
	_ core.Updater   = (*Adapter)(nil)
	_ core.Connector = (*Adapter)(nil)
)
