package fs

import (
	"sort"
	"time"

	"github.com/aretw0/introspection"
)

// AdapterState exposes internal state for observability.
type AdapterState struct {
	Path          string     `json:"path"`
	Format        string     `json:"format"`
	Models        []string   `json:"models"`
	Loaded        []string   `json:"loaded"`
	WatcherActive bool       `json:"watcher_active"`
	LastReload    *time.Time `json:"last_reload,omitempty"`
}

// State implements introspection.Introspectable.
func (a *Adapter) State() any {
	state := AdapterState{
		Path:   a.path,
		Format: a.serializer.Ext(),
		Models: a.models(),
	}

	a.mu.Lock()
	for name, ok := range a.loaded {
		if ok {
			state.Loaded = append(state.Loaded, name)
		}
	}
	a.mu.Unlock()
	sort.Strings(state.Loaded)

	a.watchMu.Lock()
	state.WatcherActive = a.watcherActive
	state.LastReload = a.lastReload
	a.watchMu.Unlock()
	return state
}

// ComponentType implements introspection.Component.
func (a *Adapter) ComponentType() string {
	return "fs"
}

var _ introspection.Introspectable = (*Adapter)(nil)
var _ introspection.Component = (*Adapter)(nil)
