package memory

import (
	"sort"

	"github.com/aretw0/introspection"
)

// AdapterState exposes internal state for observability.
type AdapterState struct {
	Tables map[string]int `json:"tables"`
	Models []string       `json:"models"`
}

// State implements introspection.Introspectable.
func (a *Adapter) State() any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	state := AdapterState{Tables: make(map[string]int, len(a.tables))}
	for name, t := range a.tables {
		state.Tables[name] = len(t.rows)
		state.Models = append(state.Models, name)
	}
	sort.Strings(state.Models)
	return state
}

// ComponentType implements introspection.Component.
func (a *Adapter) ComponentType() string {
	return "memory"
}

var _ introspection.Introspectable = (*Adapter)(nil)
var _ introspection.Component = (*Adapter)(nil)
