package sqlite

import (
	"github.com/aretw0/introspection"
)

// AdapterState exposes internal state for observability.
type AdapterState struct {
	DSN      string   `json:"dsn"`
	Models   []string `json:"models"`
	OpenConn int      `json:"open_connections"`
	InUse    int      `json:"in_use"`
}

// State implements introspection.Introspectable.
func (a *Adapter) State() any {
	state := AdapterState{DSN: a.dsn}
	for _, def := range a.definitions() {
		state.Models = append(state.Models, def.Name)
	}
	stats := a.db.Stats()
	state.OpenConn = stats.OpenConnections
	state.InUse = stats.InUse
	return state
}

// ComponentType implements introspection.Component.
func (a *Adapter) ComponentType() string {
	return "sqlite"
}

var _ introspection.Introspectable = (*Adapter)(nil)
var _ introspection.Component = (*Adapter)(nil)
