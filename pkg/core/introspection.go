package core

import (
	"github.com/aretw0/introspection"
)

// SchemaState exposes internal state for observability.
type SchemaState struct {
	Models      []string `json:"models"`
	Connected   bool     `json:"connected"`
	AdapterType string   `json:"adapter_type"`
}

// State implements introspection.Introspectable.
func (s *Schema) State() any {
	models := s.Models()
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}

	adapterType := "unknown"
	if comp, ok := s.adapter.(introspection.Component); ok {
		adapterType = comp.ComponentType()
	}

	return SchemaState{
		Models:      names,
		Connected:   s.Connected(),
		AdapterType: adapterType,
	}
}

// ComponentType implements introspection.Component.
func (s *Schema) ComponentType() string {
	return "schema"
}

var _ introspection.Introspectable = (*Schema)(nil)
var _ introspection.Component = (*Schema)(nil)
