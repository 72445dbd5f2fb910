// Package core is the storage-agnostic persistence core.
//
// A Schema binds models to an Adapter. Models describe typed properties and
// relations; entities carry values plus a snapshot of what is persisted so
// that changes can be detected. The lifecycle operations (Create, Save,
// UpdateAttributes, Destroy) run validation and hooks around the adapter call.
// Scopes are named, cached queries bound to a model or an owner entity, and
// the include resolver eager-loads relations with one query per relation.
//
// The core never generates storage queries; it hands Where/Query values to the
// adapter, which owns their interpretation.
package core
