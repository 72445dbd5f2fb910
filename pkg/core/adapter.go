package core

import "context"

// Adapter is the storage port. Every method receives the model name and
// storage-side field names; values are plain Go values (see Kind).
type Adapter interface {
	// Create persists a new record. data carries an "id" only when the caller
	// chose one. It returns the assigned id and, optionally, the canonical
	// stored fields (nil when nothing changed beyond the id).
	Create(ctx context.Context, model string, data Fields) (id any, canonical Fields, err error)
	// Save replaces the full record identified by data["id"].
	Save(ctx context.Context, model string, data Fields) error
	// UpdateAttributes writes only the given fields of record id.
	UpdateAttributes(ctx context.Context, model string, id any, data Fields) error
	Destroy(ctx context.Context, model string, id any) error
	DestroyAll(ctx context.Context, model string) error
	// Find returns nil, nil when the record does not exist.
	Find(ctx context.Context, model string, id any) (Fields, error)
	All(ctx context.Context, model string, q Query) ([]Fields, error)
	Count(ctx context.Context, model string, where Where) (int, error)
	Exists(ctx context.Context, model string, id any) (bool, error)
}

// Updater is implemented by adapters supporting bulk updates.
type Updater interface {
	Update(ctx context.Context, model string, where Where, data Fields) (int, error)
}

// Upserter is implemented by adapters supporting an atomic update-or-insert.
type Upserter interface {
	UpdateOrCreate(ctx context.Context, model string, data Fields) (Fields, error)
}

// Connector is implemented by adapters that must connect before use.
type Connector interface {
	Connect(ctx context.Context) error
}

// Definer is implemented by adapters that want to know model layouts.
// Define may be called again for the same model when relations add columns.
type Definer interface {
	Define(def Definition)
}

// Migrator is implemented by adapters that manage their own storage schema.
type Migrator interface {
	// Automigrate drops and recreates storage for every defined model.
	Automigrate(ctx context.Context) error
	// Autoupdate creates missing storage and adds missing columns.
	Autoupdate(ctx context.Context) error
}

// Definition describes a model's storage layout.
type Definition struct {
	Name    string
	Columns []Column
}

// Column is a storage-side field.
type Column struct {
	Name  string
	Kind  Kind
	Index bool
}
