// Package tessera is the composition root of a small object mapper.
//
// Models are declared on a Schema with typed properties, relations and named
// scopes. Entities created from a model track their changes, validate and run
// hooks around every write, and persist through a pluggable storage adapter.
//
// Adapters:
//
//   - memory: process-local tables, the default and the test backbone.
//   - sqlite: one table per model, created and extended on demand.
//   - fs: one JSON or YAML file per model, optionally reloaded on external edits.
//
// Usage:
//
//	s, err := tessera.New("app.db", tessera.WithAdapter("sqlite"), tessera.WithLogger(logger))
//	user := s.Define("User", tessera.Properties{"name": {Kind: core.String}})
//	post := s.Define("Post", tessera.Properties{"title": {Kind: core.String}})
//	user.HasMany("posts", post)
//
//	ann, err := user.Create(ctx, tessera.Fields{"name": "Ann"})
//	_, err = ann.Scope("posts").Create(ctx, tessera.Fields{"title": "hello"})
//	users, err := user.All(ctx, tessera.Query{Include: "posts"})
package tessera
