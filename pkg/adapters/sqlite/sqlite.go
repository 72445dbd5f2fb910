// Package sqlite implements core.Adapter on SQLite through modernc.org/sqlite.
//
// Every model maps to one table named after it, with an integer "id" primary
// key. Tables are created or extended on first use; Automigrate rebuilds them.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/tessera/pkg/core"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrDuplicateKey is returned when a create reuses an existing id.
var ErrDuplicateKey = errors.New("duplicate key")

// Option configures the adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for schema changes.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// Adapter stores models in SQLite tables.
type Adapter struct {
	db     *sql.DB
	dsn    string
	logger *slog.Logger

	mu    sync.Mutex
	defs  map[string]core.Definition
	ready map[string]bool

	// migrating serializes table changes.
	migrating sync.Mutex
}

// Open prepares a database handle for dsn. The connection itself is checked
// by Connect.
func Open(dsn string, opts ...Option) (*Adapter, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		// Each connection to an in-memory database sees its own database.
		db.SetMaxOpenConns(1)
	}
	a := &Adapter{
		db:    db,
		dsn:   dsn,
		defs:  make(map[string]core.Definition),
		ready: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// DB exposes the underlying handle.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Connect implements core.Connector.
func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite db: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (a *Adapter) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Define implements core.Definer.
func (a *Adapter) Define(def core.Definition) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.defs[def.Name] = def
	a.ready[def.Name] = false
}

// ensure creates or extends the model's table once per definition.
func (a *Adapter) ensure(ctx context.Context, model string) (core.Definition, error) {
	a.mu.Lock()
	def, ok := a.defs[model]
	ready := a.ready[model]
	a.mu.Unlock()
	if !ok {
		return core.Definition{}, fmt.Errorf("sqlite: model %s is not defined", model)
	}
	if ready {
		return def, nil
	}
	a.migrating.Lock()
	defer a.migrating.Unlock()
	if err := a.updateTable(ctx, def); err != nil {
		return def, err
	}
	a.setReady(model, true)
	return def, nil
}

// Create implements core.Adapter.
func (a *Adapter) Create(ctx context.Context, model string, data core.Fields) (any, core.Fields, error) {
	def, err := a.ensure(ctx, model)
	if err != nil {
		return nil, nil, err
	}
	cols, args, err := assignments(def, data)
	if err != nil {
		return nil, nil, err
	}

	var query string
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quote(model))
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(model), joinQuoted(cols), placeholders(len(cols)))
	}
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isDuplicate(err) {
			return nil, nil, fmt.Errorf("insert %s: %w", model, ErrDuplicateKey)
		}
		return nil, nil, fmt.Errorf("insert %s: %w", model, err)
	}
	if id, given := data["id"]; given && id != nil {
		return id, nil, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("insert %s: last id: %w", model, err)
	}
	return id, nil, nil
}

// Save implements core.Adapter.
func (a *Adapter) Save(ctx context.Context, model string, data core.Fields) error {
	def, err := a.ensure(ctx, model)
	if err != nil {
		return err
	}
	return a.upsert(ctx, def, data)
}

func (a *Adapter) upsert(ctx context.Context, def core.Definition, data core.Fields) error {
	if data["id"] == nil {
		return fmt.Errorf("save %s: missing id", def.Name)
	}
	cols, args, err := assignments(def, data)
	if err != nil {
		return err
	}
	var sets []string
	for _, c := range cols {
		if c != "id" {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", quote(c), quote(c)))
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(def.Name), joinQuoted(cols), placeholders(len(cols)))
	if len(sets) > 0 {
		query += " ON CONFLICT(\"id\") DO UPDATE SET " + strings.Join(sets, ", ")
	} else {
		query += " ON CONFLICT(\"id\") DO NOTHING"
	}
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save %s: %w", def.Name, err)
	}
	return nil
}

// UpdateOrCreate implements core.Upserter.
func (a *Adapter) UpdateOrCreate(ctx context.Context, model string, data core.Fields) (core.Fields, error) {
	def, err := a.ensure(ctx, model)
	if err != nil {
		return nil, err
	}
	if err := a.upsert(ctx, def, data); err != nil {
		return nil, err
	}
	return a.Find(ctx, model, data["id"])
}

// UpdateAttributes implements core.Adapter.
func (a *Adapter) UpdateAttributes(ctx context.Context, model string, id any, data core.Fields) error {
	partial := data.Clone()
	delete(partial, "id")
	if len(partial) == 0 {
		return nil
	}
	n, err := a.Update(ctx, model, core.Where{"id": id}, partial)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update %s %v: %w", model, id, core.ErrNotFound)
	}
	return nil
}

// Update implements core.Updater.
func (a *Adapter) Update(ctx context.Context, model string, where core.Where, data core.Fields) (int, error) {
	def, err := a.ensure(ctx, model)
	if err != nil {
		return 0, err
	}
	partial := data.Clone()
	delete(partial, "id")
	cols, args, err := assignments(def, partial)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return 0, nil
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = quote(c) + " = ?"
	}
	clause, whereArgs, err := compileWhere(def, where)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("UPDATE %s SET %s%s", quote(model), strings.Join(sets, ", "), clause)
	res, err := a.db.ExecContext(ctx, query, append(args, whereArgs...)...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", model, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: rows affected: %w", model, err)
	}
	return int(n), nil
}

// Destroy implements core.Adapter.
func (a *Adapter) Destroy(ctx context.Context, model string, id any) error {
	if _, err := a.ensure(ctx, model); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE \"id\" = ?", quote(model))
	if _, err := a.db.ExecContext(ctx, query, encode(id)); err != nil {
		return fmt.Errorf("delete %s %v: %w", model, id, err)
	}
	return nil
}

// DestroyAll implements core.Adapter.
func (a *Adapter) DestroyAll(ctx context.Context, model string) error {
	if _, err := a.ensure(ctx, model); err != nil {
		return err
	}
	if _, err := a.db.ExecContext(ctx, "DELETE FROM "+quote(model)); err != nil {
		return fmt.Errorf("delete all %s: %w", model, err)
	}
	return nil
}

// Find implements core.Adapter.
func (a *Adapter) Find(ctx context.Context, model string, id any) (core.Fields, error) {
	rows, err := a.All(ctx, model, core.Query{Where: core.Where{"id": id}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// All implements core.Adapter.
func (a *Adapter) All(ctx context.Context, model string, q core.Query) ([]core.Fields, error) {
	def, err := a.ensure(ctx, model)
	if err != nil {
		return nil, err
	}
	clause, args, err := compileWhere(def, q.Where)
	if err != nil {
		return nil, err
	}
	order, err := compileOrder(def, q.Order)
	if err != nil {
		return nil, err
	}

	cols := columnNames(def)
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s%s", joinQuoted(cols), quote(model), clause, order)
	switch {
	case q.Limit > 0:
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	case q.Skip > 0:
		b.WriteString(" LIMIT -1")
	}
	if q.Skip > 0 {
		b.WriteString(" OFFSET ?")
		args = append(args, q.Skip)
	}

	rows, err := a.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", model, err)
	}
	defer rows.Close()

	var out []core.Fields
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", model, err)
		}
		row := make(core.Fields, len(cols))
		for i, c := range cols {
			row[c] = decode(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", model, err)
	}
	return out, nil
}

// Count implements core.Adapter.
func (a *Adapter) Count(ctx context.Context, model string, where core.Where) (int, error) {
	def, err := a.ensure(ctx, model)
	if err != nil {
		return 0, err
	}
	clause, args, err := compileWhere(def, where)
	if err != nil {
		return 0, err
	}
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quote(model), clause)
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", model, err)
	}
	return n, nil
}

// Exists implements core.Adapter.
func (a *Adapter) Exists(ctx context.Context, model string, id any) (bool, error) {
	n, err := a.Count(ctx, model, core.Where{"id": id})
	return n > 0, err
}

func isDuplicate(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func columnNames(def core.Definition) []string {
	cols := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		cols[i] = c.Name
	}
	return cols
}

func hasColumn(def core.Definition, name string) bool {
	for _, c := range def.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// assignments returns the columns of data in sorted order with encoded values.
func assignments(def core.Definition, data core.Fields) ([]string, []any, error) {
	cols := make([]string, 0, len(data))
	for name := range data {
		if !hasColumn(def, name) {
			return nil, nil, fmt.Errorf("sqlite: %s has no column %q", def.Name, name)
		}
		cols = append(cols, name)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = encode(data[c])
	}
	return cols, args, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func joinQuoted(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = quote(id)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var _ core.Adapter = (*Adapter)(nil)
var _ core.Updater = (*Adapter)(nil)
var _ core.Upserter = (*Adapter)(nil)
var _ core.Connector = (*Adapter)(nil)
var _ core.Definer = (*Adapter)(nil)
var _ core.Migrator = (*Adapter)(nil)
