package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/tessera/pkg/core"
)

// Automigrate implements core.Migrator. Existing data is dropped.
func (a *Adapter) Automigrate(ctx context.Context) error {
	a.migrating.Lock()
	defer a.migrating.Unlock()
	for _, def := range a.definitions() {
		if _, err := a.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(def.Name)); err != nil {
			return fmt.Errorf("drop %s: %w", def.Name, err)
		}
		a.setReady(def.Name, false)
		if err := a.updateTable(ctx, def); err != nil {
			return err
		}
		a.setReady(def.Name, true)
	}
	return nil
}

// Autoupdate implements core.Migrator.
func (a *Adapter) Autoupdate(ctx context.Context) error {
	a.migrating.Lock()
	defer a.migrating.Unlock()
	for _, def := range a.definitions() {
		if err := a.updateTable(ctx, def); err != nil {
			return err
		}
		a.setReady(def.Name, true)
	}
	return nil
}

func (a *Adapter) definitions() []core.Definition {
	a.mu.Lock()
	defer a.mu.Unlock()
	defs := make([]core.Definition, 0, len(a.defs))
	for _, def := range a.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (a *Adapter) setReady(model string, ready bool) {
	a.mu.Lock()
	a.ready[model] = ready
	a.mu.Unlock()
}

// updateTable creates the table when missing, then adds absent columns and
// indexes.
func (a *Adapter) updateTable(ctx context.Context, def core.Definition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.db.ExecContext(ctx, createStatement(def)); err != nil {
		return fmt.Errorf("create table %s: %w", def.Name, err)
	}

	existing, err := a.tableColumns(ctx, def.Name)
	if err != nil {
		return err
	}
	for _, c := range def.Columns {
		if existing[c.Name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(def.Name), columnSQL(c))
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", def.Name, c.Name, err)
		}
		if a.logger != nil {
			a.logger.Debug("sqlite column added", "model", def.Name, "column", c.Name)
		}
	}

	for _, c := range def.Columns {
		if !c.Index || c.Name == "id" {
			continue
		}
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quote(def.Name+"_"+c.Name+"_idx"), quote(def.Name), quote(c.Name))
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index %s.%s: %w", def.Name, c.Name, err)
		}
	}
	return nil
}

func (a *Adapter) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(table)))
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("inspect %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func createStatement(def core.Definition) string {
	parts := []string{`"id" INTEGER PRIMARY KEY`}
	for _, c := range def.Columns {
		if c.Name == "id" {
			continue
		}
		parts = append(parts, columnSQL(c))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(def.Name), strings.Join(parts, ", "))
}

func columnSQL(c core.Column) string {
	if t := columnType(c.Kind); t != "" {
		return quote(c.Name) + " " + t
	}
	return quote(c.Name)
}
