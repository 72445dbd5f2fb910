package core

import "strings"

// column returns the storage name of a field.
func (m *Model) column(name string) string {
	if p, ok := m.props[name]; ok && p.Column != "" {
		return p.Column
	}
	return name
}

// field returns the logical name of a storage column.
func (m *Model) field(column string) string {
	for name, p := range m.props {
		if p.Column == column {
			return name
		}
	}
	return column
}

// toStorage renames declared fields to their storage columns and drops
// undeclared ones.
func (m *Model) toStorage(data Fields) Fields {
	out := make(Fields, len(data))
	for name, v := range data {
		if _, ok := m.props[name]; !ok {
			continue
		}
		out[m.column(name)] = plain(v)
	}
	return out
}

func (m *Model) whereToStorage(w Where) Where {
	if w == nil {
		return nil
	}
	out := make(Where, len(w))
	for name, v := range w {
		out[m.column(name)] = v
	}
	return out
}

// orderToStorage renames the fields of an order clause such as "name DESC, age".
func (m *Model) orderToStorage(order string) string {
	if order == "" {
		return ""
	}
	parts := strings.Split(order, ",")
	for i, part := range parts {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		fields[0] = m.column(fields[0])
		parts[i] = strings.Join(fields, " ")
	}
	return strings.Join(parts, ", ")
}

func (m *Model) queryToStorage(q Query) Query {
	return Query{
		Where: m.whereToStorage(q.Where),
		Order: m.orderToStorage(q.Order),
		Limit: q.Limit,
		Skip:  q.Skip,
	}
}

// fromStorage renames storage columns back to field names.
func (m *Model) fromStorage(row Fields) Fields {
	out := make(Fields, len(row))
	for column, v := range row {
		out[m.field(column)] = v
	}
	return out
}

// load decodes a storage row into a persisted entity. Every value goes
// through the property coercion, so storage encodings (numbers as floats,
// dates as strings, booleans as integers) are normalized here.
func (m *Model) load(row Fields) *Entity {
	e := &Entity{model: m, data: make(Fields, len(row))}
	for name, v := range m.fromStorage(row) {
		e.Set(name, v)
	}
	e.snapshot()
	return e
}

// coerceFields runs data through the property coercions without building an entity.
func (m *Model) coerceFields(data Fields) Fields {
	out := make(Fields, len(data))
	for name, v := range data {
		if p, ok := m.props[name]; ok && p.Kind != Array {
			out[name] = p.coerce(v)
			continue
		}
		out[name] = plain(v)
	}
	return out
}
