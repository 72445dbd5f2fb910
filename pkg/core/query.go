package core

// Fields is a flat mapping from field name to value.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Where holds query conditions keyed by field name. A plain value matches by
// equality; an Ops value applies comparison operators.
type Where map[string]any

// Clone returns a shallow copy of w.
func (w Where) Clone() Where {
	if w == nil {
		return nil
	}
	out := make(Where, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Ops is a set of operators applied to one field.
// Supported keys: gt, gte, lt, lte, ne, inq, nin, between, like, nlike, glob.
type Ops map[string]any

// In matches when the field equals any of values.
func In(values ...any) Ops {
	return Ops{"inq": values}
}

// Include is a nested eager-load specification: relation name to nested spec.
type Include map[string]any

// Query describes a read. Include and Collect are resolved by the core and
// never reach the adapter.
type Query struct {
	Where   Where
	Order   string
	Limit   int
	Skip    int
	Include any
	Collect string
}

// Clone returns a copy of q whose Where may be modified independently.
func (q Query) Clone() Query {
	q.Where = q.Where.Clone()
	return q
}

// mergeQuery folds update into base: where keys are merged one by one with
// update winning, the remaining parameters are replaced when update sets them.
func mergeQuery(base, update Query) Query {
	out := base.Clone()
	if len(update.Where) > 0 {
		if out.Where == nil {
			out.Where = make(Where, len(update.Where))
		}
		for k, v := range update.Where {
			out.Where[k] = v
		}
	}
	if update.Include != nil {
		out.Include = update.Include
	}
	if update.Collect != "" {
		out.Collect = update.Collect
	}
	if update.Order != "" {
		out.Order = update.Order
	}
	if update.Limit != 0 {
		out.Limit = update.Limit
	}
	if update.Skip != 0 {
		out.Skip = update.Skip
	}
	return out
}
