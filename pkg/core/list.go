package core

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// Element is an item of a List.
type Element interface {
	Identity() any
	Object() Fields
}

// Box wraps a plain element of a List: a primitive boxed as {id: value} or
// a map carrying its own fields.
type Box struct {
	fields Fields
	list   *List
}

// Identity implements Element.
func (b *Box) Identity() any {
	return b.fields["id"]
}

// Get returns a field of the element.
func (b *Box) Get(name string) any {
	return b.fields[name]
}

// Set assigns a field of the element.
func (b *Box) Set(name string, v any) {
	b.fields[name] = v
}

// Object implements Element.
func (b *Box) Object() Fields {
	out := make(Fields, len(b.fields))
	for k, v := range b.fields {
		out[k] = plain(v)
	}
	return out
}

// MarshalJSON encodes the element's fields.
func (b *Box) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Object())
}

// Save persists the entity owning the element's list.
func (b *Box) Save(ctx context.Context) error {
	if b.list == nil {
		return fmt.Errorf("%w: element is not attached to a list", ErrUsage)
	}
	return b.list.Save(ctx)
}

// List is an ordered container of identified elements stored in a single
// field. Elements keep their identity for the life of the list.
type List struct {
	items  []Element
	elem   *Model
	nextID int64
	parent *Entity
	field  string
}

// NewList builds a list from a slice or a JSON-encoded array. Malformed JSON
// yields an empty list. When elem is given, map elements become entities of
// that model.
func NewList(data any, elem *Model) *List {
	l := &List{elem: elem, nextID: 1}
	for _, v := range listValues(data) {
		l.Push(v)
	}
	return l
}

func listValues(data any) []any {
	switch d := data.(type) {
	case nil:
		return nil
	case *List:
		if d == nil {
			return nil
		}
		out := make([]any, 0, len(d.items))
		for _, el := range d.items {
			out = append(out, el)
		}
		return out
	case string:
		return decodeJSONArray([]byte(d))
	case []byte:
		return decodeJSONArray(d)
	case json.RawMessage:
		return decodeJSONArray(d)
	case []any:
		return d
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func decodeJSONArray(raw []byte) []any {
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	for i, v := range out {
		out[i] = canonicalDeep(v)
	}
	return out
}

func (l *List) attach(parent *Entity, field string) {
	l.parent = parent
	l.field = field
}

// Len returns the number of elements.
func (l *List) Len() int {
	return len(l.items)
}

// At returns the element at index i, nil when out of range.
func (l *List) At(i int) Element {
	if i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// Elements returns the elements in order.
func (l *List) Elements() []Element {
	out := make([]Element, len(l.items))
	copy(out, l.items)
	return out
}

// Each calls fn for every element in order.
func (l *List) Each(fn func(el Element, i int)) {
	for i, el := range l.items {
		fn(el, i)
	}
}

// Map returns fn applied to every element.
func (l *List) Map(fn func(el Element, i int) any) []any {
	out := make([]any, len(l.items))
	for i, el := range l.items {
		out[i] = fn(el, i)
	}
	return out
}

// Pluck returns the given field of every element.
func (l *List) Pluck(field string) []any {
	return l.Map(func(el Element, _ int) any {
		return elementField(el, field)
	})
}

// Find returns the first element whose field equals value. The field
// defaults to "id".
func (l *List) Find(value any, byField ...string) Element {
	field := "id"
	if len(byField) > 0 && byField[0] != "" {
		field = byField[0]
	}
	key := Key(value)
	for _, el := range l.items {
		if Key(elementField(el, field)) == key {
			return el
		}
	}
	return nil
}

func elementField(el Element, field string) any {
	switch x := el.(type) {
	case *Box:
		return x.Get(field)
	case *Entity:
		return x.Get(field)
	}
	return el.Object()[field]
}

// Push appends v and returns the stored element.
func (l *List) Push(v any) Element {
	el := l.normalize(v)
	l.items = append(l.items, el)
	return el
}

func (l *List) normalize(v any) Element {
	switch x := v.(type) {
	case *Entity:
		return x
	case *Box:
		box := &Box{fields: x.fields.Clone(), list: l}
		l.identify(box)
		return box
	case Element:
		return x
	case Fields:
		return l.normalizeMap(x)
	case map[string]any:
		return l.normalizeMap(Fields(x))
	}
	box := &Box{fields: Fields{"id": canonical(v)}, list: l}
	l.identify(box)
	return box
}

func (l *List) normalizeMap(m Fields) Element {
	if l.elem != nil {
		return l.elem.New(m)
	}
	box := &Box{fields: m.Clone(), list: l}
	l.identify(box)
	return box
}

// identify assigns the next sequential identity to a box lacking one and
// keeps the counter ahead of numeric identities already present.
func (l *List) identify(box *Box) {
	id, ok := box.fields["id"]
	if !ok || id == nil {
		box.fields["id"] = l.nextID
		l.nextID++
		return
	}
	if n, isInt := canonical(id).(int64); isInt {
		box.fields["id"] = n
		if n >= l.nextID {
			l.nextID = n + 1
		}
	}
}

// Remove deletes the element identified by v: an Element, a map carrying an
// "id", or a bare identity. It reports whether an element was removed.
func (l *List) Remove(v any) bool {
	var id any
	switch x := v.(type) {
	case Element:
		id = x.Identity()
	case Fields:
		id = x["id"]
	case map[string]any:
		id = x["id"]
	default:
		id = v
	}
	key := Key(id)
	for i, el := range l.items {
		if Key(el.Identity()) == key {
			return l.RemoveAt(i)
		}
	}
	return false
}

// RemoveAt deletes the element at index i.
func (l *List) RemoveAt(i int) bool {
	if i < 0 || i >= len(l.items) {
		return false
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return true
}

// ToObject returns the elements as plain values.
func (l *List) ToObject() []any {
	out := make([]any, len(l.items))
	for i, el := range l.items {
		if e, ok := el.(*Entity); ok {
			out[i] = e.ToObject(true)
			continue
		}
		out[i] = el.Object()
	}
	return out
}

// MarshalJSON encodes the plain elements.
func (l *List) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.ToObject())
}

func (l *List) String() string {
	b, err := l.MarshalJSON()
	if err != nil {
		return "[]"
	}
	return string(b)
}

// Save persists the entity the list is attached to.
func (l *List) Save(ctx context.Context) error {
	if l.parent == nil {
		return fmt.Errorf("%w: list is not attached to an entity", ErrUsage)
	}
	return l.parent.Save(ctx)
}
