// Package validation provides a rule-based validator. A *Validator satisfies
// core.Validatable and is installed with Model.UseValidator.
//
// Rules other than Presence and Uniqueness skip blank values; combine them
// with Presence to require a value.
package validation

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/aretw0/tessera/pkg/core"
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// Error codes reported in core.ValidationError.Codes.
const (
	CodePresence     = "presence"
	CodeLength       = "length"
	CodeFormat       = "format"
	CodeNumericality = "numericality"
	CodeInclusion    = "inclusion"
	CodeExclusion    = "exclusion"
	CodeUniqueness   = "uniqueness"
	CodeCustom       = "custom"
	CodeExpr         = "expr"
)

// CheckFunc reports whether field of e is valid.
type CheckFunc func(ctx context.Context, e *core.Entity, field string) (bool, error)

// failure is returned by a check: an empty code means the value passed.
type failure struct {
	code    string
	message string
}

type check func(ctx context.Context, e *core.Entity, field string, r *rule) (failure, error)

type rule struct {
	field    string
	check    check
	message  string
	allowNil bool
	when     []condition
	err      error
}

type condition struct {
	program *exprvm.Program
	negate  bool
}

// Option tunes a single rule.
type Option func(*rule)

// Message replaces the default failure message.
func Message(msg string) Option {
	return func(r *rule) { r.message = msg }
}

// AllowNil lets a Uniqueness rule accept nil values.
func AllowNil() Option {
	return func(r *rule) { r.allowNil = true }
}

// If runs the rule only when expression is truthy for the entity's values.
func If(expression string) Option {
	return func(r *rule) { r.addCondition(expression, false) }
}

// Unless runs the rule only when expression is falsy for the entity's values.
func Unless(expression string) Option {
	return func(r *rule) { r.addCondition(expression, true) }
}

func (r *rule) addCondition(expression string, negate bool) {
	program, err := compile(expression)
	if err != nil {
		r.err = err
		return
	}
	r.when = append(r.when, condition{program: program, negate: negate})
}

func compile(expression string) (*exprvm.Program, error) {
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	return program, nil
}

// Validator runs rules in registration order and collects every failure.
type Validator struct {
	rules []*rule
}

// New returns a validator without rules.
func New() *Validator {
	return &Validator{}
}

func (v *Validator) add(field string, c check, opts []Option) *Validator {
	r := &rule{field: field, check: c}
	for _, opt := range opts {
		opt(r)
	}
	v.rules = append(v.rules, r)
	return v
}

// IsValid implements core.Validatable.
func (v *Validator) IsValid(ctx context.Context, e *core.Entity) error {
	verr := core.NewValidationError(e)
	var env map[string]any
	for _, r := range v.rules {
		if r.err != nil {
			return fmt.Errorf("validation rule for %s: %w", r.field, r.err)
		}
		if len(r.when) > 0 {
			if env == nil {
				env = e.ToObject(false)
			}
			active, err := r.active(env)
			if err != nil {
				return fmt.Errorf("validation condition for %s: %w", r.field, err)
			}
			if !active {
				continue
			}
		}
		f, err := r.check(ctx, e, r.field, r)
		if err != nil {
			return fmt.Errorf("validate %s: %w", r.field, err)
		}
		if f.code == "" {
			continue
		}
		msg := f.message
		if r.message != "" {
			msg = r.message
		}
		verr.Add(r.field, f.code, msg)
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

func (r *rule) active(env map[string]any) (bool, error) {
	for _, c := range r.when {
		out, err := exprlang.Run(c.program, env)
		if err != nil {
			return false, err
		}
		if truthy(out) == c.negate {
			return false, nil
		}
	}
	return true, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	}
	return true
}

// Presence requires a non-blank value.
func (v *Validator) Presence(field string, opts ...Option) *Validator {
	return v.add(field, func(_ context.Context, e *core.Entity, field string, _ *rule) (failure, error) {
		if core.IsBlank(e.Get(field)) {
			return failure{CodePresence, "can't be blank"}, nil
		}
		return failure{}, nil
	}, opts)
}

// Bounds constrains a length. Zero fields are not checked.
type Bounds struct {
	Min int
	Max int
	Is  int
}

// Length checks the rune count of strings and the size of lists and slices.
func (v *Validator) Length(field string, b Bounds, opts ...Option) *Validator {
	return v.add(field, func(_ context.Context, e *core.Entity, field string, _ *rule) (failure, error) {
		value := e.Get(field)
		if core.IsBlank(value) {
			return failure{}, nil
		}
		n, ok := length(value)
		if !ok {
			return failure{CodeLength, "has no length"}, nil
		}
		switch {
		case b.Min > 0 && n < b.Min:
			return failure{CodeLength, "too short"}, nil
		case b.Max > 0 && n > b.Max:
			return failure{CodeLength, "too long"}, nil
		case b.Is > 0 && n != b.Is:
			return failure{CodeLength, "length is wrong"}, nil
		}
		return failure{}, nil
	}, opts)
}

func length(v any) (int, bool) {
	switch x := v.(type) {
	case string:
		return utf8.RuneCountInString(x), true
	case *core.List:
		return x.Len(), true
	case []any:
		return len(x), true
	}
	return 0, false
}

// Format requires string values to match re.
func (v *Validator) Format(field string, re *regexp.Regexp, opts ...Option) *Validator {
	return v.add(field, func(_ context.Context, e *core.Entity, field string, _ *rule) (failure, error) {
		value := e.Get(field)
		if core.IsBlank(value) {
			return failure{}, nil
		}
		s, ok := value.(string)
		if !ok || !re.MatchString(s) {
			return failure{CodeFormat, "is invalid"}, nil
		}
		return failure{}, nil
	}, opts)
}

// Numericality requires a numeric value, integral when integer is set.
func (v *Validator) Numericality(field string, integer bool, opts ...Option) *Validator {
	return v.add(field, func(_ context.Context, e *core.Entity, field string, _ *rule) (failure, error) {
		switch e.Get(field).(type) {
		case nil:
			return failure{}, nil
		case int64:
			return failure{}, nil
		case float64:
			if integer {
				return failure{CodeNumericality, "is not an integer"}, nil
			}
			return failure{}, nil
		}
		return failure{CodeNumericality, "is not a number"}, nil
	}, opts)
}

// Inclusion requires the value to be one of values.
func (v *Validator) Inclusion(field string, values []any, opts ...Option) *Validator {
	return v.add(field, func(_ context.Context, e *core.Entity, field string, _ *rule) (failure, error) {
		value := e.Get(field)
		if core.IsBlank(value) || member(value, values) {
			return failure{}, nil
		}
		return failure{CodeInclusion, "is not included in the list"}, nil
	}, opts)
}

// Exclusion rejects the values listed.
func (v *Validator) Exclusion(field string, values []any, opts ...Option) *Validator {
	return v.add(field, func(_ context.Context, e *core.Entity, field string, _ *rule) (failure, error) {
		value := e.Get(field)
		if core.IsBlank(value) || !member(value, values) {
			return failure{}, nil
		}
		return failure{CodeExclusion, "is reserved"}, nil
	}, opts)
}

func member(v any, values []any) bool {
	key := core.Key(v)
	for _, candidate := range values {
		if core.Key(candidate) == key {
			return true
		}
	}
	return false
}

// Uniqueness requires no other stored entity of the model to share the value.
func (v *Validator) Uniqueness(field string, opts ...Option) *Validator {
	return v.add(field, func(ctx context.Context, e *core.Entity, field string, r *rule) (failure, error) {
		value := e.Get(field)
		if value == nil && r.allowNil {
			return failure{}, nil
		}
		found, err := e.Model().All(ctx, core.Query{Where: core.Where{field: value}, Limit: 2})
		if err != nil {
			return failure{}, err
		}
		switch {
		case len(found) == 0:
			return failure{}, nil
		case len(found) == 1 && !e.IsNew() && core.Key(found[0].ID()) == core.Key(e.ID()):
			return failure{}, nil
		}
		return failure{CodeUniqueness, "is not unique"}, nil
	}, opts)
}

// Custom runs fn; a false result fails with code "custom".
func (v *Validator) Custom(field string, fn CheckFunc, opts ...Option) *Validator {
	return v.add(field, func(ctx context.Context, e *core.Entity, field string, _ *rule) (failure, error) {
		ok, err := fn(ctx, e, field)
		if err != nil {
			return failure{}, err
		}
		if !ok {
			return failure{CodeCustom, "is invalid"}, nil
		}
		return failure{}, nil
	}, opts)
}

// Expr requires expression to be truthy. The expression sees the entity's
// values by name and the checked field's value as "value".
func (v *Validator) Expr(field, expression string, opts ...Option) *Validator {
	program, compileErr := compile(expression)
	v.add(field, func(_ context.Context, e *core.Entity, field string, _ *rule) (failure, error) {
		env := e.ToObject(false)
		env["value"] = e.Get(field)
		out, err := exprlang.Run(program, map[string]any(env))
		if err != nil {
			return failure{}, err
		}
		if !truthy(out) {
			return failure{CodeExpr, "is invalid"}, nil
		}
		return failure{}, nil
	}, opts)
	if compileErr != nil {
		v.rules[len(v.rules)-1].err = compileErr
	}
	return v
}

var _ core.Validatable = (*Validator)(nil)
