package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUsage            = errors.New("invalid usage")
	ErrDefinition       = errors.New("invalid model definition")

	// The following are usage errors: errors.Is(err, ErrUsage) holds for all of them.
	ErrNoMatches         = fmt.Errorf("%w: no matching records", ErrUsage)
	ErrUndefinedScope    = fmt.Errorf("%w: undefined scope", ErrUsage)
	ErrUndefinedRelation = fmt.Errorf("%w: undefined relation", ErrUsage)
)

// ValidationError reports every failed rule of a single validation run.
// Codes and Messages are keyed by field name and aligned index by index.
type ValidationError struct {
	Subject  *Entity
	Codes    map[string][]string
	Messages map[string][]string
}

// NewValidationError returns an empty failure report for subject.
func NewValidationError(subject *Entity) *ValidationError {
	return &ValidationError{
		Subject:  subject,
		Codes:    make(map[string][]string),
		Messages: make(map[string][]string),
	}
}

// Add records a failed rule for field.
func (e *ValidationError) Add(field, code, message string) {
	e.Codes[field] = append(e.Codes[field], code)
	e.Messages[field] = append(e.Messages[field], message)
}

// Empty reports whether no rule failed.
func (e *ValidationError) Empty() bool {
	return len(e.Codes) == 0
}

// Fields returns the failed field names in sorted order.
func (e *ValidationError) Fields() []string {
	names := make([]string, 0, len(e.Codes))
	for name := range e.Codes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *ValidationError) Error() string {
	var parts []string
	for _, field := range e.Fields() {
		for _, msg := range e.Messages[field] {
			parts = append(parts, field+" "+msg)
		}
	}
	model := "entity"
	if e.Subject != nil && e.Subject.model != nil {
		model = e.Subject.model.Name
	}
	return fmt.Sprintf("%s is invalid: %s", model, strings.Join(parts, "; "))
}

// BatchError is returned by CreateMany when at least one element failed.
// Errors is aligned with the input: a nil entry means that element succeeded.
type BatchError struct {
	Errors []error
}

func (e *BatchError) Error() string {
	failed := e.Failed()
	if len(failed) == 0 {
		return "batch failed"
	}
	return fmt.Sprintf("%d of %d elements failed: %v", len(failed), len(e.Errors), failed[0])
}

// Failed returns the non-nil errors in input order.
func (e *BatchError) Failed() []error {
	var out []error
	for _, err := range e.Errors {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// Unwrap exposes the element errors to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	return e.Failed()
}
