package graph

import (
	"fmt"
	"reflect"
)

// Field names one entry of the shared state
type Field string

// MergePolicy decides how a patch value is merged into the state
type MergePolicy int

const (
	// Replace overwrites the current value
	Replace MergePolicy = iota
	// Append concatenates slice values of the same type
	Append
	// Immutable may be set once, normally in the initial state
	Immutable
)

// String returns the policy name
func (p MergePolicy) String() string {
	switch p {
	case Replace:
		return "replace"
	case Append:
		return "append"
	case Immutable:
		return "immutable"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// State is the record threaded through one run
type State map[Field]interface{}

// Patch is the partial update a node returns
type Patch map[Field]interface{}

// Clone returns a shallow copy of the state
func (s State) Clone() State {
	c := make(State, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Get returns the typed value of a field
func Get[T any](s State, f Field) (T, bool) {
	v, ok := s[f].(T)
	return v, ok
}

// Schema is the merge-policy table declared when a graph is built
type Schema map[Field]MergePolicy

// Validate checks that every field of an initial state is declared
func (sc Schema) Validate(s State) error {
	for f := range s {
		if _, ok := sc[f]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, f)
		}
	}
	return nil
}

// Apply merges a patch into the state. Nothing is written unless every
// field of the patch merges cleanly.
func (sc Schema) Apply(s State, p Patch) error {
	merged := make(map[Field]interface{}, len(p))

	for f, v := range p {
		policy, ok := sc[f]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, f)
		}

		switch policy {
		case Replace:
			merged[f] = v
		case Immutable:
			if _, exists := s[f]; exists {
				return fmt.Errorf("%w: %s", ErrImmutableField, f)
			}
			merged[f] = v
		case Append:
			out, err := appendValue(s[f], v)
			if err != nil {
				return fmt.Errorf("field %s: %w", f, err)
			}
			merged[f] = out
		default:
			return fmt.Errorf("field %s: unsupported merge policy %s", f, policy)
		}
	}

	for f, v := range merged {
		s[f] = v
	}
	return nil
}

func appendValue(existing, value interface{}) (interface{}, error) {
	if value == nil {
		return existing, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: got %T", ErrNotAppendable, value)
	}

	if existing == nil {
		out := reflect.MakeSlice(rv.Type(), 0, rv.Len())
		return reflect.AppendSlice(out, rv).Interface(), nil
	}

	ev := reflect.ValueOf(existing)
	if ev.Type() != rv.Type() {
		return nil, fmt.Errorf("%w: have %T, got %T", ErrTypeMismatch, existing, value)
	}

	return reflect.AppendSlice(ev, rv).Interface(), nil
}
