// Package optional holds Value, a maybe-present value. The state machine answers "which
// superstate?" and "which timeout?" with it, where absence is a normal answer.
package optional

import "fmt"

// Value is either Some(v) or None. The zero Value is None. Values of comparable T
// compare with ==.
type Value[T any] struct {
	v  T
	ok bool
}

func Some[T any](v T) Value[T] {
	return Value[T]{v: v, ok: true}
}

func None[T any]() Value[T] {
	return Value[T]{}
}

// FromLookup adapts the comma-ok idiom: FromLookup(m[k]) after `v, ok := m[k]`.
func FromLookup[T any](v T, ok bool) Value[T] {
	if !ok {
		return None[T]()
	}

	return Some(v)
}

// Get returns the value and whether it is present.
func (o Value[T]) Get() (T, bool) {
	return o.v, o.ok
}

func (o Value[T]) NonEmpty() bool { return o.ok }

func (o Value[T]) Empty() bool { return !o.ok }

// String renders Some(v) or None, as seen in logs and span attributes.
func (o Value[T]) String() string {
	if !o.ok {
		return "None"
	}

	return fmt.Sprintf("Some(%v)", o.v)
}
