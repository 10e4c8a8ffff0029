// Package patch decodes client change payloads into tri-state fields.
//
// A key missing from the payload is Unset and means "no change", an explicit
// null is Null and means "clear", anything else is a Value.
package patch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// State classifies an Optional.
type State uint8

const (
	Unset State = iota
	Null
	Value
)

func (s State) String() string {
	switch s {
	case Unset:
		return "unset"
	case Null:
		return "null"
	case Value:
		return "value"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Optional is a field that remembers whether it was sent, sent as null, or
// sent with a value. The zero value is Unset.
type Optional[T any] struct {
	state State
	value T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{state: Value, value: v}
}

// None returns an explicit null.
func None[T any]() Optional[T] {
	return Optional[T]{state: Null}
}

// State reports which of the three states o is in.
func (o Optional[T]) State() State { return o.state }

// IsSet reports whether the field was present in the payload.
func (o Optional[T]) IsSet() bool { return o.state != Unset }

// IsNull reports an explicit null.
func (o Optional[T]) IsNull() bool { return o.state == Null }

// IsZero reports Unset, so `omitzero` drops fields that were never set.
func (o Optional[T]) IsZero() bool { return o.state == Unset }

// Get returns the value and whether o holds one.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.state == Value
}

// Or returns the value, or def when o does not hold one.
func (o Optional[T]) Or(def T) T {
	if o.state == Value {
		return o.value
	}
	return def
}

// Ptr returns a pointer to a copy of the value, or nil for Unset and Null.
func (o Optional[T]) Ptr() *T {
	if o.state != Value {
		return nil
	}
	v := o.value
	return &v
}

// UnmarshalJSON is only called by encoding/json when the key is present,
// which is what keeps Unset distinct from Null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.state, o.value = Null, zero
		return nil
	}

	var v T
	err := json.Unmarshal(data, &v)
	if err != nil && isNumeric[T]() && len(data) > 0 && data[0] == '"' {
		// Numbers may arrive quoted.
		var s string
		if json.Unmarshal(data, &s) == nil {
			err = json.Unmarshal([]byte(s), &v)
		}
	}
	if err != nil {
		return err
	}
	o.state, o.value = Value, v
	return nil
}

// MarshalJSON writes null for Null and Unset, the value otherwise.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.state != Value {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o Optional[T]) String() string {
	switch o.state {
	case Value:
		return fmt.Sprint(o.value)
	case Null:
		return "null"
	default:
		return "unset"
	}
}

func isNumeric[T any]() bool {
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
