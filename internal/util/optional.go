// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"bytes"
	"encoding/json"
)

// Optional is a tri-state JSON field: omitted, explicit null, or a value.
// Use it for partial updates where null clears and omission keeps.
type Optional[T any] struct {
	Set   bool // field was present in the document
	Null  bool // field was present and null
	Value T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns an Optional that is explicitly null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// UnmarshalJSON implements json.Unmarshaler. It is only called when the
// field is present, which is how omission is told apart from null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Null = true
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON implements json.Marshaler.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// IsZero reports whether the field was omitted; used by the omitzero tag option.
func (o Optional[T]) IsZero() bool {
	return !o.Set
}

// HasValue reports whether the field carries a non-null value.
func (o Optional[T]) HasValue() bool {
	return o.Set && !o.Null
}

// Apply merges the field onto current: omitted keeps current,
// null yields the zero value, otherwise the new value wins.
func (o Optional[T]) Apply(current T) T {
	if !o.Set {
		return current
	}
	if o.Null {
		var zero T
		return zero
	}
	return o.Value
}
