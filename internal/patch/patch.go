// Package patch provides a presence-tracking field for partial updates.
package patch

import (
	"bytes"
	"encoding/json"
)

// Field records whether a JSON key was present and whether it was null:
//   - Set=false: key absent, leave the stored value alone
//   - Set=true, Null=true: key was JSON null
//   - Set=true, Null=false: Value holds the decoded value
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Of returns a field set to v.
func Of[T any](v T) Field[T] { return Field[T]{Set: true, Value: v} }

// Null returns a field explicitly set to null.
func Null[T any]() Field[T] { return Field[T]{Set: true, Null: true} }

// UnmarshalJSON is only called when the key is present.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(bytes.TrimSpace(data)) == "null" {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}
