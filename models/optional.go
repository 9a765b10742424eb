package models

import (
	"bytes"
	"encoding/json"
)

// OptionalID is a tri-state reference used where "leave unchanged" and
// "clear" must not be confused:
//   - Present=false: field absent from the input (leave unchanged)
//   - Present=true, Value=nil: explicit null (move to root)
//   - Present=true, Value=&id: reference to id
type OptionalID struct {
	Present bool
	Value   *string
}

// SetID returns an OptionalID referencing id
func SetID(id string) OptionalID {
	return OptionalID{Present: true, Value: &id}
}

// SetNull returns an OptionalID holding an explicit null
func SetNull() OptionalID {
	return OptionalID{Present: true}
}

// IsNull reports whether the field was given as an explicit null
func (o OptionalID) IsNull() bool {
	return o.Present && o.Value == nil
}

// ID returns the referenced id, or nil when absent or null
func (o OptionalID) ID() *string {
	if !o.Present || o.Value == nil {
		return nil
	}
	id := *o.Value
	return &id
}

// UnmarshalJSON implements json.Unmarshaler.
// When this method is called, the field was present in the JSON.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Present = true
	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// MarshalJSON implements json.Marshaler. Fields should carry omitzero so an
// absent value is skipped instead of rendered as null.
func (o OptionalID) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
