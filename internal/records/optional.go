package records

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Optional is a value that may be absent. Absent is a distinct state from the zero
// value of T, so Some("") and None[string]() are not equal.
//
// The zero Optional is absent and reports IsZero, which lets struct fields tagged with
// `omitzero` disappear from encoded JSON.
type Optional[T any] struct {
	value T
	ok    bool
}

func Some[T any](value T) Optional[T] {
	return Optional[T]{value: value, ok: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Text turns extracted page text into an Optional, whitespace-only text is absent.
func Text(s string) Optional[string] {
	s = strings.TrimSpace(s)
	if s == "" {
		return None[string]()
	}
	return Some(s)
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

func (o Optional[T]) Or(fallback T) T {
	if !o.ok {
		return fallback
	}
	return o.value
}

func (o Optional[T]) Present() bool {
	return o.ok
}

func (o Optional[T]) IsZero() bool {
	return !o.ok
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None[T]()
		return nil
	}
	var value T
	err := json.Unmarshal(data, &value)
	if err != nil {
		return err
	}
	*o = Some(value)
	return nil
}
