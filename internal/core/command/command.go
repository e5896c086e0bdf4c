// Package command provides the schema-validated command queue that feeds
// a container's tick loop. Commands are enqueued from any goroutine,
// validated synchronously against their declared schema, and drained in
// FIFO order at the start of each tick.
package command

import (
	"errors"
	"fmt"
)

// Kind is the declared type of a schema field.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Schema declares the required fields of a command's payload. Fields not
// listed in the schema are allowed and pass through unvalidated.
type Schema map[string]Kind

// ErrCommandNotFound is returned when enqueueing a command no handler
// registered.
var ErrCommandNotFound = errors.New("command not found")

// ValidationError describes the first schema violation found in a
// payload. Validation rejects the command before it ever reaches the
// queue, so the tick loop only sees well-formed payloads.
type ValidationError struct {
	Command string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("command %s: field %s: %s", e.Command, e.Field, e.Reason)
}

// Validate checks p against the schema, returning a *ValidationError on
// the first missing or mistyped field.
func (s Schema) Validate(cmd string, p Payload) error {
	for field, kind := range s {
		v, ok := p[field]
		if !ok {
			return &ValidationError{Command: cmd, Field: field, Reason: "missing"}
		}
		if !kindMatches(kind, v) {
			return &ValidationError{
				Command: cmd,
				Field:   field,
				Reason:  fmt.Sprintf("expected %s, got %T", kind, v),
			}
		}
	}
	return nil
}

func kindMatches(k Kind, v any) bool {
	switch k {
	case KindNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64, uint, uint32, uint64:
			return true
		}
		return false
	case KindString:
		_, ok := v.(string)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	default:
		return false
	}
}

// Payload is the argument map of one command instance.
type Payload map[string]any

// Float returns the named field coerced to float64. Zero when absent or
// not numeric; schemas guarantee presence for declared fields.
func (p Payload) Float(field string) float64 {
	switch v := p[field].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	}
	return 0
}

// Uint64 returns the named field truncated to uint64.
func (p Payload) Uint64(field string) uint64 {
	return uint64(p.Float(field))
}

// String returns the named field as a string, or "" when absent.
func (p Payload) String(field string) string {
	s, _ := p[field].(string)
	return s
}

// Bool returns the named field as a bool, or false when absent.
func (p Payload) Bool(field string) bool {
	b, _ := p[field].(bool)
	return b
}
