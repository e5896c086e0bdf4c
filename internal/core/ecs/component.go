package ecs

import "math"

// ComponentID identifies a registered component type within one registry.
type ComponentID uint64

// Component is a named, registered attribute slot. Each component type
// stores one float32 per entity that carries it.
type Component struct {
	ID   ComponentID
	Name string
}

// FlagValue is the value attached for module flag components.
const FlagValue float32 = 1

// Null is the reserved sentinel meaning "attached but unset". Presence of a
// component is tracked by index membership, never by comparing against Null,
// so a present value of zero is always distinct from absence.
var Null = float32(math.NaN())

// IsNull reports whether v is the null sentinel.
func IsNull(v float32) bool {
	return v != v // NaN is the only value not equal to itself
}
