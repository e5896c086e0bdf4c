package ecs

import "sync/atomic"

// EntityID is an opaque 64-bit identifier for one simulated object.
// Existence is defined purely by having at least one attached component.
type EntityID uint64

// Sequence hands out monotonically increasing entity ids. One sequence is
// shared by every store in a process so ids never collide across containers
// or matches.
type Sequence struct {
	next atomic.Uint64
}

func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns a fresh, never-before-issued id. Safe for concurrent use.
func (s *Sequence) Next() EntityID {
	return EntityID(s.next.Add(1))
}
