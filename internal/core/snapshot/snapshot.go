// Package snapshot builds and caches columnar per-match views of the
// component store. A snapshot groups entities by module and lays each
// component out as a float array positionally aligned with the module's
// entity list, which is the wire shape clients consume.
package snapshot

import (
	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
)

// ModuleData is one module's slice of a snapshot. Entities are sorted
// ascending; every component array has exactly one value per entity at
// the matching position. The ENTITY_ID column is always present; the
// module's ownership flag is omitted since membership already implies it.
type ModuleData struct {
	Name       string               `json:"name"`
	Entities   []ecs.EntityID       `json:"entities"`
	Components map[string][]float32 `json:"components"`
}

// Slot returns the row index of the entity, or -1. Entities are sorted
// so this is a binary search.
func (m *ModuleData) Slot(id ecs.EntityID) int {
	lo, hi := 0, len(m.Entities)
	for lo < hi {
		mid := (lo + hi) / 2
		if m.Entities[mid] < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(m.Entities) && m.Entities[lo] == id {
		return lo
	}
	return -1
}

// Snapshot is the complete columnar state of one match at one tick.
// Snapshots are immutable once built; incremental generation produces a
// new Snapshot that shares untouched module data with its predecessor.
type Snapshot struct {
	Tick    uint64       `json:"tick"`
	MatchID uint64       `json:"matchId"`
	Modules []ModuleData `json:"modules"`
}

// Module returns the named module's data, or nil.
func (s *Snapshot) Module(name string) *ModuleData {
	for i := range s.Modules {
		if s.Modules[i].Name == name {
			return &s.Modules[i]
		}
	}
	return nil
}

// EntityCount returns the distinct entity count across modules. Entities
// owned by several modules count once.
func (s *Snapshot) EntityCount() int {
	seen := make(map[ecs.EntityID]struct{}, 64)
	for i := range s.Modules {
		for _, id := range s.Modules[i].Entities {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

// CellCount returns the total number of component values held, the
// denominator for delta compression ratios.
func (s *Snapshot) CellCount() int {
	n := 0
	for i := range s.Modules {
		n += len(s.Modules[i].Components) * len(s.Modules[i].Entities)
	}
	return n
}
