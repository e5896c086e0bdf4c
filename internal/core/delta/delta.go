// Package delta computes compact differences between two snapshots of
// the same match and applies them back, so clients that hold tick N can
// be brought to tick M without shipping the full state.
package delta

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/snapshot"
)

// ErrTickNotFound is returned when the history holds no snapshot for a
// requested tick.
var ErrTickNotFound = errors.New("tick not found in history")

// History supplies archived snapshots by tick.
type History interface {
	SnapshotAt(matchID, tick uint64) (*snapshot.Snapshot, bool)
}

// Delta is the difference between two ticks of one match. Changed is
// keyed module, component, entity and holds the new values, including
// every value of entities new to a module. Added and Removed list
// entities that appeared or vanished across all modules, sorted
// ascending; a given entity never appears in both.
type Delta struct {
	MatchID  uint64
	FromTick uint64
	ToTick   uint64

	Changed map[string]map[string]map[ecs.EntityID]float32
	Added   []ecs.EntityID
	Removed []ecs.EntityID

	// ChangeCount is changed cells plus added plus removed entities.
	ChangeCount int
	// CompressionRatio is changed cells over the target snapshot's
	// total cells. Small means the delta is worth shipping.
	CompressionRatio float64
}

// Empty reports whether the delta carries no changes.
func (d *Delta) Empty() bool {
	return d.ChangeCount == 0
}

// Engine computes and applies deltas against a snapshot history.
type Engine struct {
	history History
}

func NewEngine(history History) *Engine {
	return &Engine{history: history}
}

// ComputeDelta diffs the match between fromTick and toTick. Both ticks
// must be present in history.
func (e *Engine) ComputeDelta(matchID, fromTick, toTick uint64) (*Delta, error) {
	from, ok := e.history.SnapshotAt(matchID, fromTick)
	if !ok {
		return nil, fmt.Errorf("match %d tick %d: %w", matchID, fromTick, ErrTickNotFound)
	}
	to, ok := e.history.SnapshotAt(matchID, toTick)
	if !ok {
		return nil, fmt.Errorf("match %d tick %d: %w", matchID, toTick, ErrTickNotFound)
	}

	d := &Delta{
		MatchID:  matchID,
		FromTick: fromTick,
		ToTick:   toTick,
		Changed:  make(map[string]map[string]map[ecs.EntityID]float32),
	}

	fromSet := entitySet(from)
	toSet := entitySet(to)
	d.Added = diffSet(toSet, fromSet)
	d.Removed = diffSet(fromSet, toSet)

	cells := 0
	for i := range to.Modules {
		toMod := &to.Modules[i]
		fromMod := from.Module(toMod.Name)
		for slot, id := range toMod.Entities {
			fromSlot := -1
			if fromMod != nil {
				fromSlot = fromMod.Slot(id)
			}
			for name, col := range toMod.Components {
				newVal := col[slot]
				if fromSlot >= 0 {
					oldVal := fromMod.Components[name][fromSlot]
					if sameValue(oldVal, newVal) {
						continue
					}
				}
				d.set(toMod.Name, name, id, newVal)
				cells++
			}
		}
	}

	d.ChangeCount = cells + len(d.Added) + len(d.Removed)
	if full := to.CellCount(); full > 0 {
		d.CompressionRatio = float64(cells) / float64(full)
	}
	return d, nil
}

func (d *Delta) set(module, comp string, id ecs.EntityID, v float32) {
	m, ok := d.Changed[module]
	if !ok {
		m = make(map[string]map[ecs.EntityID]float32)
		d.Changed[module] = m
	}
	c, ok := m[comp]
	if !ok {
		c = make(map[ecs.EntityID]float32)
		m[comp] = c
	}
	c[id] = v
}

// sameValue treats two nulls as equal even though NaN != NaN.
func sameValue(a, b float32) bool {
	if ecs.IsNull(a) && ecs.IsNull(b) {
		return true
	}
	return a == b
}

func entitySet(s *snapshot.Snapshot) map[ecs.EntityID]struct{} {
	set := make(map[ecs.EntityID]struct{}, 64)
	for i := range s.Modules {
		for _, id := range s.Modules[i].Entities {
			set[id] = struct{}{}
		}
	}
	return set
}

func diffSet(a, b map[ecs.EntityID]struct{}) []ecs.EntityID {
	out := make([]ecs.EntityID, 0, 8)
	for id := range a {
		if _, ok := b[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Apply reconstructs the target snapshot from base plus the delta. The
// result's tick is the delta's ToTick; base is left untouched.
func (e *Engine) Apply(base *snapshot.Snapshot, d *Delta) (*snapshot.Snapshot, error) {
	if base.MatchID != d.MatchID {
		return nil, fmt.Errorf("delta for match %d applied to match %d", d.MatchID, base.MatchID)
	}
	if base.Tick != d.FromTick {
		return nil, fmt.Errorf("delta from tick %d applied to tick %d", d.FromTick, base.Tick)
	}

	removed := make(map[ecs.EntityID]struct{}, len(d.Removed))
	for _, id := range d.Removed {
		removed[id] = struct{}{}
	}

	next := &snapshot.Snapshot{
		Tick:    d.ToTick,
		MatchID: d.MatchID,
		Modules: make([]snapshot.ModuleData, 0, len(base.Modules)),
	}
	for i := range base.Modules {
		next.Modules = append(next.Modules, applyModule(&base.Modules[i], d, removed))
	}
	return next, nil
}

func applyModule(old *snapshot.ModuleData, d *Delta, removed map[ecs.EntityID]struct{}) snapshot.ModuleData {
	changed := d.Changed[old.Name]

	keep := make([]int, 0, len(old.Entities))
	for i, id := range old.Entities {
		if _, gone := removed[id]; !gone {
			keep = append(keep, i)
		}
	}

	md := snapshot.ModuleData{
		Name:       old.Name,
		Entities:   make([]ecs.EntityID, 0, len(keep)),
		Components: make(map[string][]float32, len(old.Components)),
	}
	for _, i := range keep {
		md.Entities = append(md.Entities, old.Entities[i])
	}
	for name, col := range old.Components {
		next := make([]float32, 0, len(keep))
		for _, i := range keep {
			next = append(next, col[i])
		}
		md.Components[name] = next
	}

	// Overwrite surviving rows with their new values.
	for slot, id := range md.Entities {
		for name, byEntity := range changed {
			if v, ok := byEntity[id]; ok {
				md.Components[name][slot] = v
			}
		}
	}

	// Append entities new to this module. Newcomers are those whose
	// ENTITY_ID cell appears in the delta but who held no row before;
	// ids are monotonic so sorted appends preserve the ascending order
	// invariant.
	newcomers := make([]ecs.EntityID, 0, len(d.Added))
	for id := range changed["ENTITY_ID"] {
		if old.Slot(id) < 0 {
			newcomers = append(newcomers, id)
		}
	}
	sort.Slice(newcomers, func(i, j int) bool { return newcomers[i] < newcomers[j] })
	for _, id := range newcomers {
		md.Entities = append(md.Entities, id)
		for name := range md.Components {
			v := ecs.Null
			if byEntity, ok := changed[name]; ok {
				if nv, ok := byEntity[id]; ok {
					v = nv
				}
			}
			md.Components[name] = append(md.Components[name], v)
		}
	}
	return md
}
