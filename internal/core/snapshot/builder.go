package snapshot

import (
	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
)

// ModuleInfo describes one installed module for snapshot purposes: its
// ownership flag and the components to export alongside ENTITY_ID.
type ModuleInfo struct {
	Name       string
	Flag       ecs.Component
	Components []ecs.Component
}

// Builder constructs full snapshots straight from the store. modules is
// consulted on every build so installs after construction are picked up.
type Builder struct {
	store   *ecs.Store
	reg     *ecs.Registry
	modules func() []ModuleInfo
}

func NewBuilder(store *ecs.Store, reg *ecs.Registry, modules func() []ModuleInfo) *Builder {
	return &Builder{store: store, reg: reg, modules: modules}
}

// Modules returns the current module descriptors.
func (b *Builder) Modules() []ModuleInfo {
	return b.modules()
}

// BuildMatch assembles a complete snapshot of one match. Must run while
// the store is quiet, under the scheduler's run lock.
func (b *Builder) BuildMatch(matchID uint64, tick uint64) *Snapshot {
	snap := &Snapshot{Tick: tick, MatchID: matchID}
	want := float32(matchID)
	for _, info := range b.modules() {
		candidates := b.store.EntitiesWith(info.Flag, b.reg.MatchID())
		entities := make([]ecs.EntityID, 0, len(candidates))
		for _, id := range candidates {
			if b.store.Get(id, b.reg.MatchID()) == want {
				entities = append(entities, id)
			}
		}
		snap.Modules = append(snap.Modules, b.buildModule(info, entities))
	}
	return snap
}

func (b *Builder) buildModule(info ModuleInfo, entities []ecs.EntityID) ModuleData {
	md := ModuleData{
		Name:       info.Name,
		Entities:   entities,
		Components: make(map[string][]float32, len(info.Components)+1),
	}
	for _, comp := range b.exportColumns(info) {
		col := make([]float32, len(entities))
		for i, id := range entities {
			col[i] = b.store.Get(id, comp)
		}
		md.Components[comp.Name] = col
	}
	return md
}

// buildRow produces one entity's values in the module's column set, used
// by incremental appends so new rows match full-build layout exactly.
func (b *Builder) buildRow(info ModuleInfo, id ecs.EntityID) map[string]float32 {
	row := make(map[string]float32, len(info.Components)+1)
	for _, comp := range b.exportColumns(info) {
		row[comp.Name] = b.store.Get(id, comp)
	}
	return row
}

func (b *Builder) exportColumns(info ModuleInfo) []ecs.Component {
	cols := make([]ecs.Component, 0, len(info.Components)+1)
	cols = append(cols, b.reg.EntityID())
	cols = append(cols, info.Components...)
	return cols
}

// Value reads a live component value by name for incremental cell
// refresh.
func (b *Builder) Value(id ecs.EntityID, comp ecs.Component) float32 {
	return b.store.Get(id, comp)
}

// Owns reports whether the module's flag is on the entity, used when
// deciding which modules a freshly added entity belongs to.
func (b *Builder) Owns(info ModuleInfo, id ecs.EntityID) bool {
	return b.store.Has(id, info.Flag)
}
