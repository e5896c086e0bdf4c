package ecs

import "fmt"

// ModuleView is the write surface a module sees. Every mutating call is
// guarded by the module's ownership flag: only entities carrying the flag
// may be touched, so one module can never corrupt another's state. Reads
// are unguarded and stay O(1).
type ModuleView struct {
	store *Store
	reg   *Registry
	flag  Component
	name  string
}

func NewModuleView(store *Store, reg *Registry, flag Component) *ModuleView {
	return &ModuleView{store: store, reg: reg, flag: flag, name: flag.Name}
}

// ModuleName returns the owning module's name.
func (v *ModuleView) ModuleName() string { return v.name }

// Flag returns the module's ownership flag component.
func (v *ModuleView) Flag() Component { return v.flag }

// Component resolves a component by name, registering it on first use.
func (v *ModuleView) Component(name string) Component {
	return v.reg.Register(name)
}

// CreateEntity creates an entity owned by this module within the given
// match. The flag is attached first so change tracking sees the entity as
// owned before its match assignment lands.
func (v *ModuleView) CreateEntity(matchID uint64) EntityID {
	id := v.store.CreateEntity()
	v.store.Attach(id, v.flag, FlagValue)
	v.store.Attach(id, v.reg.MatchID(), float32(matchID))
	v.store.Attach(id, v.reg.EntityID(), float32(id))
	return id
}

func (v *ModuleView) owned(id EntityID) error {
	if !v.store.Exists(id) {
		return fmt.Errorf("module %s: entity %d: %w", v.name, id, ErrEntityNotFound)
	}
	if !v.store.Has(id, v.flag) {
		return fmt.Errorf("module %s: entity %d: %w", v.name, id, ErrNotOwned)
	}
	return nil
}

// Attach sets a component value on an owned entity.
func (v *ModuleView) Attach(id EntityID, comp Component, val float32) error {
	if err := v.owned(id); err != nil {
		return err
	}
	v.store.Attach(id, comp, val)
	return nil
}

// AttachMany sets several components on an owned entity. The ownership
// check runs once up front so a rejected call leaves nothing attached.
func (v *ModuleView) AttachMany(id EntityID, vals map[Component]float32) error {
	if err := v.owned(id); err != nil {
		return err
	}
	for comp, val := range vals {
		v.store.Attach(id, comp, val)
	}
	return nil
}

// Get returns the component's value, or Null when absent. Unguarded.
func (v *ModuleView) Get(id EntityID, comp Component) float32 {
	return v.store.Get(id, comp)
}

// Has reports whether the entity carries the component. Unguarded.
func (v *ModuleView) Has(id EntityID, comp Component) bool {
	return v.store.Has(id, comp)
}

// Remove detaches a component from an owned entity.
func (v *ModuleView) Remove(id EntityID, comp Component) error {
	if err := v.owned(id); err != nil {
		return err
	}
	v.store.Remove(id, comp)
	return nil
}

// Delete destroys an owned entity entirely.
func (v *ModuleView) Delete(id EntityID) error {
	if err := v.owned(id); err != nil {
		return err
	}
	v.store.DeleteEntity(id)
	return nil
}

// EntitiesWith returns this module's entities carrying all the given
// components, sorted ascending. The ownership flag is an implicit filter.
func (v *ModuleView) EntitiesWith(comps ...Component) []EntityID {
	all := make([]Component, 0, len(comps)+1)
	all = append(all, v.flag)
	all = append(all, comps...)
	return v.store.EntitiesWith(all...)
}

// MatchEntities returns this module's entities in the given match, sorted
// ascending.
func (v *ModuleView) MatchEntities(matchID uint64) []EntityID {
	ids := v.store.EntitiesWith(v.flag, v.reg.MatchID())
	out := ids[:0]
	want := float32(matchID)
	for _, id := range ids {
		if v.store.Get(id, v.reg.MatchID()) == want {
			out = append(out, id)
		}
	}
	return out
}
