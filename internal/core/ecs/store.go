package ecs

import "sort"

// Observer receives change notifications from a Store. EntityDeleting fires
// before the entity's data is cleared so the observer can still read its
// components.
type Observer interface {
	ComponentChanged(id EntityID, comp ComponentID)
	EntityDeleting(id EntityID)
}

// column is the dense storage for one component type. values and entities
// are positionally aligned; index maps an entity to its slot. Removal
// swaps the last slot into the hole so both slices stay packed.
type column struct {
	values   []float32
	entities []EntityID
	index    map[EntityID]int
}

func newColumn() *column {
	return &column{index: make(map[EntityID]int, 16)}
}

// set overwrites the entity's value, appending a slot on first attach.
// Reports whether the entity was new to the column.
func (c *column) set(id EntityID, v float32) bool {
	if slot, ok := c.index[id]; ok {
		c.values[slot] = v
		return false
	}
	c.index[id] = len(c.values)
	c.values = append(c.values, v)
	c.entities = append(c.entities, id)
	return true
}

func (c *column) get(id EntityID) (float32, bool) {
	slot, ok := c.index[id]
	if !ok {
		return Null, false
	}
	return c.values[slot], true
}

// remove drops the entity's slot, moving the last slot into its place.
// Reports whether the entity was present.
func (c *column) remove(id EntityID) bool {
	slot, ok := c.index[id]
	if !ok {
		return false
	}
	last := len(c.values) - 1
	if slot != last {
		c.values[slot] = c.values[last]
		moved := c.entities[last]
		c.entities[slot] = moved
		c.index[moved] = slot
	}
	c.values = c.values[:last]
	c.entities = c.entities[:last]
	delete(c.index, id)
	return true
}

// Store holds all component data for one container as dense per-component
// columns. An entity exists exactly while it has at least one attached
// component; removing the last one destroys it.
//
// The store performs no locking. All mutation happens on the tick
// goroutine; readers that run off-tick must arrange exclusion with the
// scheduler.
type Store struct {
	seq      *Sequence
	columns  map[ComponentID]*column
	refs     map[EntityID]int
	observer Observer
}

func NewStore(seq *Sequence) *Store {
	return &Store{
		seq:     seq,
		columns: make(map[ComponentID]*column, 32),
		refs:    make(map[EntityID]int, 256),
	}
}

// SetObserver installs the single change observer. Pass nil to detach.
func (s *Store) SetObserver(o Observer) {
	s.observer = o
}

// CreateEntity reserves a fresh id. The entity does not exist until a
// component is attached.
func (s *Store) CreateEntity() EntityID {
	return s.seq.Next()
}

// Attach sets the component's value for the entity, creating the entity
// implicitly if this is its first component.
func (s *Store) Attach(id EntityID, comp Component, v float32) {
	col, ok := s.columns[comp.ID]
	if !ok {
		col = newColumn()
		s.columns[comp.ID] = col
	}
	if col.set(id, v) {
		s.refs[id]++
	}
	if s.observer != nil {
		s.observer.ComponentChanged(id, comp.ID)
	}
}

// Get returns the component's value, or Null when the entity does not
// carry it. Attached-but-unset and absent are distinguished with Has.
func (s *Store) Get(id EntityID, comp Component) float32 {
	col, ok := s.columns[comp.ID]
	if !ok {
		return Null
	}
	v, _ := col.get(id)
	return v
}

// Has reports whether the entity carries the component, regardless of
// value. A Null value still counts as attached.
func (s *Store) Has(id EntityID, comp Component) bool {
	col, ok := s.columns[comp.ID]
	if !ok {
		return false
	}
	_, ok = col.index[id]
	return ok
}

// Exists reports whether the entity has at least one attached component.
func (s *Store) Exists(id EntityID) bool {
	return s.refs[id] > 0
}

// Remove detaches the component from the entity. Removing the last
// component destroys the entity; the observer sees EntityDeleting before
// the final column is cleared, and ComponentChanged after any other
// removal.
func (s *Store) Remove(id EntityID, comp Component) {
	col, ok := s.columns[comp.ID]
	if !ok {
		return
	}
	if _, ok := col.index[id]; !ok {
		return
	}
	last := s.refs[id] == 1
	if last && s.observer != nil {
		s.observer.EntityDeleting(id)
	}
	col.remove(id)
	if s.refs[id]--; s.refs[id] <= 0 {
		delete(s.refs, id)
	}
	if !last && s.observer != nil {
		s.observer.ComponentChanged(id, comp.ID)
	}
}

// DeleteEntity detaches every component from the entity. The observer
// sees EntityDeleting before any data is cleared.
func (s *Store) DeleteEntity(id EntityID) {
	if s.refs[id] == 0 {
		return
	}
	if s.observer != nil {
		s.observer.EntityDeleting(id)
	}
	for _, col := range s.columns {
		col.remove(id)
	}
	delete(s.refs, id)
}

// EntitiesWith returns every entity carrying all of the given components,
// sorted ascending. Iterates the smallest column and probes the rest.
func (s *Store) EntitiesWith(comps ...Component) []EntityID {
	if len(comps) == 0 {
		return nil
	}
	cols := make([]*column, 0, len(comps))
	smallest := -1
	for _, comp := range comps {
		col, ok := s.columns[comp.ID]
		if !ok {
			return nil
		}
		if smallest < 0 || len(col.entities) < len(cols[smallest].entities) {
			smallest = len(cols)
		}
		cols = append(cols, col)
	}
	base := cols[smallest]
	out := make([]EntityID, 0, len(base.entities))
outer:
	for _, id := range base.entities {
		for i, col := range cols {
			if i == smallest {
				continue
			}
			if _, ok := col.index[id]; !ok {
				continue outer
			}
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EntitiesWithValue returns every entity whose component equals v, sorted
// ascending. Null never matches.
func (s *Store) EntitiesWithValue(comp Component, v float32) []EntityID {
	col, ok := s.columns[comp.ID]
	if !ok {
		return nil
	}
	out := make([]EntityID, 0, 16)
	for slot, got := range col.values {
		if got == v {
			out = append(out, col.entities[slot])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EntityCount returns the number of live entities.
func (s *Store) EntityCount() int {
	return len(s.refs)
}

// ComponentTypeCount returns the number of component types with storage.
func (s *Store) ComponentTypeCount() int {
	return len(s.columns)
}
