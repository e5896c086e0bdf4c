package ecs

// Registry assigns ids to named component types. It is an explicit value
// constructed once per container and threaded through via constructors, so
// containers sharing a process never collide.
//
// The two core components every tagged entity carries are registered at
// construction: MATCH_ID partitions entities by simulation instance and
// ENTITY_ID is a self-reference emitted in snapshots.
type Registry struct {
	byName  map[string]Component
	ordered []Component
	next    ComponentID

	matchID  Component
	entityID Component
}

func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]Component, 32),
	}
	r.matchID = r.Register("MATCH_ID")
	r.entityID = r.Register("ENTITY_ID")
	return r
}

// Register returns the component for name, creating it on first use.
func (r *Registry) Register(name string) Component {
	if c, ok := r.byName[name]; ok {
		return c
	}
	r.next++
	c := Component{ID: r.next, Name: name}
	r.byName[name] = c
	r.ordered = append(r.ordered, c)
	return c
}

// RegisterFlag registers the ownership flag component for a module. The
// flag shares the module's name; its presence on an entity marks the
// module as the entity's owner.
func (r *Registry) RegisterFlag(moduleName string) Component {
	return r.Register(moduleName)
}

// Lookup returns the component registered under name.
func (r *Registry) Lookup(name string) (Component, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// MatchID returns the core match-partition component.
func (r *Registry) MatchID() Component { return r.matchID }

// EntityID returns the core self-reference component.
func (r *Registry) EntityID() Component { return r.entityID }

// Components returns all registered components in registration order.
func (r *Registry) Components() []Component {
	out := make([]Component, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Count returns the number of registered component types.
func (r *Registry) Count() int {
	return len(r.ordered)
}
