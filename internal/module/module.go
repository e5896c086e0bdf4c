// Package module defines the unit of simulation logic a container
// installs: a named bundle of component declarations, command handlers,
// and per-tick systems, all operating through the module's scoped view.
package module

import (
	"github.com/ireland-samantha/stormstack-sub008/internal/core/command"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
)

// Command binds a name and schema to a handler that runs on the tick
// goroutine with the module's view.
type Command struct {
	Name    string
	Schema  command.Schema
	Handler func(view *ecs.ModuleView, p command.Payload) error
}

// System is per-tick logic scoped to the module's view.
type System struct {
	Name   string
	Update func(view *ecs.ModuleView, tick uint64) error
}

// Module is an installable bundle. Components lists the component names
// the module exports in snapshots; the ownership flag is implicit.
type Module struct {
	Name       string
	Components []string
	Commands   []Command
	Systems    []System
}

// Component names used by the built-in spawn module.
const (
	CompEntityType = "ENTITY_TYPE"
	CompOwnerID    = "OWNER_ID"
)

// Spawn returns the built-in entity factory module. Its spawn command
// creates one entity in a match with a numeric type and owner.
func Spawn() Module {
	return Module{
		Name:       "spawn",
		Components: []string{CompEntityType, CompOwnerID},
		Commands: []Command{{
			Name: "spawn",
			Schema: command.Schema{
				"matchId":    command.KindNumber,
				"entityType": command.KindNumber,
				"ownerId":    command.KindNumber,
			},
			Handler: func(view *ecs.ModuleView, p command.Payload) error {
				id := view.CreateEntity(p.Uint64("matchId"))
				return view.AttachMany(id, map[ecs.Component]float32{
					view.Component(CompEntityType): float32(p.Float("entityType")),
					view.Component(CompOwnerID):    float32(p.Float("ownerId")),
				})
			},
		}},
	}
}
