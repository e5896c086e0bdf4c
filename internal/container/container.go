// Package container assembles one isolated simulation: a component
// store, command queue, tick scheduler, snapshot cache and delta engine
// behind a single facade. Containers in the same process share nothing
// but the entity id sequence.
package container

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ireland-samantha/stormstack-sub008/internal/config"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/command"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/delta"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/loop"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/snapshot"
	"github.com/ireland-samantha/stormstack-sub008/internal/history"
	"github.com/ireland-samantha/stormstack-sub008/internal/module"
)

type installed struct {
	def  module.Module
	view *ecs.ModuleView
	info snapshot.ModuleInfo
}

// Container is one simulation instance hosting any number of matches.
type Container struct {
	id   uint64
	name string
	log  *zap.Logger

	registry *ecs.Registry
	store    *ecs.Store
	tracker  *snapshot.Tracker
	queue    *command.Queue
	sched    *loop.Scheduler
	cache    *snapshot.Cache
	ring     *history.Ring
	deltas   *delta.Engine

	modules []installed
}

// New wires a container from config. The sequence is shared across
// containers so entity ids stay globally unique; extra sinks (such as a
// database archiver) receive every recorded snapshot alongside the
// in-memory ring.
func New(id uint64, name string, cfg *config.Config, seq *ecs.Sequence, log *zap.Logger, sinks ...history.Sink) *Container {
	log = log.With(zap.Uint64("container", id))

	registry := ecs.NewRegistry()
	store := ecs.NewStore(seq)
	tracker := snapshot.NewTracker(store, registry)
	queue := command.NewQueue()
	sched := loop.NewScheduler(queue, cfg.Container.MaxCommandsPerTick, log)

	c := &Container{
		id:       id,
		name:     name,
		log:      log,
		registry: registry,
		store:    store,
		tracker:  tracker,
		queue:    queue,
		sched:    sched,
		ring:     history.NewRing(cfg.History.RetentionTicks),
	}

	builder := snapshot.NewBuilder(store, registry, c.moduleInfos)
	c.cache = snapshot.NewCache(builder, tracker, registry,
		sched.CurrentTick, cfg.Snapshot.RebuildThreshold, cfg.Snapshot.MaxCacheAgeTicks)
	c.deltas = delta.NewEngine(c.ring)

	allSinks := append([]history.Sink{c.ring}, sinks...)
	sched.AddTickListener(history.NewRecorder(c.cache, tracker, allSinks...))
	return c
}

func (c *Container) moduleInfos() []snapshot.ModuleInfo {
	out := make([]snapshot.ModuleInfo, len(c.modules))
	for i, m := range c.modules {
		out[i] = m.info
	}
	return out
}

// ID returns the container's id.
func (c *Container) ID() uint64 { return c.id }

// Name returns the container's name.
func (c *Container) Name() string { return c.name }

// InstallModule registers the module's flag, components, commands and
// systems. Install before starting the loop; any cached snapshots are
// invalidated since the module layout changed.
func (c *Container) InstallModule(def module.Module) error {
	for _, m := range c.modules {
		if m.def.Name == def.Name {
			return fmt.Errorf("module %s already installed", def.Name)
		}
	}

	flag := c.registry.RegisterFlag(def.Name)
	view := ecs.NewModuleView(c.store, c.registry, flag)

	info := snapshot.ModuleInfo{Name: def.Name, Flag: flag}
	for _, name := range def.Components {
		info.Components = append(info.Components, c.registry.Register(name))
	}

	for _, cmd := range def.Commands {
		cmd := cmd
		err := c.queue.Register(cmd.Name, cmd.Schema, func(p command.Payload) error {
			return cmd.Handler(view, p)
		})
		if err != nil {
			return fmt.Errorf("module %s: %w", def.Name, err)
		}
	}
	for _, sys := range def.Systems {
		sys := sys
		c.sched.RegisterSystem(loop.NewSystem(def.Name+"."+sys.Name, func(tick uint64) error {
			return sys.Update(view, tick)
		}))
	}

	c.modules = append(c.modules, installed{def: def, view: view, info: info})
	c.cache.Invalidate()
	c.log.Info("module installed",
		zap.String("module", def.Name),
		zap.Int("components", len(def.Components)),
		zap.Int("commands", len(def.Commands)),
		zap.Int("systems", len(def.Systems)))
	return nil
}

// Modules returns the names of installed modules in install order.
func (c *Container) Modules() []string {
	out := make([]string, len(c.modules))
	for i, m := range c.modules {
		out[i] = m.def.Name
	}
	return out
}

// View returns the named module's scoped view.
func (c *Container) View(moduleName string) (*ecs.ModuleView, bool) {
	for _, m := range c.modules {
		if m.def.Name == moduleName {
			return m.view, true
		}
	}
	return nil, false
}

// EnqueueCommand validates and queues a command for the next tick.
func (c *Container) EnqueueCommand(name string, p command.Payload) error {
	return c.queue.Enqueue(name, p)
}

// Step runs exactly one tick.
func (c *Container) Step() { c.sched.Step() }

// Play starts automatic ticking at the given interval.
func (c *Container) Play(interval time.Duration) {
	c.sched.Play(interval)
	c.log.Info("playing", zap.Duration("interval", interval))
}

// Stop halts automatic ticking.
func (c *Container) Stop() {
	c.sched.Stop()
	c.log.Info("stopped", zap.Uint64("tick", c.sched.CurrentTick()))
}

// CurrentTick returns the number of completed ticks.
func (c *Container) CurrentTick() uint64 { return c.sched.CurrentTick() }

// State returns the scheduler's lifecycle phase.
func (c *Container) State() loop.State { return c.sched.State() }

// Snapshot returns the match's current snapshot, generated while the
// loop is quiet.
func (c *Container) Snapshot(matchID uint64) *snapshot.Snapshot {
	var snap *snapshot.Snapshot
	c.sched.RunExclusive(func() {
		snap = c.cache.Generate(matchID)
	})
	return snap
}

// ModuleSnapshot returns one module's slice of the match's current
// snapshot, or nil if the module holds no entities in the match.
func (c *Container) ModuleSnapshot(matchID uint64, moduleName string) *snapshot.ModuleData {
	return c.Snapshot(matchID).Module(moduleName)
}

// ComputeDelta returns the changes between two historical ticks of a
// match.
func (c *Container) ComputeDelta(matchID, fromTick, toTick uint64) (*delta.Delta, error) {
	return c.deltas.ComputeDelta(matchID, fromTick, toTick)
}

// SnapshotAt returns a retained historical snapshot.
func (c *Container) SnapshotAt(matchID, tick uint64) (*snapshot.Snapshot, bool) {
	return c.ring.SnapshotAt(matchID, tick)
}

// DestroyMatch deletes every entity of the match across all modules and
// drops its cache and history. Returns the number of entities removed.
func (c *Container) DestroyMatch(matchID uint64) int {
	var removed int
	c.sched.RunExclusive(func() {
		ids := c.store.EntitiesWithValue(c.registry.MatchID(), float32(matchID))
		for _, id := range ids {
			c.store.DeleteEntity(id)
		}
		removed = len(ids)
		c.cache.Drop(matchID)
		c.ring.DropMatch(matchID)
		c.tracker.ForgetMatch(matchID)
	})
	c.log.Info("match destroyed",
		zap.Uint64("match", matchID),
		zap.Int("entities", removed))
	return removed
}

// EntityCount returns the number of live entities in the container.
func (c *Container) EntityCount() int {
	var n int
	c.sched.RunExclusive(func() { n = c.store.EntityCount() })
	return n
}

// TickMetrics returns aggregate tick timings.
func (c *Container) TickMetrics() loop.TickMetrics { return c.sched.Metrics() }

// LastCommandMetrics returns per-command results of the latest tick.
func (c *Container) LastCommandMetrics() []loop.UnitMetrics { return c.sched.LastCommandMetrics() }

// LastSystemMetrics returns per-system results of the latest tick.
func (c *Container) LastSystemMetrics() []loop.UnitMetrics { return c.sched.LastSystemMetrics() }

// CacheMetrics returns snapshot cache counters.
func (c *Container) CacheMetrics() snapshot.Metrics { return c.cache.Metrics() }

// Close stops the loop.
func (c *Container) Close() {
	c.sched.Stop()
}
