package container

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/ireland-samantha/stormstack-sub008/internal/config"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/command"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/delta"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
	"github.com/ireland-samantha/stormstack-sub008/internal/module"
)

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	m := NewManager(config.Default(), zap.NewNop())
	c := m.Create("test")
	if err := c.InstallModule(module.Spawn()); err != nil {
		t.Fatal(err)
	}
	return c
}

func spawnCmd(matchID, entityType, ownerID uint64) command.Payload {
	return command.Payload{
		"matchId":    float64(matchID),
		"entityType": float64(entityType),
		"ownerId":    float64(ownerID),
	}
}

func TestSpawnEndToEnd(t *testing.T) {
	c := newTestContainer(t)
	defer c.Close()

	for i := 0; i < 2; i++ {
		if err := c.EnqueueCommand("spawn", spawnCmd(1, 10, 7)); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.EnqueueCommand("spawn", spawnCmd(2, 10, 7)); err != nil {
		t.Fatal(err)
	}
	c.Step()

	if c.CurrentTick() != 1 {
		t.Fatalf("tick = %d, want 1", c.CurrentTick())
	}
	for _, m := range c.LastCommandMetrics() {
		if !m.Success {
			t.Fatalf("spawn failed: %v", m.Err)
		}
	}

	snap1 := c.Snapshot(1)
	md := snap1.Module("spawn")
	if md == nil || len(md.Entities) != 2 {
		t.Fatalf("match 1 spawn module = %+v", md)
	}
	if got := md.Components[module.CompEntityType]; got[0] != 10 || got[1] != 10 {
		t.Fatalf("ENTITY_TYPE = %v", got)
	}

	snap2 := c.Snapshot(2)
	if got := len(snap2.Module("spawn").Entities); got != 1 {
		t.Fatalf("match 2 entities = %d, want 1", got)
	}
}

func TestMatchIsolationAcrossModules(t *testing.T) {
	c := newTestContainer(t)
	defer c.Close()

	tagged := c.Modules()
	if len(tagged) != 1 || tagged[0] != "spawn" {
		t.Fatalf("Modules = %v", tagged)
	}

	physics := module.Module{
		Name:       "physics",
		Components: []string{"POS_X"},
		Systems: []module.System{{
			Name: "move",
			Update: func(view *ecs.ModuleView, tick uint64) error {
				posX := view.Component("POS_X")
				for _, id := range view.EntitiesWith(posX) {
					if err := view.Attach(id, posX, view.Get(id, posX)+1); err != nil {
						return err
					}
				}
				return nil
			},
		}},
	}
	if err := c.InstallModule(physics); err != nil {
		t.Fatal(err)
	}

	view, ok := c.View("physics")
	if !ok {
		t.Fatal("physics view missing")
	}
	id := view.CreateEntity(1)
	if err := view.Attach(id, view.Component("POS_X"), 0); err != nil {
		t.Fatal(err)
	}

	c.Step()
	c.Step()
	c.Step()

	snap := c.Snapshot(1)
	pm := snap.Module("physics")
	slot := pm.Slot(id)
	if slot < 0 || pm.Components["POS_X"][slot] != 3 {
		t.Fatalf("POS_X = %v, want 3 after three ticks", pm.Components["POS_X"])
	}
	// The spawn module never sees the physics entity.
	if sm := snap.Module("spawn"); len(sm.Entities) != 0 {
		t.Fatalf("spawn entities = %v, want none", sm.Entities)
	}
}

func TestDuplicateModuleRejected(t *testing.T) {
	c := newTestContainer(t)
	defer c.Close()
	if err := c.InstallModule(module.Spawn()); err == nil {
		t.Fatal("duplicate install should fail")
	}
}

func TestDeltaThroughHistory(t *testing.T) {
	c := newTestContainer(t)
	defer c.Close()

	if err := c.EnqueueCommand("spawn", spawnCmd(1, 5, 1)); err != nil {
		t.Fatal(err)
	}
	c.Step() // tick 1: one entity
	if err := c.EnqueueCommand("spawn", spawnCmd(1, 6, 1)); err != nil {
		t.Fatal(err)
	}
	c.Step() // tick 2: two entities

	d, err := c.ComputeDelta(1, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Added) != 1 || len(d.Removed) != 0 {
		t.Fatalf("delta added %v removed %v", d.Added, d.Removed)
	}

	base, ok := c.SnapshotAt(1, 1)
	if !ok {
		t.Fatal("tick 1 missing from history")
	}
	rebuilt, err := delta.NewEngine(nil).Apply(base, d)
	if err != nil {
		t.Fatal(err)
	}
	target, _ := c.SnapshotAt(1, 2)
	if rebuilt.Tick != target.Tick {
		t.Fatalf("rebuilt tick = %d, want %d", rebuilt.Tick, target.Tick)
	}
	gm, tm := rebuilt.Module("spawn"), target.Module("spawn")
	if len(gm.Entities) != len(tm.Entities) {
		t.Fatalf("rebuilt entities = %v, want %v", gm.Entities, tm.Entities)
	}
	for name, want := range tm.Components {
		got := gm.Components[name]
		for i := range want {
			same := got[i] == want[i] || (got[i] != got[i] && want[i] != want[i])
			if !same {
				t.Fatalf("%s = %v, want %v", name, got, want)
			}
		}
	}
}

func TestDeltaRoundTripAcrossIdleTick(t *testing.T) {
	c := newTestContainer(t)
	defer c.Close()

	if err := c.EnqueueCommand("spawn", spawnCmd(1, 5, 1)); err != nil {
		t.Fatal(err)
	}
	c.Step() // tick 1: one entity
	c.Step() // tick 2: idle, history records the unchanged snapshot
	if err := c.EnqueueCommand("spawn", spawnCmd(1, 6, 1)); err != nil {
		t.Fatal(err)
	}
	c.Step() // tick 3: two entities

	base, ok := c.SnapshotAt(1, 2)
	if !ok {
		t.Fatal("idle tick 2 missing from history")
	}
	if base.Tick != 2 {
		t.Fatalf("history snapshot tick = %d, want the recorded tick 2", base.Tick)
	}

	d, err := c.ComputeDelta(1, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	rebuilt, err := delta.NewEngine(nil).Apply(base, d)
	if err != nil {
		t.Fatalf("apply over idle base: %v", err)
	}
	target, _ := c.SnapshotAt(1, 3)
	gm, tm := rebuilt.Module("spawn"), target.Module("spawn")
	if len(gm.Entities) != 2 || len(gm.Entities) != len(tm.Entities) {
		t.Fatalf("rebuilt entities = %v, want %v", gm.Entities, tm.Entities)
	}
}

func TestDeltaUnknownTick(t *testing.T) {
	c := newTestContainer(t)
	defer c.Close()
	c.Step()
	if _, err := c.ComputeDelta(1, 1, 99); !errors.Is(err, delta.ErrTickNotFound) {
		t.Fatalf("err = %v, want ErrTickNotFound", err)
	}
}

func TestDestroyMatch(t *testing.T) {
	c := newTestContainer(t)
	defer c.Close()

	c.EnqueueCommand("spawn", spawnCmd(1, 1, 1))
	c.EnqueueCommand("spawn", spawnCmd(1, 2, 1))
	c.EnqueueCommand("spawn", spawnCmd(2, 3, 1))
	c.Step()

	if got := c.DestroyMatch(1); got != 2 {
		t.Fatalf("DestroyMatch removed %d, want 2", got)
	}
	if got := c.EntityCount(); got != 1 {
		t.Fatalf("EntityCount = %d, want 1", got)
	}
	if got := len(c.Snapshot(1).Module("spawn").Entities); got != 0 {
		t.Fatalf("destroyed match still has %d entities", got)
	}
	if got := len(c.Snapshot(2).Module("spawn").Entities); got != 1 {
		t.Fatalf("surviving match entities = %d, want 1", got)
	}
}

func TestInvalidSpawnPayloadRejected(t *testing.T) {
	c := newTestContainer(t)
	defer c.Close()

	err := c.EnqueueCommand("spawn", command.Payload{"matchId": 1.0})
	var verr *command.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(config.Default(), zap.NewNop())
	a := m.Create("a")
	b := m.Create("b")
	if a.ID() == b.ID() {
		t.Fatal("container ids must be unique")
	}

	if got, ok := m.Get(a.ID()); !ok || got != a {
		t.Fatal("Get by id failed")
	}
	if list := m.List(); len(list) != 2 || list[0] != a {
		t.Fatalf("List = %v", list)
	}
	if err := m.Remove(a.ID()); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(a.ID()); ok {
		t.Fatal("removed container still present")
	}
	if err := m.Remove(a.ID()); err == nil {
		t.Fatal("double remove should fail")
	}
	m.CloseAll()
}

func TestEntityIDsUniqueAcrossContainers(t *testing.T) {
	m := NewManager(config.Default(), zap.NewNop())
	a := m.Create("a")
	b := m.Create("b")
	if err := a.InstallModule(module.Spawn()); err != nil {
		t.Fatal(err)
	}
	if err := b.InstallModule(module.Spawn()); err != nil {
		t.Fatal(err)
	}

	a.EnqueueCommand("spawn", spawnCmd(1, 1, 1))
	b.EnqueueCommand("spawn", spawnCmd(1, 1, 1))
	a.Step()
	b.Step()

	idA := a.Snapshot(1).Module("spawn").Entities[0]
	idB := b.Snapshot(1).Module("spawn").Entities[0]
	if idA == idB {
		t.Fatal("entity ids must not collide across containers")
	}
}
