package ecs

import "testing"

func newTestStore() (*Store, *Registry) {
	return NewStore(NewSequence()), NewRegistry()
}

func TestAttachCreatesEntity(t *testing.T) {
	s, r := newTestStore()
	hp := r.Register("HEALTH")

	id := s.CreateEntity()
	if s.Exists(id) {
		t.Fatal("entity should not exist before first attach")
	}
	s.Attach(id, hp, 100)
	if !s.Exists(id) {
		t.Fatal("entity should exist after attach")
	}
	if got := s.Get(id, hp); got != 100 {
		t.Fatalf("Get = %v, want 100", got)
	}
}

func TestGetAbsentReturnsNull(t *testing.T) {
	s, r := newTestStore()
	hp := r.Register("HEALTH")

	id := s.CreateEntity()
	if v := s.Get(id, hp); !IsNull(v) {
		t.Fatalf("Get on absent component = %v, want NaN", v)
	}
}

func TestNullValueStillAttached(t *testing.T) {
	s, r := newTestStore()
	hp := r.Register("HEALTH")

	id := s.CreateEntity()
	s.Attach(id, hp, Null)
	if !s.Has(id, hp) {
		t.Fatal("component with null value should still be attached")
	}
	if v := s.Get(id, hp); !IsNull(v) {
		t.Fatalf("Get = %v, want NaN", v)
	}
}

func TestRemoveLastComponentDestroysEntity(t *testing.T) {
	s, r := newTestStore()
	hp := r.Register("HEALTH")
	mp := r.Register("MANA")

	id := s.CreateEntity()
	s.Attach(id, hp, 10)
	s.Attach(id, mp, 20)

	s.Remove(id, hp)
	if !s.Exists(id) {
		t.Fatal("entity should survive losing one of two components")
	}
	s.Remove(id, mp)
	if s.Exists(id) {
		t.Fatal("entity should be destroyed with its last component")
	}
}

func TestDeleteEntityClearsAllColumns(t *testing.T) {
	s, r := newTestStore()
	hp := r.Register("HEALTH")
	mp := r.Register("MANA")

	id := s.CreateEntity()
	s.Attach(id, hp, 10)
	s.Attach(id, mp, 20)
	s.DeleteEntity(id)

	if s.Exists(id) {
		t.Fatal("entity should not exist after delete")
	}
	if s.Has(id, hp) || s.Has(id, mp) {
		t.Fatal("components should be gone after delete")
	}
	if s.EntityCount() != 0 {
		t.Fatalf("EntityCount = %d, want 0", s.EntityCount())
	}
}

func TestSwapRemoveKeepsColumnsDense(t *testing.T) {
	s, r := newTestStore()
	hp := r.Register("HEALTH")

	a := s.CreateEntity()
	b := s.CreateEntity()
	c := s.CreateEntity()
	s.Attach(a, hp, 1)
	s.Attach(b, hp, 2)
	s.Attach(c, hp, 3)

	s.Remove(a, hp)
	if got := s.Get(b, hp); got != 2 {
		t.Fatalf("b = %v after remove, want 2", got)
	}
	if got := s.Get(c, hp); got != 3 {
		t.Fatalf("c = %v after remove, want 3", got)
	}
}

func TestEntitiesWithIntersectionSorted(t *testing.T) {
	s, r := newTestStore()
	hp := r.Register("HEALTH")
	mp := r.Register("MANA")

	a := s.CreateEntity()
	b := s.CreateEntity()
	c := s.CreateEntity()
	s.Attach(a, hp, 1)
	s.Attach(b, hp, 2)
	s.Attach(b, mp, 2)
	s.Attach(c, hp, 3)
	s.Attach(c, mp, 3)

	got := s.EntitiesWith(hp, mp)
	if len(got) != 2 || got[0] != b || got[1] != c {
		t.Fatalf("EntitiesWith = %v, want [%d %d]", got, b, c)
	}
}

func TestEntitiesWithValue(t *testing.T) {
	s, r := newTestStore()
	match := r.MatchID()

	a := s.CreateEntity()
	b := s.CreateEntity()
	c := s.CreateEntity()
	s.Attach(a, match, 1)
	s.Attach(b, match, 2)
	s.Attach(c, match, 1)

	got := s.EntitiesWithValue(match, 1)
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("EntitiesWithValue = %v, want [%d %d]", got, a, c)
	}
}

func TestEntitiesWithValueNullNeverMatches(t *testing.T) {
	s, r := newTestStore()
	hp := r.Register("HEALTH")

	id := s.CreateEntity()
	s.Attach(id, hp, Null)

	if got := s.EntitiesWithValue(hp, Null); len(got) != 0 {
		t.Fatalf("null should never match by value, got %v", got)
	}
}

type recordingObserver struct {
	changed  []EntityID
	deleting []EntityID
	existsAt map[EntityID]bool
	store    *Store
	probe    Component
}

func (o *recordingObserver) ComponentChanged(id EntityID, comp ComponentID) {
	o.changed = append(o.changed, id)
}

func (o *recordingObserver) EntityDeleting(id EntityID) {
	o.deleting = append(o.deleting, id)
	if o.store != nil {
		o.existsAt[id] = o.store.Has(id, o.probe)
	}
}

func TestObserverSeesDataBeforeDelete(t *testing.T) {
	s, r := newTestStore()
	match := r.MatchID()

	obs := &recordingObserver{existsAt: map[EntityID]bool{}, store: s, probe: match}
	s.SetObserver(obs)

	id := s.CreateEntity()
	s.Attach(id, match, 7)
	s.DeleteEntity(id)

	if len(obs.deleting) != 1 || obs.deleting[0] != id {
		t.Fatalf("deleting = %v, want [%d]", obs.deleting, id)
	}
	if !obs.existsAt[id] {
		t.Fatal("observer should see component data before it is cleared")
	}
}

func TestRemoveNotifiesObserver(t *testing.T) {
	s, r := newTestStore()
	match := r.MatchID()
	hp := r.Register("HEALTH")

	id := s.CreateEntity()
	s.Attach(id, match, 1)
	s.Attach(id, hp, 100)

	obs := &recordingObserver{existsAt: map[EntityID]bool{}}
	s.SetObserver(obs)
	s.Remove(id, hp)

	if len(obs.changed) != 1 || obs.changed[0] != id {
		t.Fatalf("changed = %v, want [%d]", obs.changed, id)
	}
	if len(obs.deleting) != 0 {
		t.Fatalf("deleting = %v, want none while components remain", obs.deleting)
	}

	// Dropping the final component is a delete, not a change.
	s.Remove(id, match)
	if len(obs.changed) != 1 {
		t.Fatalf("changed = %v, final removal must not double-report", obs.changed)
	}
	if len(obs.deleting) != 1 || obs.deleting[0] != id {
		t.Fatalf("deleting = %v, want [%d]", obs.deleting, id)
	}
}

func TestSequenceNeverReusesIDs(t *testing.T) {
	s, r := newTestStore()
	hp := r.Register("HEALTH")

	a := s.CreateEntity()
	s.Attach(a, hp, 1)
	s.DeleteEntity(a)

	b := s.CreateEntity()
	if b == a {
		t.Fatal("ids must not be reused after delete")
	}
	if b < a {
		t.Fatalf("ids must be monotonic, got %d after %d", b, a)
	}
}
