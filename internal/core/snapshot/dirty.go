package snapshot

import (
	"sort"

	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
)

// DirtyInfo summarizes what changed in one match since its snapshot was
// last generated. An entity appears in at most one of the three sets:
// newly created entities live in Added even when later mutated, and an
// entity both created and destroyed between generations appears nowhere.
type DirtyInfo struct {
	Modified map[ecs.EntityID]struct{}
	Added    map[ecs.EntityID]struct{}
	Removed  map[ecs.EntityID]struct{}
}

func newDirtyInfo() *DirtyInfo {
	return &DirtyInfo{
		Modified: make(map[ecs.EntityID]struct{}),
		Added:    make(map[ecs.EntityID]struct{}),
		Removed:  make(map[ecs.EntityID]struct{}),
	}
}

// HasChanges reports whether anything at all changed.
func (d *DirtyInfo) HasChanges() bool {
	return d != nil && (len(d.Modified) > 0 || len(d.Added) > 0 || len(d.Removed) > 0)
}

// Structural reports whether entities were created or destroyed, as
// opposed to values changing in place.
func (d *DirtyInfo) Structural() bool {
	return d != nil && (len(d.Added) > 0 || len(d.Removed) > 0)
}

// Total returns the number of dirty entities.
func (d *DirtyInfo) Total() int {
	if d == nil {
		return 0
	}
	return len(d.Modified) + len(d.Added) + len(d.Removed)
}

// Tracker observes the store and buckets changes by match. It registers
// itself as the store's observer; all callbacks arrive on the tick
// goroutine, and Consume runs under the scheduler's run lock, so no
// internal locking is needed.
type Tracker struct {
	store *ecs.Store
	reg   *ecs.Registry

	byMatch map[uint64]*DirtyInfo
	seen    map[uint64]struct{}
}

func NewTracker(store *ecs.Store, reg *ecs.Registry) *Tracker {
	t := &Tracker{
		store:   store,
		reg:     reg,
		byMatch: make(map[uint64]*DirtyInfo),
		seen:    make(map[uint64]struct{}),
	}
	store.SetObserver(t)
	return t
}

func (t *Tracker) bucket(matchID uint64) *DirtyInfo {
	d, ok := t.byMatch[matchID]
	if !ok {
		d = newDirtyInfo()
		t.byMatch[matchID] = d
	}
	t.seen[matchID] = struct{}{}
	return d
}

// matchOf resolves an entity's match, false when the entity has no match
// assignment yet. Changes before the MATCH_ID attach are invisible, which
// is fine: the attach itself marks the entity added and the builder reads
// live values.
func (t *Tracker) matchOf(id ecs.EntityID) (uint64, bool) {
	v := t.store.Get(id, t.reg.MatchID())
	if ecs.IsNull(v) {
		return 0, false
	}
	return uint64(v), true
}

// ComponentChanged implements ecs.Observer.
func (t *Tracker) ComponentChanged(id ecs.EntityID, comp ecs.ComponentID) {
	match, ok := t.matchOf(id)
	if !ok {
		return
	}
	d := t.bucket(match)
	if comp == t.reg.MatchID().ID {
		// First match assignment is the entity's birth from the
		// snapshot's point of view.
		d.Added[id] = struct{}{}
		delete(d.Modified, id)
		return
	}
	if _, added := d.Added[id]; added {
		return
	}
	d.Modified[id] = struct{}{}
}

// EntityDeleting implements ecs.Observer. Fires while the entity's data
// is still readable.
func (t *Tracker) EntityDeleting(id ecs.EntityID) {
	match, ok := t.matchOf(id)
	if !ok {
		return
	}
	d := t.bucket(match)
	if _, added := d.Added[id]; added {
		// Created and destroyed between generations: no snapshot ever
		// saw it, so it cancels out entirely.
		delete(d.Added, id)
		delete(d.Modified, id)
		return
	}
	delete(d.Modified, id)
	d.Removed[id] = struct{}{}
}

// Consume returns and clears the match's pending changes. Nil when the
// match has none.
func (t *Tracker) Consume(matchID uint64) *DirtyInfo {
	d := t.byMatch[matchID]
	delete(t.byMatch, matchID)
	return d
}

// Peek returns the match's pending changes without clearing them.
func (t *Tracker) Peek(matchID uint64) *DirtyInfo {
	return t.byMatch[matchID]
}

// Matches returns every match id the tracker has ever seen activity for,
// sorted ascending.
func (t *Tracker) Matches() []uint64 {
	out := make([]uint64, 0, len(t.seen))
	for m := range t.seen {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ForgetMatch drops all state for a match, pending and historical.
func (t *Tracker) ForgetMatch(matchID uint64) {
	delete(t.byMatch, matchID)
	delete(t.seen, matchID)
}
