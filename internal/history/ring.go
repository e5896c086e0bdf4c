// Package history retains per-match snapshot timelines: a bounded
// in-memory ring for delta computation and an asynchronous archiver for
// durable storage.
package history

import (
	"sync"

	"github.com/ireland-samantha/stormstack-sub008/internal/core/snapshot"
)

// Sink receives every snapshot the recorder captures.
type Sink interface {
	Record(matchID, tick uint64, snap *snapshot.Snapshot)
}

// Ring keeps the most recent snapshots of each match, up to retention
// ticks deep. It serves as the delta engine's history source; snapshots
// are immutable so handing out pointers is safe.
type Ring struct {
	retention int

	mu      sync.RWMutex
	byMatch map[uint64]*matchRing
}

type matchRing struct {
	byTick map[uint64]*snapshot.Snapshot
	order  []uint64
}

func NewRing(retention int) *Ring {
	if retention < 1 {
		retention = 1
	}
	return &Ring{retention: retention, byMatch: make(map[uint64]*matchRing)}
}

// Record implements Sink. Recording the same tick twice replaces the
// earlier snapshot.
func (r *Ring) Record(matchID, tick uint64, snap *snapshot.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mr, ok := r.byMatch[matchID]
	if !ok {
		mr = &matchRing{byTick: make(map[uint64]*snapshot.Snapshot, r.retention)}
		r.byMatch[matchID] = mr
	}
	if _, dup := mr.byTick[tick]; !dup {
		mr.order = append(mr.order, tick)
	}
	mr.byTick[tick] = snap
	for len(mr.order) > r.retention {
		evict := mr.order[0]
		mr.order = mr.order[1:]
		delete(mr.byTick, evict)
	}
}

// SnapshotAt returns the match's snapshot at the exact tick.
func (r *Ring) SnapshotAt(matchID, tick uint64) (*snapshot.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mr, ok := r.byMatch[matchID]
	if !ok {
		return nil, false
	}
	s, ok := mr.byTick[tick]
	return s, ok
}

// Latest returns the match's most recently recorded snapshot.
func (r *Ring) Latest(matchID uint64) (*snapshot.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mr, ok := r.byMatch[matchID]
	if !ok || len(mr.order) == 0 {
		return nil, false
	}
	return mr.byTick[mr.order[len(mr.order)-1]], true
}

// Ticks returns the retained ticks for a match in recording order.
func (r *Ring) Ticks(matchID uint64) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mr, ok := r.byMatch[matchID]
	if !ok {
		return nil
	}
	out := make([]uint64, len(mr.order))
	copy(out, mr.order)
	return out
}

// DropMatch discards the match's entire timeline.
func (r *Ring) DropMatch(matchID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byMatch, matchID)
}
