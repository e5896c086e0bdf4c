package history

import (
	"github.com/ireland-samantha/stormstack-sub008/internal/core/snapshot"
)

// Recorder captures every active match's snapshot at the end of each
// tick and fans it out to the configured sinks. It runs as a tick
// listener on the scheduler's goroutine while the store is quiet, which
// is the only safe moment to generate snapshots; sinks that do slow work
// decouple themselves.
type Recorder struct {
	cache   *snapshot.Cache
	tracker *snapshot.Tracker
	sinks   []Sink
}

func NewRecorder(cache *snapshot.Cache, tracker *snapshot.Tracker, sinks ...Sink) *Recorder {
	return &Recorder{cache: cache, tracker: tracker, sinks: sinks}
}

// OnTickComplete implements loop.TickListener.
func (r *Recorder) OnTickComplete(tick uint64) {
	for _, matchID := range r.tracker.Matches() {
		snap := r.cache.Generate(matchID)
		if snap.Tick != tick {
			// A cache hit keeps the stamp of the tick it was built at.
			// Sinks key by the completed tick, so record a restamped
			// shallow copy; the module data itself is shared and
			// immutable.
			restamped := *snap
			restamped.Tick = tick
			snap = &restamped
		}
		for _, s := range r.sinks {
			s.Record(matchID, tick, snap)
		}
	}
}
