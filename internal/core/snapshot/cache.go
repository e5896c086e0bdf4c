package snapshot

import (
	"sort"
	"sync"
	"time"

	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
)

// Metrics counts cache activity since the last reset. A generation is a
// hit when the cached snapshot is returned untouched, otherwise a miss
// broken down into incremental patches and full rebuilds.
type Metrics struct {
	Generations  uint64
	Hits         uint64
	Misses       uint64
	Incremental  uint64
	FullRebuilds uint64

	LastBuild time.Duration
	MaxBuild  time.Duration

	totalBuild time.Duration
}

// AvgBuild returns the mean build duration across misses.
func (m Metrics) AvgBuild() time.Duration {
	if m.Misses == 0 {
		return 0
	}
	return m.totalBuild / time.Duration(m.Misses)
}

// HitRate returns hits over generations, zero before the first call.
func (m Metrics) HitRate() float64 {
	if m.Generations == 0 {
		return 0
	}
	return float64(m.Hits) / float64(m.Generations)
}

// IncrementalRate returns incremental patches over misses.
func (m Metrics) IncrementalRate() float64 {
	if m.Misses == 0 {
		return 0
	}
	return float64(m.Incremental) / float64(m.Misses)
}

type entry struct {
	snap        *Snapshot
	builtTick   uint64
	entityCount int
}

// Cache keeps one snapshot per match and patches it incrementally when
// the change set since the last generation is small. The dirty ratio
// (changed entities over cached entities) against rebuildThreshold
// decides patch versus rebuild; a snapshot older than maxAgeTicks is
// rebuilt in full rather than patched. An unchanged snapshot never ages
// out: with nothing pending it cannot drift, so idle matches stay hits.
type Cache struct {
	builder *Builder
	tracker *Tracker
	reg     *ecs.Registry
	tick    func() uint64

	rebuildThreshold float64
	maxAgeTicks      uint64

	mu      sync.Mutex
	entries map[uint64]*entry
	metrics Metrics
}

func NewCache(builder *Builder, tracker *Tracker, reg *ecs.Registry, tick func() uint64, rebuildThreshold float64, maxAgeTicks uint64) *Cache {
	return &Cache{
		builder:          builder,
		tracker:          tracker,
		reg:              reg,
		tick:             tick,
		rebuildThreshold: rebuildThreshold,
		maxAgeTicks:      maxAgeTicks,
		entries:          make(map[uint64]*entry),
	}
}

// Generate returns the match's current snapshot, reusing or patching the
// cached one when the tracker shows little or no change. Must run while
// the store is quiet; callers go through the scheduler's run lock.
func (c *Cache) Generate(matchID uint64) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.Generations++
	start := time.Now()
	tick := c.tick()
	dirty := c.tracker.Consume(matchID)
	ent := c.entries[matchID]

	if ent != nil {
		if !dirty.HasChanges() {
			c.metrics.Hits++
			return ent.snap
		}
		if tick-ent.builtTick <= c.maxAgeTicks && ent.entityCount > 0 {
			ratio := float64(dirty.Total()) / float64(ent.entityCount)
			if ratio <= c.rebuildThreshold {
				if snap := c.patch(ent.snap, dirty, tick); snap != nil {
					c.record(matchID, snap, tick, true, time.Since(start))
					return snap
				}
			}
		}
	}

	snap := c.builder.BuildMatch(matchID, tick)
	c.record(matchID, snap, tick, false, time.Since(start))
	return snap
}

func (c *Cache) record(matchID uint64, snap *Snapshot, tick uint64, incremental bool, d time.Duration) {
	c.entries[matchID] = &entry{
		snap:        snap,
		builtTick:   tick,
		entityCount: snap.EntityCount(),
	}
	c.metrics.Misses++
	if incremental {
		c.metrics.Incremental++
	} else {
		c.metrics.FullRebuilds++
	}
	c.metrics.LastBuild = d
	c.metrics.totalBuild += d
	if d > c.metrics.MaxBuild {
		c.metrics.MaxBuild = d
	}
}

// patch produces a new snapshot by splicing removed rows, refreshing
// modified cells, and appending added rows to a copy of prev. Untouched
// modules share data with prev. Returns nil when the cached layout no
// longer matches the installed modules.
func (c *Cache) patch(prev *Snapshot, dirty *DirtyInfo, tick uint64) *Snapshot {
	infos := c.builder.Modules()
	next := &Snapshot{Tick: tick, MatchID: prev.MatchID, Modules: make([]ModuleData, 0, len(infos))}

	added := make([]ecs.EntityID, 0, len(dirty.Added))
	for id := range dirty.Added {
		added = append(added, id)
	}
	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })

	for _, info := range infos {
		old := prev.Module(info.Name)
		if old == nil {
			return nil
		}
		md, touched := c.patchModule(info, old, dirty, added)
		if !touched {
			md = *old
		}
		next.Modules = append(next.Modules, md)
	}
	return next
}

func (c *Cache) patchModule(info ModuleInfo, old *ModuleData, dirty *DirtyInfo, added []ecs.EntityID) (ModuleData, bool) {
	// A modified entity absent from the cached rows but carrying the
	// module's flag gained the flag after the snapshot was built. It
	// joins the module mid-life, so the patch must insert it.
	var joined []ecs.EntityID
	for id := range dirty.Modified {
		if old.Slot(id) < 0 && c.builder.Owns(info, id) {
			joined = append(joined, id)
		}
	}
	sort.Slice(joined, func(i, j int) bool { return joined[i] < joined[j] })

	touched := len(joined) > 0
	if !touched {
		for _, id := range added {
			if c.builder.Owns(info, id) {
				touched = true
				break
			}
		}
	}
	if !touched {
		for id := range dirty.Removed {
			if old.Slot(id) >= 0 {
				touched = true
				break
			}
		}
	}
	if !touched {
		for id := range dirty.Modified {
			if old.Slot(id) >= 0 {
				touched = true
				break
			}
		}
	}
	if !touched {
		return ModuleData{}, false
	}

	keep := make([]int, 0, len(old.Entities))
	for i, id := range old.Entities {
		if _, gone := dirty.Removed[id]; !gone {
			keep = append(keep, i)
		}
	}

	md := ModuleData{
		Name:       info.Name,
		Entities:   make([]ecs.EntityID, 0, len(keep)+len(added)),
		Components: make(map[string][]float32, len(old.Components)),
	}
	for _, i := range keep {
		md.Entities = append(md.Entities, old.Entities[i])
	}
	for name, col := range old.Components {
		next := make([]float32, 0, len(keep)+len(added))
		for _, i := range keep {
			next = append(next, col[i])
		}
		md.Components[name] = next
	}

	// Joined ids predate the cached rows' newest ids, so they splice in
	// at their sorted position rather than appending.
	for _, id := range joined {
		pos := sort.Search(len(md.Entities), func(i int) bool { return md.Entities[i] >= id })
		row := c.builder.buildRow(info, id)
		md.Entities = append(md.Entities, 0)
		copy(md.Entities[pos+1:], md.Entities[pos:])
		md.Entities[pos] = id
		for name, col := range md.Components {
			col = append(col, 0)
			copy(col[pos+1:], col[pos:])
			col[pos] = row[name]
			md.Components[name] = col
		}
	}

	// Refresh modified cells from live store values.
	for id := range dirty.Modified {
		slot := md.Slot(id)
		if slot < 0 {
			continue
		}
		for name, col := range md.Components {
			comp, ok := c.reg.Lookup(name)
			if !ok {
				continue
			}
			col[slot] = c.builder.Value(id, comp)
		}
	}

	// Entity ids are monotonic, so appending sorted new ids keeps the
	// ascending order invariant.
	for _, id := range added {
		if !c.builder.Owns(info, id) {
			continue
		}
		row := c.builder.buildRow(info, id)
		md.Entities = append(md.Entities, id)
		for name := range md.Components {
			md.Components[name] = append(md.Components[name], row[name])
		}
	}
	return md, true
}

// Invalidate drops every cached snapshot. The next generation per match
// is a full rebuild.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*entry)
}

// Drop removes one match's cached snapshot.
func (c *Cache) Drop(matchID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, matchID)
}

// Metrics returns a copy of the cache counters.
func (c *Cache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// ResetMetrics clears the cache counters.
func (c *Cache) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = Metrics{}
}
