package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/snapshot"
)

// ErrSnapshotNotFound is returned when no archived snapshot matches.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepo archives snapshots as JSONB rows, one per container,
// match and tick.
type SnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

// wireModule is the storage shape of one module. Null component values
// are stored as JSON null since NaN has no JSON encoding.
type wireModule struct {
	Name       string                `json:"name"`
	Entities   []uint64              `json:"entities"`
	Components map[string][]*float64 `json:"components"`
}

type wireSnapshot struct {
	Tick    uint64       `json:"tick"`
	MatchID uint64       `json:"matchId"`
	Modules []wireModule `json:"modules"`
}

func toWire(s *snapshot.Snapshot) wireSnapshot {
	w := wireSnapshot{Tick: s.Tick, MatchID: s.MatchID, Modules: make([]wireModule, 0, len(s.Modules))}
	for i := range s.Modules {
		md := &s.Modules[i]
		wm := wireModule{
			Name:       md.Name,
			Entities:   make([]uint64, len(md.Entities)),
			Components: make(map[string][]*float64, len(md.Components)),
		}
		for j, id := range md.Entities {
			wm.Entities[j] = uint64(id)
		}
		for name, col := range md.Components {
			out := make([]*float64, len(col))
			for j, v := range col {
				if !ecs.IsNull(v) {
					f := float64(v)
					out[j] = &f
				}
			}
			wm.Components[name] = out
		}
		w.Modules = append(w.Modules, wm)
	}
	return w
}

func fromWire(w wireSnapshot) *snapshot.Snapshot {
	s := &snapshot.Snapshot{Tick: w.Tick, MatchID: w.MatchID, Modules: make([]snapshot.ModuleData, 0, len(w.Modules))}
	for _, wm := range w.Modules {
		md := snapshot.ModuleData{
			Name:       wm.Name,
			Entities:   make([]ecs.EntityID, len(wm.Entities)),
			Components: make(map[string][]float32, len(wm.Components)),
		}
		for j, id := range wm.Entities {
			md.Entities[j] = ecs.EntityID(id)
		}
		for name, col := range wm.Components {
			out := make([]float32, len(col))
			for j, v := range col {
				if v == nil {
					out[j] = ecs.Null
				} else {
					out[j] = float32(*v)
				}
			}
			md.Components[name] = out
		}
		s.Modules = append(s.Modules, md)
	}
	return s
}

// SaveSnapshot upserts one snapshot row.
func (r *SnapshotRepo) SaveSnapshot(ctx context.Context, containerID uint64, snap *snapshot.Snapshot) error {
	data, err := json.Marshal(toWire(snap))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO snapshot_history (container_id, match_id, tick, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (container_id, match_id, tick) DO UPDATE SET data = EXCLUDED.data`,
		containerID, snap.MatchID, snap.Tick, data)
	if err != nil {
		return fmt.Errorf("save snapshot match %d tick %d: %w", snap.MatchID, snap.Tick, err)
	}
	return nil
}

// LoadSnapshot fetches one archived snapshot.
func (r *SnapshotRepo) LoadSnapshot(ctx context.Context, containerID, matchID, tick uint64) (*snapshot.Snapshot, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `
		SELECT data FROM snapshot_history
		WHERE container_id = $1 AND match_id = $2 AND tick = $3`,
		containerID, matchID, tick).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("match %d tick %d: %w", matchID, tick, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return fromWire(w), nil
}

// PruneBefore deletes a match's archived snapshots older than tick,
// returning the number of rows removed.
func (r *SnapshotRepo) PruneBefore(ctx context.Context, containerID, matchID, tick uint64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM snapshot_history
		WHERE container_id = $1 AND match_id = $2 AND tick < $3`,
		containerID, matchID, tick)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
