package loop

import "time"

// TickMetrics aggregates tick execution timings since the last reset.
type TickMetrics struct {
	Last            time.Duration
	Min             time.Duration
	Max             time.Duration
	Total           uint64
	LastCompletedAt time.Time

	totalDuration time.Duration
}

// Avg returns the mean tick duration, zero before the first tick.
func (m TickMetrics) Avg() time.Duration {
	if m.Total == 0 {
		return 0
	}
	return m.totalDuration / time.Duration(m.Total)
}

func (m *TickMetrics) record(d time.Duration, at time.Time) {
	m.Last = d
	m.LastCompletedAt = at
	m.totalDuration += d
	if m.Total == 0 || d < m.Min {
		m.Min = d
	}
	if d > m.Max {
		m.Max = d
	}
	m.Total++
}

// UnitMetrics records one command or system execution within a tick.
type UnitMetrics struct {
	Name     string
	Duration time.Duration
	Success  bool
	Err      error
}
