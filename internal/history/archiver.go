package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ireland-samantha/stormstack-sub008/internal/core/snapshot"
)

// SnapshotWriter persists one snapshot. Implemented by the database
// repository.
type SnapshotWriter interface {
	SaveSnapshot(ctx context.Context, containerID uint64, snap *snapshot.Snapshot) error
}

// Archiver is a Sink that writes snapshots to durable storage off the
// tick goroutine. Record never blocks the tick: snapshots are handed to
// a worker over a bounded channel and dropped with a warning when the
// writer cannot keep up.
type Archiver struct {
	log         *zap.Logger
	writer      SnapshotWriter
	containerID uint64

	ch        chan *snapshot.Snapshot
	closeOnce sync.Once
	done      chan struct{}
}

func NewArchiver(containerID uint64, writer SnapshotWriter, buffer int, log *zap.Logger) *Archiver {
	if buffer < 1 {
		buffer = 1
	}
	a := &Archiver{
		log:         log,
		writer:      writer,
		containerID: containerID,
		ch:          make(chan *snapshot.Snapshot, buffer),
		done:        make(chan struct{}),
	}
	go a.run()
	return a
}

// Record implements Sink.
func (a *Archiver) Record(matchID, tick uint64, snap *snapshot.Snapshot) {
	select {
	case a.ch <- snap:
	default:
		a.log.Warn("archive buffer full, dropping snapshot",
			zap.Uint64("match", matchID),
			zap.Uint64("tick", tick))
	}
}

func (a *Archiver) run() {
	defer close(a.done)
	for snap := range a.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := a.writer.SaveSnapshot(ctx, a.containerID, snap)
		cancel()
		if err != nil {
			a.log.Warn("snapshot archive failed",
				zap.Uint64("match", snap.MatchID),
				zap.Uint64("tick", snap.Tick),
				zap.Error(err))
		}
	}
}

// Close drains the buffer and stops the worker.
func (a *Archiver) Close() {
	a.closeOnce.Do(func() { close(a.ch) })
	<-a.done
}
