// Package loop drives a container's simulation forward in discrete ticks.
// Each tick drains queued commands, runs every registered system in
// order, advances the tick counter, and notifies listeners. One failing
// unit never aborts the tick; failures are logged and counted, and the
// remaining units still run.
package loop

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ireland-samantha/stormstack-sub008/internal/core/command"
)

// State is the scheduler's lifecycle phase.
type State int32

const (
	// Idle means no tick is executing and no driver is running.
	Idle State = iota
	// Stepping means a single manual tick is in flight.
	Stepping
	// Playing means the interval driver is advancing ticks automatically.
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Stepping:
		return "stepping"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// System is one unit of per-tick simulation logic.
type System interface {
	Name() string
	Update(tick uint64) error
}

type funcSystem struct {
	name string
	fn   func(tick uint64) error
}

func (s funcSystem) Name() string             { return s.name }
func (s funcSystem) Update(tick uint64) error { return s.fn(tick) }

// NewSystem adapts a plain function into a System.
func NewSystem(name string, fn func(tick uint64) error) System {
	return funcSystem{name: name, fn: fn}
}

// TickListener observes completed ticks. Listeners run synchronously on
// the tick goroutine after the counter has advanced; slow listeners slow
// the loop, so heavy work belongs behind a channel.
type TickListener interface {
	OnTickComplete(tick uint64)
}

// Scheduler owns the tick loop for one container.
//
// runMu serializes tick execution with any external reader that needs a
// quiet store, like snapshot generation. stateMu covers driver
// bookkeeping only and is never held while a tick runs, so Stop can wait
// for the driver without deadlocking against an in-flight Step.
type Scheduler struct {
	log   *zap.Logger
	queue *command.Queue

	maxCommandsPerTick int

	runMu   sync.Mutex
	stateMu sync.Mutex
	state   atomic.Int32
	stop    chan struct{}
	done    chan struct{}

	systems   []System
	listeners []TickListener
	tick      atomic.Uint64

	mMu         sync.Mutex
	metrics     TickMetrics
	lastCmds    []UnitMetrics
	lastSystems []UnitMetrics
}

func NewScheduler(queue *command.Queue, maxCommandsPerTick int, log *zap.Logger) *Scheduler {
	return &Scheduler{
		log:                log,
		queue:              queue,
		maxCommandsPerTick: maxCommandsPerTick,
	}
}

// RegisterSystem appends a system; systems run in registration order.
func (s *Scheduler) RegisterSystem(sys System) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.systems = append(s.systems, sys)
}

// AddTickListener appends a completion listener.
func (s *Scheduler) AddTickListener(l TickListener) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// CurrentTick returns the number of completed ticks.
func (s *Scheduler) CurrentTick() uint64 {
	return s.tick.Load()
}

// State returns the current lifecycle phase.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Step executes exactly one tick. Safe to call concurrently with the
// interval driver; calls serialize on the run lock.
func (s *Scheduler) Step() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	manual := s.state.CompareAndSwap(int32(Idle), int32(Stepping))
	s.runTick()
	if manual {
		s.state.CompareAndSwap(int32(Stepping), int32(Idle))
	}
}

// RunExclusive runs fn while no tick is executing.
func (s *Scheduler) RunExclusive(fn func()) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	fn()
}

func (s *Scheduler) runTick() {
	start := time.Now()
	tick := s.tick.Load()

	cmds := s.queue.DrainUpTo(s.maxCommandsPerTick)
	cmdMetrics := make([]UnitMetrics, 0, len(cmds))
	for _, c := range cmds {
		m := s.runUnit(c.Name, tick, "command", func() error { return c.Exec() })
		cmdMetrics = append(cmdMetrics, m)
	}

	sysMetrics := make([]UnitMetrics, 0, len(s.systems))
	for _, sys := range s.systems {
		sys := sys
		m := s.runUnit(sys.Name(), tick, "system", func() error { return sys.Update(tick) })
		sysMetrics = append(sysMetrics, m)
	}

	completed := s.tick.Add(1)
	for _, l := range s.listeners {
		s.notify(l, completed)
	}

	elapsed := time.Since(start)
	s.mMu.Lock()
	s.metrics.record(elapsed, start.Add(elapsed))
	s.lastCmds = cmdMetrics
	s.lastSystems = sysMetrics
	s.mMu.Unlock()
}

func (s *Scheduler) runUnit(name string, tick uint64, kind string, fn func() error) UnitMetrics {
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	m := UnitMetrics{Name: name, Duration: time.Since(start), Success: err == nil, Err: err}
	if err != nil {
		s.log.Warn(kind+" failed",
			zap.String("name", name),
			zap.Uint64("tick", tick),
			zap.Error(err))
	}
	return m
}

func (s *Scheduler) notify(l TickListener, tick uint64) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("tick listener panicked",
				zap.Uint64("tick", tick),
				zap.Any("panic", r))
		}
	}()
	l.OnTickComplete(tick)
}

// Play starts the interval driver, replacing any running one. The driver
// calls Step on every interval until Stop.
func (s *Scheduler) Play(interval time.Duration) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	s.stopDriverLocked()
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop = stop
	s.done = done
	s.state.Store(int32(Playing))

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Step()
			}
		}
	}()
}

// Stop halts the interval driver and returns once no further tick will
// run. A no-op when not playing; manual Step stays available afterward.
func (s *Scheduler) Stop() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.stopDriverLocked()
	s.state.Store(int32(Idle))
}

func (s *Scheduler) stopDriverLocked() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
	s.done = nil
}

// Metrics returns a copy of the aggregate tick timings.
func (s *Scheduler) Metrics() TickMetrics {
	s.mMu.Lock()
	defer s.mMu.Unlock()
	return s.metrics
}

// LastCommandMetrics returns the per-command results of the most recent
// tick.
func (s *Scheduler) LastCommandMetrics() []UnitMetrics {
	s.mMu.Lock()
	defer s.mMu.Unlock()
	out := make([]UnitMetrics, len(s.lastCmds))
	copy(out, s.lastCmds)
	return out
}

// LastSystemMetrics returns the per-system results of the most recent
// tick.
func (s *Scheduler) LastSystemMetrics() []UnitMetrics {
	s.mMu.Lock()
	defer s.mMu.Unlock()
	out := make([]UnitMetrics, len(s.lastSystems))
	copy(out, s.lastSystems)
	return out
}

// ResetMetrics clears the aggregate tick timings.
func (s *Scheduler) ResetMetrics() {
	s.mMu.Lock()
	defer s.mMu.Unlock()
	s.metrics = TickMetrics{}
}
