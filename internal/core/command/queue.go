package command

import (
	"fmt"
	"sync"
)

type handler struct {
	name   string
	schema Schema
	exec   func(Payload) error
}

type queued struct {
	h       *handler
	payload Payload
}

// Pending is a drained command ready to execute on the tick goroutine.
type Pending struct {
	Name string
	Exec func() error
}

// Queue accepts commands from any goroutine and hands them to the tick
// loop in arrival order. Registration and enqueueing share one mutex;
// draining swaps the pending slice out under the lock so execution never
// blocks producers.
type Queue struct {
	mu       sync.Mutex
	handlers map[string]*handler
	pending  []queued
}

func NewQueue() *Queue {
	return &Queue{handlers: make(map[string]*handler, 16)}
}

// Register binds a command name to its schema and handler. Registering
// the same name twice is an error.
func (q *Queue) Register(name string, schema Schema, exec func(Payload) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.handlers[name]; ok {
		return fmt.Errorf("command %s already registered", name)
	}
	q.handlers[name] = &handler{name: name, schema: schema, exec: exec}
	return nil
}

// Enqueue validates the payload against the command's schema and, on
// success, appends it to the pending queue. Validation failures are
// reported to the caller immediately and never enter the queue.
func (q *Queue) Enqueue(name string, p Payload) error {
	q.mu.Lock()
	h, ok := q.handlers[name]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}
	if err := h.schema.Validate(name, p); err != nil {
		return err
	}
	q.mu.Lock()
	q.pending = append(q.pending, queued{h: h, payload: p})
	q.mu.Unlock()
	return nil
}

// DrainUpTo removes and returns at most max pending commands in FIFO
// order. max <= 0 drains everything. Commands enqueued during execution
// of the returned batch wait for the next drain.
func (q *Queue) DrainUpTo(max int) []Pending {
	q.mu.Lock()
	n := len(q.pending)
	if max > 0 && max < n {
		n = max
	}
	batch := q.pending[:n]
	q.pending = q.pending[n:]
	if len(q.pending) == 0 {
		q.pending = nil
	}
	q.mu.Unlock()

	out := make([]Pending, len(batch))
	for i, c := range batch {
		c := c
		out[i] = Pending{
			Name: c.h.name,
			Exec: func() error { return c.h.exec(c.payload) },
		}
	}
	return out
}

// Drain removes and returns all pending commands in FIFO order.
func (q *Queue) Drain() []Pending {
	return q.DrainUpTo(0)
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Commands returns the registered command names.
func (q *Queue) Commands() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.handlers))
	for name := range q.handlers {
		out = append(out, name)
	}
	return out
}
