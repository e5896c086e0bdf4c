package container

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ireland-samantha/stormstack-sub008/internal/config"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
	"github.com/ireland-samantha/stormstack-sub008/internal/history"
)

// Manager creates and tracks containers. All containers share one entity
// id sequence so ids never collide across them.
type Manager struct {
	cfg *config.Config
	log *zap.Logger
	seq *ecs.Sequence

	mu         sync.Mutex
	nextID     uint64
	containers map[uint64]*Container
}

func NewManager(cfg *config.Config, log *zap.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		log:        log,
		seq:        ecs.NewSequence(),
		containers: make(map[uint64]*Container),
	}
}

// Create builds a new container. Sinks receive every snapshot the
// container records.
func (m *Manager) Create(name string, sinks ...history.Sink) *Container {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c := New(m.nextID, name, m.cfg, m.seq, m.log, sinks...)
	m.containers[c.ID()] = c
	return c
}

// Get returns the container by id.
func (m *Manager) Get(id uint64) (*Container, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[id]
	return c, ok
}

// List returns all containers ordered by id.
func (m *Manager) List() []*Container {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Container, 0, len(m.containers))
	for _, c := range m.containers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Remove stops and forgets a container.
func (m *Manager) Remove(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[id]
	if !ok {
		return fmt.Errorf("container %d not found", id)
	}
	c.Close()
	delete(m.containers, id)
	return nil
}

// CloseAll stops every container.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.containers {
		c.Close()
	}
	m.containers = make(map[uint64]*Container)
}
