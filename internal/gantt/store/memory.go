package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ganttd/ganttd/internal/gantt/order"
	"github.com/ganttd/ganttd/internal/gantt/patch"
	"github.com/ganttd/ganttd/internal/gantt/schema"
)

// Memory is a Store kept in process memory. Each operation holds the lock
// for its whole duration, so a cascade delete is never observed half done.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]*schema.Task

	writes int
	failAt int
	failE  error
}

// NewMemory returns an empty store whose first id is 1.
func NewMemory() *Memory {
	return &Memory{
		nextID: 1,
		tasks:  make(map[int64]*schema.Task),
	}
}

// FailOnWrite makes the nth write from now (1-based) return err without
// changing anything. Every later write succeeds again. n <= 0 disarms it.
func (m *Memory) FailOnWrite(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = 0
	m.failAt = n
	m.failE = err
}

// fault must be called with mu held for writing.
func (m *Memory) fault() error {
	if m.failAt <= 0 {
		return nil
	}
	m.writes++
	if m.writes == m.failAt {
		m.failAt = 0
		return m.failE
	}
	return nil
}

func (m *Memory) GetTask(ctx context.Context, id int64) (*schema.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (m *Memory) InsertTask(ctx context.Context, t *schema.Task) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault(); err != nil {
		return 0, err
	}

	stored := t.Clone()
	stored.ID = m.nextID
	stored.PhantomID = ""
	m.nextID++
	m.tasks[stored.ID] = stored
	return stored.ID, nil
}

func (m *Memory) UpdateTask(ctx context.Context, id int64, p *patch.TaskPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if p.IsEmpty() {
		return nil
	}
	if err := m.fault(); err != nil {
		return err
	}

	updated := t.Clone()
	p.Apply(updated)
	m.tasks[id] = updated
	return nil
}

func (m *Memory) DeleteTaskCascade(ctx context.Context, id int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return 0, ErrNotFound
	}
	if err := m.fault(); err != nil {
		return 0, err
	}

	ix := order.Build(m.snapshot())
	doomed := append(ix.Descendants(id), id)
	for _, victim := range doomed {
		delete(m.tasks, victim)
	}
	return len(doomed), nil
}

func (m *Memory) ListTasksOrdered(ctx context.Context) ([]*schema.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*schema.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.Clone())
	}
	order.Sort(out)
	return out, nil
}

func (m *Memory) CountTasks(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks), nil
}

func (m *Memory) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks = make(map[int64]*schema.Task)
	m.nextID = 1
	return nil
}

func (m *Memory) InsertTaskWithID(ctx context.Context, t *schema.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID <= 0 {
		return fmt.Errorf("failed to insert task: id must be positive (got %d)", t.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[t.ID]; exists {
		return fmt.Errorf("failed to insert task: id %d already exists", t.ID)
	}
	stored := t.Clone()
	stored.PhantomID = ""
	m.tasks[stored.ID] = stored
	if stored.ID >= m.nextID {
		m.nextID = stored.ID + 1
	}
	return nil
}

// snapshot returns the stored tasks without copying them. mu must be held.
func (m *Memory) snapshot() []*schema.Task {
	out := make([]*schema.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	return out
}

var (
	_ Store  = (*Memory)(nil)
	_ Seeder = (*Memory)(nil)
)
