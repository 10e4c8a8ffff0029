// Package store defines the task storage contract used by the sync engine,
// plus an in-memory implementation.
package store

import (
	"context"
	"errors"

	"github.com/ganttd/ganttd/internal/gantt/patch"
	"github.com/ganttd/ganttd/internal/gantt/schema"
)

// ErrNotFound is returned when a task id matches no stored task.
var ErrNotFound = errors.New("task not found")

// Store persists the task tree.
//
// Every write is durable when it returns. Ids handed out by InsertTask are
// never handed out again, even after the task is deleted.
type Store interface {
	// GetTask returns the task with the given id or ErrNotFound.
	GetTask(ctx context.Context, id int64) (*schema.Task, error)

	// InsertTask stores t under a fresh id and returns that id. t.ID and
	// t.PhantomID are ignored.
	InsertTask(ctx context.Context, t *schema.Task) (int64, error)

	// UpdateTask overwrites the fields p sets on task id. It returns
	// ErrNotFound when the task does not exist and never creates one.
	UpdateTask(ctx context.Context, id int64, p *patch.TaskPatch) error

	// DeleteTaskCascade removes task id and every task reachable below it
	// through parentId, as one atomic step. It returns how many rows went.
	DeleteTaskCascade(ctx context.Context, id int64) (int, error)

	// ListTasksOrdered returns every task in canonical order.
	ListTasksOrdered(ctx context.Context) ([]*schema.Task, error)

	// CountTasks returns the number of stored tasks.
	CountTasks(ctx context.Context) (int, error)
}

// Seeder is implemented by stores that can be wiped and bulk loaded with
// caller-chosen ids.
type Seeder interface {
	// Reset drops every task and restarts id assignment.
	Reset(ctx context.Context) error

	// InsertTaskWithID stores t under t.ID. Later InsertTask calls never
	// return an id at or below the highest id seeded this way.
	InsertTaskWithID(ctx context.Context, t *schema.Task) error
}
