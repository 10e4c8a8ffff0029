// Package seed replaces the task table with the contents of a seed file.
package seed

import (
	"context"
	"fmt"

	"github.com/ganttd/ganttd/internal/gantt/schema"
	"github.com/ganttd/ganttd/internal/gantt/store"
)

// Target is a store that can be wiped and bulk loaded.
type Target interface {
	store.Seeder
	InsertTask(ctx context.Context, t *schema.Task) (int64, error)
}

// Notifier is told after every successful reseed.
type Notifier interface {
	NotifyReload(n int)
}

// Run reads the seed file at path and replaces every task in t with its
// contents. The file is parsed before anything is deleted, so a malformed
// file leaves the store untouched. It returns the number of tasks stored.
func Run(ctx context.Context, t Target, path string) (int, error) {
	tasks, err := schema.ReadTasksFile(path)
	if err != nil {
		return 0, err
	}
	return Load(ctx, t, tasks)
}

// Load replaces every task in t with tasks. Tasks with an id keep it; tasks
// without one get the next free id.
func Load(ctx context.Context, t Target, tasks []*schema.Task) (int, error) {
	if err := t.Reset(ctx); err != nil {
		return 0, fmt.Errorf("failed to reset store: %w", err)
	}

	for i, task := range tasks {
		if task.ID != 0 {
			if err := t.InsertTaskWithID(ctx, task); err != nil {
				return i, fmt.Errorf("failed to seed task %d: %w", task.ID, err)
			}
			continue
		}
		if _, err := t.InsertTask(ctx, task); err != nil {
			return i, fmt.Errorf("failed to seed task %q: %w", task.Name, err)
		}
	}
	return len(tasks), nil
}
