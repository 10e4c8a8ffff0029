package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ganttd/ganttd/internal/gantt/patch"
	"github.com/ganttd/ganttd/internal/gantt/schema"
	"github.com/ganttd/ganttd/internal/gantt/store"
)

const taskColumns = `id, name, start_date, end_date, duration, percent_done,
	parent_id, parent_index, expanded, rollup, manually_scheduled, effort`

// ListTasksOrdered must match order.Compare. PostgreSQL sorts NULL last by
// default, so NULLS FIRST is spelled out for both engines.
const orderedScan = `SELECT ` + taskColumns + ` FROM tasks
	ORDER BY parent_id ASC NULLS FIRST, parent_index ASC NULLS FIRST, id ASC`

// GetTask retrieves a single task by id.
func (db *DB) GetTask(ctx context.Context, id int64) (*schema.Task, error) {
	q := db.conn.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)

	var t schema.Task
	if err := db.conn.GetContext(ctx, &t, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return &t, nil
}

// InsertTask stores t under a fresh id.
func (db *DB) InsertTask(ctx context.Context, t *schema.Task) (int64, error) {
	q := db.conn.Rebind(`
	INSERT INTO tasks (
		name, start_date, end_date, duration, percent_done,
		parent_id, parent_index, expanded, rollup, manually_scheduled, effort
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id`)

	var id int64
	if err := db.conn.QueryRowxContext(ctx, q, rowArgs(t)...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert task: %w", describe(err))
	}
	return id, nil
}

// InsertTaskWithID stores t under t.ID. Used for seeding.
func (db *DB) InsertTaskWithID(ctx context.Context, t *schema.Task) error {
	if t.ID <= 0 {
		return fmt.Errorf("failed to insert task: id must be positive (got %d)", t.ID)
	}

	q := db.conn.Rebind(`
	INSERT INTO tasks (
		id, name, start_date, end_date, duration, percent_done,
		parent_id, parent_index, expanded, rollup, manually_scheduled, effort
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	args := append([]any{t.ID}, rowArgs(t)...)
	if _, err := db.conn.ExecContext(ctx, q, args...); err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("failed to insert task: id %d already exists", t.ID)
		}
		return fmt.Errorf("failed to insert task %d: %w", t.ID, describe(err))
	}

	if db.engine == Postgres {
		// Explicit ids bypass the identity sequence; move it past them.
		const bump = `SELECT setval(pg_get_serial_sequence('tasks', 'id'),
			GREATEST($1, nextval(pg_get_serial_sequence('tasks', 'id'))))`
		if _, err := db.conn.ExecContext(ctx, bump, t.ID); err != nil {
			return fmt.Errorf("failed to advance id sequence: %w", describe(err))
		}
	}
	return nil
}

// UpdateTask writes the columns p assigns on task id. A patch that assigns
// nothing issues no statement.
func (db *DB) UpdateTask(ctx context.Context, id int64, p *patch.TaskPatch) error {
	assignments := p.Assignments()
	if len(assignments) == 0 {
		return nil
	}

	sets := make([]string, 0, len(assignments))
	args := make([]any, 0, len(assignments)+1)
	for _, a := range assignments {
		sets = append(sets, a.Field.Column()+" = ?")
		args = append(args, columnValue(a.Value))
	}
	args = append(args, id)

	q := db.conn.Rebind(`UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	res, err := db.conn.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", id, describe(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteTaskCascade removes task id and its whole subtree in one statement,
// so readers see either all of it or none of it. UNION instead of UNION ALL
// stops the walk on parent cycles.
func (db *DB) DeleteTaskCascade(ctx context.Context, id int64) (int, error) {
	q := db.conn.Rebind(`
	DELETE FROM tasks WHERE id IN (
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM tasks WHERE id = ?
			UNION
			SELECT t.id FROM tasks t JOIN subtree s ON t.parent_id = s.id
		)
		SELECT id FROM subtree
	)`)

	res, err := db.conn.ExecContext(ctx, q, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete task %d: %w", id, describe(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	if n == 0 {
		return 0, store.ErrNotFound
	}
	return int(n), nil
}

// ListTasksOrdered returns every task sorted by parent, sibling index, id.
func (db *DB) ListTasksOrdered(ctx context.Context) ([]*schema.Task, error) {
	var tasks []*schema.Task
	if err := db.conn.SelectContext(ctx, &tasks, orderedScan); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*schema.Task{}
	}
	return tasks, nil
}

// CountTasks returns the total number of tasks.
func (db *DB) CountTasks(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.GetContext(ctx, &count, `SELECT COUNT(*) FROM tasks`); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// rowArgs lists t's stored columns in insert order, without id.
func rowArgs(t *schema.Task) []any {
	return []any{
		t.Name,
		timeToNullString(t.StartDate),
		timeToNullString(t.EndDate),
		t.Duration,
		t.PercentDone,
		t.ParentID,
		t.ParentIndex,
		t.Expanded,
		t.Rollup,
		t.ManuallyScheduled,
		t.Effort,
	}
}

// columnValue converts a patch value to something both drivers accept.
func columnValue(v any) any {
	if tm, ok := v.(schema.Time); ok {
		return tm.String()
	}
	return v
}

func timeToNullString(t *schema.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.String(), Valid: true}
}

var (
	_ store.Store  = (*DB)(nil)
	_ store.Seeder = (*DB)(nil)
)
