package order

import (
	"github.com/ganttd/ganttd/internal/gantt/schema"
)

// Index is a read-only view of a task list keyed by id, with children
// grouped under their parent id. Rows are held in one slice and referenced
// by position, never by pointers between tasks.
type Index struct {
	rows     []*schema.Task
	byID     map[int64]int
	children map[int64][]int
	roots    []int
}

// Build indexes rows. The slice is copied and sorted; the tasks themselves
// are shared with the caller.
func Build(rows []*schema.Task) *Index {
	ix := &Index{
		rows:     append([]*schema.Task(nil), rows...),
		byID:     make(map[int64]int, len(rows)),
		children: make(map[int64][]int),
	}
	Sort(ix.rows)

	for i, t := range ix.rows {
		ix.byID[t.ID] = i
		if t.IsRoot() {
			ix.roots = append(ix.roots, i)
			continue
		}
		ix.children[*t.ParentID] = append(ix.children[*t.ParentID], i)
	}
	return ix
}

// Len returns the number of indexed rows.
func (ix *Index) Len() int { return len(ix.rows) }

// Rows returns every row in canonical order.
func (ix *Index) Rows() []*schema.Task {
	return append([]*schema.Task(nil), ix.rows...)
}

// Get returns the task with the given id.
func (ix *Index) Get(id int64) (*schema.Task, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return nil, false
	}
	return ix.rows[i], true
}

// Children returns the tasks whose parent is parentID, in sibling order.
// A nil parentID returns the roots.
func (ix *Index) Children(parentID *int64) []*schema.Task {
	if parentID == nil {
		return ix.pick(ix.roots)
	}
	return ix.pick(ix.children[*parentID])
}

// Roots returns the top-level tasks in sibling order.
func (ix *Index) Roots() []*schema.Task {
	return ix.pick(ix.roots)
}

// Descendants returns the ids of every task below id, breadth first. The
// walk tolerates parent cycles.
func (ix *Index) Descendants(id int64) []int64 {
	var out []int64
	seen := map[int64]bool{id: true}
	queue := []int64{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, pos := range ix.children[cur] {
			child := ix.rows[pos].ID
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// Dangling returns the tasks whose parentId names no indexed task.
func (ix *Index) Dangling() []*schema.Task {
	var out []*schema.Task
	for _, t := range ix.rows {
		if t.IsRoot() {
			continue
		}
		if _, ok := ix.byID[*t.ParentID]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func (ix *Index) pick(positions []int) []*schema.Task {
	out := make([]*schema.Task, len(positions))
	for i, pos := range positions {
		out[i] = ix.rows[pos]
	}
	return out
}
