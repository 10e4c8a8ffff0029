// Package order defines the canonical order of the flat task list and an
// index for walking the tree it encodes.
//
// Rows are ordered by parentId, then parentIndex, then id. A nil parentId or
// parentIndex sorts before any value. Clients rebuild the tree from this
// order alone, so every store must produce exactly it.
package order

import (
	"cmp"
	"slices"

	"github.com/ganttd/ganttd/internal/gantt/schema"
)

// Compare orders a before b (negative), after b (positive) or equal (zero).
func Compare(a, b *schema.Task) int {
	if c := compareNullable(a.ParentID, b.ParentID); c != 0 {
		return c
	}
	if c := compareNullable(a.ParentIndex, b.ParentIndex); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func compareNullable(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return cmp.Compare(*a, *b)
	}
}

// Sort orders tasks in place.
func Sort(tasks []*schema.Task) {
	slices.SortStableFunc(tasks, Compare)
}

// IsSorted reports whether tasks are already in canonical order.
func IsSorted(tasks []*schema.Task) bool {
	return slices.IsSortedFunc(tasks, Compare)
}
