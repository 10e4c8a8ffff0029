package order

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/ganttd/ganttd/internal/gantt/schema"
)

func task(id int64, parent, index *int64) *schema.Task {
	return &schema.Task{ID: id, ParentID: parent, ParentIndex: index}
}

func ids(tasks []*schema.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

var p = schema.Int

func TestSort(t *testing.T) {
	tasks := []*schema.Task{
		task(6, p(2), p(1)),
		task(5, p(2), p(0)),
		task(4, p(1), nil),
		task(3, nil, p(1)),
		task(2, nil, p(0)),
		task(1, nil, nil),
		task(7, p(1), p(0)),
		task(8, p(1), p(0)),
	}

	Sort(tasks)

	want := []int64{1, 2, 3, 4, 7, 8, 5, 6}
	if got := ids(tasks); !slices.Equal(got, want) {
		t.Errorf("Sort() = %v, want %v", got, want)
	}
	if !IsSorted(tasks) {
		t.Error("IsSorted() = false after Sort()")
	}
}

// Groups sharing a parent are contiguous and internally non-decreasing by
// parentIndex, whatever the input order.
func TestSort_GroupsAreContiguous(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var tasks []*schema.Task
	for i := int64(1); i <= 200; i++ {
		var parent *int64
		if rng.Intn(4) != 0 {
			parent = p(int64(rng.Intn(10)))
		}
		tasks = append(tasks, task(i, parent, p(int64(rng.Intn(20)))))
	}
	rng.Shuffle(len(tasks), func(i, j int) { tasks[i], tasks[j] = tasks[j], tasks[i] })

	Sort(tasks)

	closed := map[string]bool{}
	key := func(t *schema.Task) string {
		if t.ParentID == nil {
			return "root"
		}
		return string(rune('a' + *t.ParentID))
	}
	for i := 1; i < len(tasks); i++ {
		prev, cur := tasks[i-1], tasks[i]
		if key(prev) != key(cur) {
			closed[key(prev)] = true
			if closed[key(cur)] {
				t.Fatalf("group %s interleaved at position %d", key(cur), i)
			}
			continue
		}
		if *prev.ParentIndex > *cur.ParentIndex {
			t.Fatalf("parentIndex decreases within group %s at position %d", key(cur), i)
		}
	}
}

func TestIndex(t *testing.T) {
	ix := Build([]*schema.Task{
		task(1, nil, p(0)),
		task(2, p(1), p(1)),
		task(3, p(1), p(0)),
		task(4, p(3), p(0)),
		task(5, nil, p(1)),
		task(6, p(42), p(0)),
	})

	if ix.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", ix.Len())
	}
	if got, ok := ix.Get(4); !ok || got.ID != 4 {
		t.Errorf("Get(4) = %v, %v", got, ok)
	}
	if _, ok := ix.Get(99); ok {
		t.Error("Get(99) found a task")
	}

	if got := ids(ix.Roots()); !slices.Equal(got, []int64{1, 5}) {
		t.Errorf("Roots() = %v", got)
	}
	if got := ids(ix.Children(nil)); !slices.Equal(got, []int64{1, 5}) {
		t.Errorf("Children(nil) = %v", got)
	}
	if got := ids(ix.Children(p(1))); !slices.Equal(got, []int64{3, 2}) {
		t.Errorf("Children(1) = %v, want sibling order [3 2]", got)
	}
	if got := ix.Children(p(5)); len(got) != 0 {
		t.Errorf("Children(5) = %v, want none", ids(got))
	}

	desc := ix.Descendants(1)
	slices.Sort(desc)
	if !slices.Equal(desc, []int64{2, 3, 4}) {
		t.Errorf("Descendants(1) = %v", desc)
	}
	if got := ix.Descendants(4); len(got) != 0 {
		t.Errorf("Descendants(4) = %v, want none", got)
	}

	if got := ids(ix.Dangling()); !slices.Equal(got, []int64{6}) {
		t.Errorf("Dangling() = %v", got)
	}
	if !IsSorted(ix.Rows()) {
		t.Error("Rows() not in canonical order")
	}
}

func TestIndex_DescendantsWithCycle(t *testing.T) {
	ix := Build([]*schema.Task{
		task(1, p(2), nil),
		task(2, p(1), nil),
		task(3, p(2), nil),
	})

	desc := ix.Descendants(1)
	slices.Sort(desc)
	if !slices.Equal(desc, []int64{2, 3}) {
		t.Errorf("Descendants(1) = %v, want [2 3]", desc)
	}
}
