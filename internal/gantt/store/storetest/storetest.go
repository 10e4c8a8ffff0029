// Package storetest holds behavior checks shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/ganttd/ganttd/internal/gantt/order"
	"github.com/ganttd/ganttd/internal/gantt/patch"
	"github.com/ganttd/ganttd/internal/gantt/schema"
	"github.com/ganttd/ganttd/internal/gantt/store"
)

// Factory returns an empty store. It registers its own cleanup.
type Factory func(t *testing.T) store.Store

// Run exercises the Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("IdsNeverReused", func(t *testing.T) { testIdsNeverReused(t, newStore(t)) })
	t.Run("UpdateSetsOnlyAssignedFields", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("CascadeDelete", func(t *testing.T) { testCascade(t, newStore(t)) })
	t.Run("DanglingParent", func(t *testing.T) { testDangling(t, newStore(t)) })
	t.Run("OrderedScan", func(t *testing.T) { testOrderedScan(t, newStore(t)) })
	t.Run("ConcurrentInserts", func(t *testing.T) { testConcurrentInserts(t, newStore(t)) })
}

func mustInsert(t *testing.T, s store.Store, task *schema.Task) int64 {
	t.Helper()
	id, err := s.InsertTask(context.Background(), task)
	if err != nil {
		t.Fatalf("InsertTask() failed: %v", err)
	}
	return id
}

func named(name string, parent *int64, index int64) *schema.Task {
	task := schema.NewTask()
	task.Name = name
	task.ParentID = parent
	task.ParentIndex = schema.Int(index)
	return task
}

func testInsertAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	start, _ := schema.ParseTime("2024-02-01T08:00:00")
	task := schema.NewTask()
	task.ID = 77
	task.PhantomID = "new-1"
	task.Name = "Kickoff"
	task.StartDate = &start
	task.Duration = schema.Float(1.5)
	task.Effort = schema.Int(8)

	id := mustInsert(t, s, task)
	if id <= 0 {
		t.Fatalf("InsertTask() id = %d, want positive", id)
	}
	if id == 77 {
		t.Errorf("InsertTask() kept caller id")
	}

	got, err := s.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("GetTask(%d) failed: %v", id, err)
	}
	if got.ID != id || got.Name != "Kickoff" || got.PhantomID != "" {
		t.Errorf("GetTask() = %+v", got)
	}
	if got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Errorf("StartDate = %v, want %v", got.StartDate, start)
	}
	if got.Duration == nil || *got.Duration != 1.5 || got.Effort == nil || *got.Effort != 8 {
		t.Errorf("Duration/Effort = %v/%v", got.Duration, got.Effort)
	}
	if got.Expanded == nil || !*got.Expanded || got.Rollup == nil || *got.Rollup {
		t.Errorf("defaults not stored: %+v", got)
	}
	if got.EndDate != nil || got.ParentID != nil {
		t.Errorf("unset fields came back set: %+v", got)
	}

	n, err := s.CountTasks(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountTasks() = %d, %v; want 1", n, err)
	}
}

func testGetMissing(t *testing.T, s store.Store) {
	_, err := s.GetTask(context.Background(), 9999)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetTask(9999) error = %v, want ErrNotFound", err)
	}
}

func testIdsNeverReused(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustInsert(t, s, named("a", nil, 0))
	b := mustInsert(t, s, named("b", nil, 1))
	if _, err := s.DeleteTaskCascade(ctx, b); err != nil {
		t.Fatalf("DeleteTaskCascade() failed: %v", err)
	}
	c := mustInsert(t, s, named("c", nil, 2))
	if c == a || c == b || c < b {
		t.Errorf("ids a=%d b=%d c=%d: deleted id reused", a, b, c)
	}
}

func testUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	start, _ := schema.ParseTime("2024-02-01T08:00:00")
	task := named("Design", schema.Int(40), 3)
	task.StartDate = &start
	task.Duration = schema.Float(2)
	id := mustInsert(t, s, task)

	apply := func(raw string) *schema.Task {
		t.Helper()
		var p patch.TaskPatch
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", raw, err)
		}
		if err := s.UpdateTask(ctx, id, &p); err != nil {
			t.Fatalf("UpdateTask(%s) failed: %v", raw, err)
		}
		got, err := s.GetTask(ctx, id)
		if err != nil {
			t.Fatalf("GetTask() failed: %v", err)
		}
		return got
	}

	got := apply(`{"id":1}`)
	if got.Name != "Design" || got.StartDate == nil || *got.ParentID != 40 || *got.Duration != 2 {
		t.Errorf("empty patch changed task: %+v", got)
	}

	got = apply(`{"startDate":null}`)
	if got.StartDate != nil {
		t.Errorf("StartDate = %v, want nil", got.StartDate)
	}
	if got.Name != "Design" || *got.ParentID != 40 || *got.Duration != 2 {
		t.Errorf("clearing startDate touched other fields: %+v", got)
	}

	got = apply(`{"parentId":null,"name":"Design v2","rollup":true,"effort":5}`)
	if got.ParentID != nil || got.Name != "Design v2" || !*got.Rollup || *got.Effort != 5 {
		t.Errorf("UpdateTask() = %+v", got)
	}
	if *got.ParentIndex != 3 {
		t.Errorf("ParentIndex = %d, want 3", *got.ParentIndex)
	}

	got = apply(`{"name":null,"expanded":null}`)
	if got.Name != "" || got.Expanded != nil {
		t.Errorf("null clears = %+v", got)
	}
}

func testUpdateMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := patch.TaskPatch{Name: patch.Some("ghost")}
	if err := s.UpdateTask(ctx, 9999, &p); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateTask(9999) error = %v, want ErrNotFound", err)
	}
	if n, _ := s.CountTasks(ctx); n != 0 {
		t.Errorf("UpdateTask() on missing id created a task")
	}
}

func testCascade(t *testing.T, s store.Store) {
	ctx := context.Background()
	root := mustInsert(t, s, named("root", nil, 0))
	child := mustInsert(t, s, named("child", &root, 0))
	grand := mustInsert(t, s, named("grand", &child, 0))
	mustInsert(t, s, named("great", &grand, 0))
	sibling := mustInsert(t, s, named("sibling", &root, 1))
	other := mustInsert(t, s, named("other", nil, 1))

	n, err := s.DeleteTaskCascade(ctx, child)
	if err != nil {
		t.Fatalf("DeleteTaskCascade() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("DeleteTaskCascade() removed %d, want 3", n)
	}

	rows, err := s.ListTasksOrdered(ctx)
	if err != nil {
		t.Fatalf("ListTasksOrdered() failed: %v", err)
	}
	var got []int64
	for _, r := range rows {
		got = append(got, r.ID)
	}
	slices.Sort(got)
	want := []int64{root, sibling, other}
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("remaining ids = %v, want %v", got, want)
	}

	if _, err := s.DeleteTaskCascade(ctx, child); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteTaskCascade() error = %v, want ErrNotFound", err)
	}
}

func testDangling(t *testing.T, s store.Store) {
	ctx := context.Background()
	orphan := mustInsert(t, s, named("orphan", schema.Int(424242), 0))
	got, err := s.GetTask(ctx, orphan)
	if err != nil {
		t.Fatalf("GetTask() failed: %v", err)
	}
	if got.ParentID == nil || *got.ParentID != 424242 {
		t.Errorf("dangling ParentID not stored as sent: %v", got.ParentID)
	}
}

func testOrderedScan(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustInsert(t, s, named("a", nil, 1))
	b := mustInsert(t, s, named("b", nil, 0))
	mustInsert(t, s, named("b2", &b, 1))
	mustInsert(t, s, named("b1", &b, 0))
	mustInsert(t, s, named("a1", &a, 0))
	noIndex := schema.NewTask()
	noIndex.ParentID = &a
	mustInsert(t, s, noIndex)
	mustInsert(t, s, schema.NewTask())

	rows, err := s.ListTasksOrdered(ctx)
	if err != nil {
		t.Fatalf("ListTasksOrdered() failed: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("ListTasksOrdered() returned %d rows, want 7", len(rows))
	}
	if !order.IsSorted(rows) {
		var names []string
		for _, r := range rows {
			names = append(names, r.Name)
		}
		t.Errorf("ListTasksOrdered() not in canonical order: %v", names)
	}
	if rows[0].ParentID != nil || rows[0].ParentIndex != nil {
		t.Errorf("first row = %+v, want the root without parentIndex", rows[0])
	}
}

func testConcurrentInserts(t *testing.T, s store.Store) {
	ctx := context.Background()
	const workers, per = 4, 10

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[int64]bool{}
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id, err := s.InsertTask(ctx, named("c", nil, int64(i)))
				if err != nil {
					t.Errorf("InsertTask() failed: %v", err)
					return
				}
				mu.Lock()
				if ids[id] {
					t.Errorf("id %d handed out twice", id)
				}
				ids[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if n, _ := s.CountTasks(ctx); n != workers*per {
		t.Errorf("CountTasks() = %d, want %d", n, workers*per)
	}
}
