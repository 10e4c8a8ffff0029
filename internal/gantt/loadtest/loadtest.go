// Package loadtest drives a sync engine with concurrent simulated clients.
//
// Every client repeatedly adds a group of children under a shared root, adds
// a grandchild under the first of them, patches the group and then removes
// the first child. A final load checks that no removed task or descendant
// came back, that created ids were never handed out twice and that the
// surviving row count matches what the clients committed.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/ganttd/ganttd/internal/gantt/order"
	"github.com/ganttd/ganttd/internal/gantt/patch"
	"github.com/ganttd/ganttd/internal/gantt/schema"
	gsync "github.com/ganttd/ganttd/internal/gantt/sync"
)

// Options controls the shape of a run.
type Options struct {
	// Clients is the number of concurrent clients (default 10).
	Clients int

	// Rounds is the number of add/patch/remove rounds per client (default 5).
	Rounds int

	// Children is the number of tasks each round adds (default 4, minimum 2).
	Children int
}

func (o *Options) setDefaults() {
	if o.Clients <= 0 {
		o.Clients = 10
	}
	if o.Rounds <= 0 {
		o.Rounds = 5
	}
	if o.Children < 2 {
		o.Children = 4
	}
}

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min           time.Duration
	Max           time.Duration
	Mean          time.Duration
	P50           time.Duration // Median
	P95           time.Duration
	P99           time.Duration
	TotalRequests int
	Errors        int
	Durations     []time.Duration
}

// Report is the outcome of a run.
type Report struct {
	Options Options
	Stats   *LatencyStats

	RootID   int64
	Created  int
	Removed  int
	Expected int
	Loaded   int

	// Violations lists every consistency problem found by the final load.
	Violations []string
}

// OK reports whether the run had no request errors and no violations.
func (r *Report) OK() bool {
	return r.Stats.Errors == 0 && len(r.Violations) == 0
}

type clientResult struct {
	durations []time.Duration
	created   []int64
	removed   []int64
	survivors int
	errors    []error
}

// Run executes the load against engine, which should start empty.
func Run(ctx context.Context, engine gsync.Engine, opts Options) (*Report, error) {
	opts.setDefaults()

	rootID, err := createRoot(ctx, engine)
	if err != nil {
		return nil, err
	}

	results := make([]clientResult, opts.Clients)
	var wg sync.WaitGroup
	for i := 0; i < opts.Clients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			results[clientID] = runClient(ctx, engine, clientID, rootID, opts)
		}(i)
	}
	wg.Wait()

	report := &Report{Options: opts, RootID: rootID, Expected: 1}
	var all []time.Duration
	var errCount int
	var created, removed []int64
	for _, r := range results {
		all = append(all, r.durations...)
		errCount += len(r.errors)
		created = append(created, r.created...)
		removed = append(removed, r.removed...)
		report.Expected += r.survivors
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no successful requests completed")
	}

	report.Stats = computeLatencyStats(all)
	report.Stats.Errors = errCount
	report.Created = len(created)
	report.Removed = len(removed)

	if err := report.verify(ctx, engine, created, removed); err != nil {
		return nil, err
	}
	return report, nil
}

func createRoot(ctx context.Context, engine gsync.Engine) (int64, error) {
	resp := engine.Sync(ctx, &gsync.SyncRequest{
		Revision: patch.Some[int64](0),
		Tasks: &gsync.TaskChanges{Added: []patch.TaskPatch{{
			PhantomID: patch.Some("root"),
			Name:      patch.Some("Load test"),
			Expanded:  patch.Some(true),
		}}},
	})
	if !resp.Success || len(resp.Tasks.Rows) != 1 {
		return 0, fmt.Errorf("failed to create root task")
	}
	return resp.Tasks.Rows[0].ID, nil
}

func runClient(ctx context.Context, engine gsync.Engine, clientID int, rootID int64, opts Options) clientResult {
	var res clientResult
	var revision int64
	requestID := int64(clientID) * 1_000_000
	day := time.Now().UTC().Truncate(24 * time.Hour)

	send := func(changes *gsync.TaskChanges) *gsync.SyncResponse {
		requestID++
		req := &gsync.SyncRequest{
			RequestID: patch.Some(requestID),
			Revision:  patch.Some(revision),
			Tasks:     changes,
		}
		start := time.Now()
		resp := engine.Sync(ctx, req)
		res.durations = append(res.durations, time.Since(start))

		if !resp.Success {
			res.errors = append(res.errors, fmt.Errorf("client %d request %d failed", clientID, requestID))
			return nil
		}
		if resp.RequestID == nil || *resp.RequestID != requestID {
			res.errors = append(res.errors, fmt.Errorf("client %d request %d: request id not echoed", clientID, requestID))
		}
		if *resp.Revision != revision+1 {
			res.errors = append(res.errors, fmt.Errorf("client %d request %d: revision %d, want %d", clientID, requestID, *resp.Revision, revision+1))
		}
		revision = *resp.Revision
		return resp
	}

	for round := 0; round < opts.Rounds; round++ {
		if ctx.Err() != nil {
			res.errors = append(res.errors, ctx.Err())
			return res
		}

		// 1. Add the group under the root.
		added := make([]patch.TaskPatch, opts.Children)
		phantoms := make([]string, opts.Children)
		for k := range added {
			phantoms[k] = fmt.Sprintf("_c%d_r%d_%d", clientID, round, k)
			child := schema.NewTask()
			child.PhantomID = phantoms[k]
			child.Name = fmt.Sprintf("Client %d round %d task %d", clientID, round, k)
			child.ParentID = schema.Int(rootID)
			child.ParentIndex = schema.Int(int64(k))
			child.Duration = schema.Float(float64(k + 1))
			start := schema.NewTime(day.AddDate(0, 0, round))
			child.StartDate = &start
			added[k] = patch.FromTask(child)
		}
		resp := send(&gsync.TaskChanges{Added: added})
		if resp == nil {
			continue
		}
		children, err := matchPhantoms(resp.Tasks.Rows, phantoms)
		if err != nil {
			res.errors = append(res.errors, fmt.Errorf("client %d round %d: %w", clientID, round, err))
			continue
		}
		res.created = append(res.created, children...)

		// 2. Nest a grandchild under the first child and patch the group.
		updated := make([]patch.TaskPatch, len(children))
		for k, id := range children {
			updated[k] = patch.TaskPatch{
				ID:          patch.Some(id),
				PercentDone: patch.Some(50.0),
				Effort:      patch.None[int64](),
			}
		}
		grandchild := fmt.Sprintf("_g%d_r%d", clientID, round)
		resp = send(&gsync.TaskChanges{
			Added: []patch.TaskPatch{{
				PhantomID: patch.Some(grandchild),
				Name:      patch.Some("Nested"),
				ParentID:  patch.Some(children[0]),
			}},
			Updated: updated,
		})
		if resp == nil {
			res.survivors += len(children)
			continue
		}
		nested, err := matchPhantoms(resp.Tasks.Rows, []string{grandchild})
		if err != nil {
			res.errors = append(res.errors, fmt.Errorf("client %d round %d: %w", clientID, round, err))
			res.survivors += len(children)
			continue
		}
		res.created = append(res.created, nested...)

		// 3. Remove the first child; the grandchild goes with it.
		resp = send(&gsync.TaskChanges{Removed: []patch.TaskPatch{{ID: patch.Some(children[0])}}})
		if resp == nil {
			res.survivors += len(children) + 1
			continue
		}
		res.removed = append(res.removed, children[0], nested[0])
		res.survivors += len(children) - 1
	}
	return res
}

// matchPhantoms returns the ids the server assigned to phantoms, in order.
func matchPhantoms(rows []*schema.Task, phantoms []string) ([]int64, error) {
	byPhantom := make(map[string]int64, len(rows))
	for _, r := range rows {
		byPhantom[r.PhantomID] = r.ID
	}
	ids := make([]int64, len(phantoms))
	for i, p := range phantoms {
		id, ok := byPhantom[p]
		if !ok {
			return nil, fmt.Errorf("phantom id %s not echoed", p)
		}
		ids[i] = id
	}
	return ids, nil
}

func (r *Report) verify(ctx context.Context, engine gsync.Engine, created, removed []int64) error {
	load, err := engine.Load(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load after run: %w", err)
	}
	r.Loaded = load.Tasks.Total

	seen := make(map[int64]bool, len(created))
	for _, id := range created {
		if seen[id] {
			r.Violations = append(r.Violations, fmt.Sprintf("id %d assigned twice", id))
		}
		seen[id] = true
		if id == r.RootID {
			r.Violations = append(r.Violations, fmt.Sprintf("root id %d reused", id))
		}
	}

	ix := order.Build(load.Tasks.Rows)
	for _, t := range ix.Dangling() {
		r.Violations = append(r.Violations, fmt.Sprintf("task %d orphaned under missing parent %d", t.ID, *t.ParentID))
	}
	for _, t := range ix.Roots() {
		if t.ID != r.RootID {
			r.Violations = append(r.Violations, fmt.Sprintf("task %d loaded as an extra root", t.ID))
		}
	}

	present := make(map[int64]bool, len(load.Tasks.Rows))
	for _, t := range load.Tasks.Rows {
		present[t.ID] = true
		if t.PhantomID != "" {
			r.Violations = append(r.Violations, fmt.Sprintf("task %d loaded with phantom id %q", t.ID, t.PhantomID))
		}
	}
	for _, id := range removed {
		if present[id] {
			r.Violations = append(r.Violations, fmt.Sprintf("removed task %d reappeared", id))
		}
	}

	if r.Stats.Errors == 0 && r.Loaded != r.Expected {
		r.Violations = append(r.Violations, fmt.Sprintf("loaded %d tasks, want %d", r.Loaded, r.Expected))
	}
	slices.Sort(r.Violations)
	return nil
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:           sorted[0],
		Max:           sorted[len(sorted)-1],
		Mean:          sum / time.Duration(len(durations)),
		P50:           sorted[len(sorted)*50/100],
		P95:           sorted[len(sorted)*95/100],
		P99:           sorted[len(sorted)*99/100],
		TotalRequests: len(durations),
		Durations:     sorted,
	}
}

// PrintStats formats latency statistics to w.
func (s *LatencyStats) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Latency Statistics:\n")
	fmt.Fprintf(w, "  Total Requests: %d\n", s.TotalRequests)
	fmt.Fprintf(w, "  Errors:         %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:            %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):   %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:           %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:            %v\n", s.P95)
	fmt.Fprintf(w, "  P99:            %v\n", s.P99)
	fmt.Fprintf(w, "  Max:            %v\n", s.Max)
}
