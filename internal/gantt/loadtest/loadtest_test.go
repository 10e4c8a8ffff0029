package loadtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ganttd/ganttd/internal/gantt/db"
	"github.com/ganttd/ganttd/internal/gantt/schema"
	"github.com/ganttd/ganttd/internal/gantt/store"
	gsync "github.com/ganttd/ganttd/internal/gantt/sync"
)

func quietEngine(st store.Store) gsync.Engine {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return gsync.New(st, gsync.Config{Logger: log})
}

// TestRun_Memory verifies a small run against the in-memory store.
func TestRun_Memory(t *testing.T) {
	mem := store.NewMemory()
	report, err := Run(context.Background(), quietEngine(mem), Options{
		Clients:  8,
		Rounds:   3,
		Children: 3,
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !report.OK() {
		t.Fatalf("run not OK: errors=%d violations=%v", report.Stats.Errors, report.Violations)
	}

	// Three syncs per round per client.
	if got, want := report.Stats.TotalRequests, 8*3*3; got != want {
		t.Errorf("TotalRequests = %d, want %d", got, want)
	}
	// Each round creates three children and one grandchild.
	if got, want := report.Created, 8*3*4; got != want {
		t.Errorf("Created = %d, want %d", got, want)
	}
	// Root plus two surviving children per round.
	if got, want := report.Loaded, 1+8*3*2; got != want {
		t.Errorf("Loaded = %d, want %d", got, want)
	}

	// Children are added with every field set, defaults included.
	rows, err := mem.ListTasksOrdered(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if r.ID == report.RootID {
			continue
		}
		if r.StartDate == nil || r.Expanded == nil || !*r.Expanded || r.Effort != nil {
			t.Fatalf("task %d = %+v, want a start date, expanded and no effort", r.ID, r)
		}
	}
}

// TestRun_SQLite runs the same load against a real database file.
func TestRun_SQLite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping SQLite load test in short mode")
	}

	ctx := context.Background()
	database, err := db.Open(ctx, db.Options{DSN: filepath.Join(t.TempDir(), "load.db")})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	if err := database.InitSchema(); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}

	report, err := Run(ctx, quietEngine(database), Options{Clients: 5, Rounds: 2})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !report.OK() {
		t.Fatalf("run not OK: errors=%d violations=%v", report.Stats.Errors, report.Violations)
	}

	var buf bytes.Buffer
	report.Stats.PrintStats(&buf)
	t.Log(buf.String())
}

// TestRun_CountsErrors verifies that failed batches are reported.
func TestRun_CountsErrors(t *testing.T) {
	mem := store.NewMemory()
	engine := quietEngine(mem)

	// Let the root through, then fail the first client batch.
	mem.FailOnWrite(2, errors.New("disk full"))
	report, err := Run(context.Background(), engine, Options{Clients: 1, Rounds: 2, Children: 2})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if report.Stats.Errors == 0 {
		t.Error("expected request errors to be counted")
	}
	if report.OK() {
		t.Error("report OK despite errors")
	}
}

// TestVerify_TreeShape verifies that orphaned rows and stray roots are flagged.
func TestVerify_TreeShape(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	engine := quietEngine(mem)

	rootID, err := createRoot(ctx, engine)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mem.InsertTask(ctx, &schema.Task{Name: "orphan", ParentID: schema.Int(999)}); err != nil {
		t.Fatal(err)
	}
	if _, err := mem.InsertTask(ctx, &schema.Task{Name: "stray"}); err != nil {
		t.Fatal(err)
	}

	r := &Report{RootID: rootID, Stats: &LatencyStats{}, Expected: 3}
	if err := r.verify(ctx, engine, nil, nil); err != nil {
		t.Fatalf("verify() failed: %v", err)
	}

	want := []string{
		"task 2 orphaned under missing parent 999",
		"task 3 loaded as an extra root",
	}
	if !slices.Equal(r.Violations, want) {
		t.Errorf("Violations = %q, want %q", r.Violations, want)
	}
}

func TestComputeLatencyStats(t *testing.T) {
	var durations []time.Duration
	for i := 100; i >= 1; i-- {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}

	stats := computeLatencyStats(durations)
	if stats.Min != time.Millisecond || stats.Max != 100*time.Millisecond {
		t.Errorf("min/max = %v/%v", stats.Min, stats.Max)
	}
	if stats.P50 != 51*time.Millisecond {
		t.Errorf("P50 = %v, want 51ms", stats.P50)
	}
	if stats.P95 != 96*time.Millisecond || stats.P99 != 100*time.Millisecond {
		t.Errorf("P95/P99 = %v/%v", stats.P95, stats.P99)
	}
	if stats.Mean != 50500*time.Microsecond {
		t.Errorf("Mean = %v, want 50.5ms", stats.Mean)
	}
	// The input must not be reordered.
	if durations[0] != 100*time.Millisecond {
		t.Error("input slice was sorted in place")
	}

	var buf bytes.Buffer
	stats.PrintStats(&buf)
	if !strings.Contains(buf.String(), "P95:") {
		t.Errorf("PrintStats output = %q", buf.String())
	}

	if empty := computeLatencyStats(nil); empty.TotalRequests != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}
