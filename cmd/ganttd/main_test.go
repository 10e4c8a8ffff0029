package main

import (
	"context"
	"io"
	"slices"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/ganttd/ganttd/internal/config"
	"github.com/ganttd/ganttd/internal/gantt/schema"
	"github.com/ganttd/ganttd/internal/gantt/store"
)

func init() {
	log = logrus.New()
	log.SetOutput(io.Discard)
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"http://localhost:5173", "https://gantt.example.com", "*", "::bad"})
	want := []string{"localhost:5173", "gantt.example.com", "*"}
	if !slices.Equal(got, want) {
		t.Errorf("originPatterns() = %v, want %v", got, want)
	}
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  config.DBConfig
		ping bool
	}{
		{"memory", config.DBConfig{Driver: config.DriverMemory}, false},
		{"sqlite", config.DBConfig{Driver: config.DriverSQLite, DSN: t.TempDir() + "/gantt.db"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be, err := openBackend(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("openBackend() failed: %v", err)
			}
			defer be.Close()

			if (be.Ping != nil) != tt.ping {
				t.Errorf("Ping set = %v, want %v", be.Ping != nil, tt.ping)
			}
			if _, err := be.InsertTask(ctx, &schema.Task{Name: "a"}); err != nil {
				t.Fatalf("InsertTask() failed: %v", err)
			}
			if n, err := be.CountTasks(ctx); err != nil || n != 1 {
				t.Errorf("CountTasks() = %d, %v", n, err)
			}
		})
	}
}

func TestCommandFlagsBindToConfig(t *testing.T) {
	old := v
	t.Cleanup(func() { v = old })
	v = config.New()

	if err := seedCmd.Flags().Set("file", "other.yaml"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = seedCmd.Flags().Set("file", "") })

	bindFlags(seedCmd, flagKeys[seedCmd])
	if got := v.GetString("seed.file"); got != "other.yaml" {
		t.Errorf("seed.file = %q, want other.yaml", got)
	}

	// serve's unset --seed-file must not shadow the default.
	v = config.New()
	bindFlags(serveCmd, flagKeys[serveCmd])
	if got := v.GetString("seed.file"); got != "example-data/tasks.json" {
		t.Errorf("seed.file = %q, want the default", got)
	}
}

func TestExecuteLoadsSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"status", "--db-driver", "memory", "--log-level", "error"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if cfg == nil || cfg.DB.Driver != config.DriverMemory {
		t.Fatalf("cfg = %+v, want the memory driver from --db-driver", cfg)
	}
	if log == nil || log.GetLevel() != logrus.ErrorLevel {
		t.Errorf("logger level not taken from --log-level")
	}
}

func TestSummarizeTree(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	for _, task := range []*schema.Task{
		{Name: "root"},
		{Name: "child", ParentID: schema.Int(1)},
		{Name: "lost", ParentID: schema.Int(42)},
		{Name: "second root"},
	} {
		if _, err := mem.InsertTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	got, err := summarizeTree(ctx, mem)
	if err != nil {
		t.Fatalf("summarizeTree() failed: %v", err)
	}
	if got != (treeShape{Roots: 2, Dangling: 1}) {
		t.Errorf("summarizeTree() = %+v, want 2 roots and 1 dangling", got)
	}
}
