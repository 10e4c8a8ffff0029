package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ganttd/ganttd/internal/gantt/feed"
	"github.com/ganttd/ganttd/internal/gantt/metrics"
	"github.com/ganttd/ganttd/internal/gantt/seed"
	"github.com/ganttd/ganttd/internal/gantt/server"
	gsync "github.com/ganttd/ganttd/internal/gantt/sync"
	"github.com/ganttd/ganttd/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Run the HTTP sync server",
	Long: `Run the HTTP server that backs the Gantt chart client.

Endpoints:
  GET  /api/load    full task list in canonical order
  POST /api/sync    apply a batch of added, updated and removed tasks
  GET  /api/feed    WebSocket stream of committed changes
  GET  /health      store health
  GET  /metrics     Prometheus metrics

With --watch, the seed file is reloaded into the store every time it
changes on disk and connected clients are told to reload.

Examples:
  ganttd serve
  ganttd serve --addr :8080 --db-driver memory --seed-file tasks.json --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default :1337)")
	serveCmd.Flags().StringSlice("allowed-origin", nil, "Browser origins allowed to call the API")
	serveCmd.Flags().String("seed-file", "", "Seed file used by --watch")
	serveCmd.Flags().Bool("watch", false, "Reseed whenever the seed file changes")
	registerFlags(serveCmd, map[string]string{
		"addr":           "http.addr",
		"allowed-origin": "http.allowed_origins",
		"seed-file":      "seed.file",
		"watch":          "seed.watch",
	})
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	be, err := openBackend(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer be.Close()

	m := metrics.New()
	hub := feed.NewHub(feed.Config{
		OriginPatterns: originPatterns(cfg.HTTP.AllowedOrigins),
		Logger:         log,
		Observer:       m,
	})

	engine := gsync.New(be, gsync.Config{
		Logger:   log,
		Notifier: hub,
		Observer: m,
	})

	srv := server.New(engine, server.Config{
		Addr:            cfg.HTTP.Addr,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Logger:          log,
		Metrics:         m,
		Feed:            hub,
		Health:          be.Ping,
	})

	// Cancelled on return so a listen failure also stops the hub and watcher.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	if cfg.Seed.Watch {
		w, err := seed.NewWatcher(seed.WatcherConfig{
			Path:     cfg.Seed.File,
			Target:   be,
			Notifier: hub,
			Logger:   log,
		})
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				log.WithError(err).Error("seed watcher stopped")
			}
		}()
	}

	fmt.Printf("%s ganttd listening on %s (%s: %s)\n",
		ui.RenderAccent("▶"), ui.RenderBold(cfg.HTTP.Addr), be.Driver, ui.RenderMuted(be.Location))

	err = srv.Run(ctx)
	cancel()
	wg.Wait()
	if err != nil {
		return err
	}
	fmt.Printf("%s ganttd stopped\n", ui.RenderMuted("■"))
	return nil
}

// originPatterns turns allowed origins into the host patterns the WebSocket
// handshake checks.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			log.WithField("origin", o).Warn("ignoring malformed allowed origin for the feed")
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
