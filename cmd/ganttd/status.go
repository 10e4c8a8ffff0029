package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ganttd/ganttd/internal/gantt/order"
	"github.com/ganttd/ganttd/internal/gantt/store"
	"github.com/ganttd/ganttd/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "data",
	Short:   "Show the configured store and its task count",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		be, err := openBackend(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer be.Close()

		health := ui.RenderPass("ok")
		if be.Ping != nil {
			if err := be.Ping(ctx); err != nil {
				health = ui.RenderFail(err.Error())
			}
		}

		count, err := be.CountTasks(ctx)
		if err != nil {
			return fmt.Errorf("failed to count tasks: %w", err)
		}
		shape, err := summarizeTree(ctx, be)
		if err != nil {
			return err
		}
		dangling := ui.RenderPass("0")
		if shape.Dangling > 0 {
			dangling = ui.RenderWarn(fmt.Sprintf("%d (parent id matches no task)", shape.Dangling))
		}

		configUsed := v.ConfigFileUsed()
		if configUsed == "" {
			configUsed = ui.RenderMuted("(defaults)")
		}

		fmt.Println(ui.RenderPanel("ganttd", []ui.Field{
			{Key: "Driver", Value: be.Driver},
			{Key: "Location", Value: be.Location},
			{Key: "Health", Value: health},
			{Key: "Tasks", Value: count},
			{Key: "Roots", Value: shape.Roots},
			{Key: "Dangling", Value: dangling},
			{Key: "Listen", Value: cfg.HTTP.Addr},
			{Key: "Seed file", Value: cfg.Seed.File},
			{Key: "Config", Value: configUsed},
		}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type treeShape struct {
	Roots    int
	Dangling int
}

// summarizeTree counts top-level tasks and tasks whose parent is missing.
func summarizeTree(ctx context.Context, st store.Store) (treeShape, error) {
	rows, err := st.ListTasksOrdered(ctx)
	if err != nil {
		return treeShape{}, fmt.Errorf("failed to list tasks: %w", err)
	}
	ix := order.Build(rows)
	return treeShape{Roots: len(ix.Roots()), Dangling: len(ix.Dangling())}, nil
}
