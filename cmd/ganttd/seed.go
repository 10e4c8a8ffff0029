package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ganttd/ganttd/internal/gantt/seed"
	"github.com/ganttd/ganttd/internal/ui"
)

var seedCmd = &cobra.Command{
	Use:     "seed",
	GroupID: "data",
	Short:   "Replace every task with the contents of a seed file",
	Long: `Replace the task table with the tasks in a JSON or YAML seed file.

Tasks that carry an id keep it. Tasks without one are numbered after the
highest seeded id. The file is parsed before anything is deleted, so a
malformed file leaves the store as it was.

Examples:
  ganttd seed
  ganttd seed --file example-data/tasks.json --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		be, err := openBackend(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer be.Close()

		if !yes && term.IsTerminal(int(os.Stdin.Fd())) {
			ok, err := confirmSeed(be.Location)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println(ui.RenderWarn("Seeding cancelled"))
				return nil
			}
		}

		start := time.Now()
		n, err := seed.Run(ctx, be, cfg.Seed.File)
		if err != nil {
			return err
		}
		log.WithField("tasks", n).WithField("file", cfg.Seed.File).Debug("seeded store")

		fmt.Printf("%s Seeded %d tasks from %s in %v\n",
			ui.RenderPass("✓"), n, ui.RenderBold(cfg.Seed.File), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringP("file", "f", "", "Seed file (default example-data/tasks.json)")
	seedCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	registerFlags(seedCmd, map[string]string{"file": "seed.file"})
	rootCmd.AddCommand(seedCmd)
}

func confirmSeed(location string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title("Replace every task in " + location + "?").
		Description("Existing tasks are deleted before " + cfg.Seed.File + " is loaded.").
		Affirmative("Replace").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil {
		return false, fmt.Errorf("confirmation failed: %w", err)
	}
	return ok, nil
}
