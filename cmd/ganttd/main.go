// Command ganttd serves a Gantt chart task tree to browser clients.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ganttd/ganttd/internal/config"
	"github.com/ganttd/ganttd/internal/logging"
	"github.com/ganttd/ganttd/internal/ui"
)

var (
	configFile string
	envFiles   []string

	v         = config.New()
	cfg       *config.Config
	log       *logrus.Logger
	logCloser io.Closer

	// flagKeys maps each command's flags to config keys. Bindings are made
	// for the running command only, since viper keeps one flag per key.
	flagKeys = map[*cobra.Command]map[string]string{}
)

var rootCmd = &cobra.Command{
	Use:   "ganttd",
	Short: "Gantt chart task sync server",
	Long: `ganttd persists a tree of Gantt chart tasks and reconciles incremental
changes sent by browser clients.

Settings come from ganttd.yaml, a .env file, GANTTD_* environment variables
and flags, with later sources winning.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentPreRunE = loadSettings
	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server:"},
		&cobra.Group{ID: "data", Title: "Data:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (default ./ganttd.yaml if present)")
	flags.StringSliceVar(&envFiles, "env-file", nil, "Env files to load (default .env)")
	flags.String("db-driver", "", "Task store: sqlite, postgres or memory")
	flags.String("db-dsn", "", "Database path or connection URL")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (text or json)")

	registerFlags(rootCmd, map[string]string{
		"db-driver":  "db.driver",
		"db-dsn":     "db.dsn",
		"log-level":  "log.level",
		"log-format": "log.format",
	})
}

// loadSettings binds the running command's flags, then loads the
// environment, the config file and the logger.
func loadSettings(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, flagKeys[rootCmd])
	if cmd != rootCmd {
		bindFlags(cmd, flagKeys[cmd])
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}
	loaded, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	cfg = loaded

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return err
	}
	log, logCloser = logger, closer

	if used := v.ConfigFileUsed(); used != "" {
		log.WithField("file", used).Debug("loaded config file")
	}
	return nil
}

func registerFlags(cmd *cobra.Command, keys map[string]string) {
	flagKeys[cmd] = keys
}

// bindFlags ties flags to config keys. A flag the user did not set leaves
// the key to the config file, environment and defaults.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for name, key := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind --%s to %s: %v", name, key, err))
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}
