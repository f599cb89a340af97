package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rcavanagh/sitesentry/internal/config"
	"github.com/rcavanagh/sitesentry/internal/logging"
)

var (
	// Version is set at build time
	Version = "0.2.0"

	// App state
	cfg    *config.Config
	cfgErr error
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "sitesentry",
	Short: "Site management connector with update self-healing",
	Long: `Sitesentry connects a managed site to a remote hub: it reports site
health, executes operator commands, and guards software updates by
snapshotting vitals before a change, verifying them after it settles,
and rolling the change back when the site regresses.`,
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SetVersion sets the version string
func SetVersion(v string) {
	Version = v
	rootCmd.Version = v
}

func init() {
	cobra.OnInitialize(initLogging, initConfig)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().String("config-dir", "", "Config directory (default ~/.sitesentry)")
}

func initLogging() {
	logging.InitDefault()
}

func initConfig() {
	dir, _ := rootCmd.PersistentFlags().GetString("config-dir")
	cfg, cfgErr = config.Load(dir)
	if cfg != nil {
		_ = logging.Init(logging.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	}
}

// requireConfig returns the loaded config or the load error.
func requireConfig() (*config.Config, error) {
	if cfgErr != nil {
		return nil, cfgErr
	}
	return cfg, nil
}
