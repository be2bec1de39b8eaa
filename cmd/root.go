package cmd

import (
	"log/slog"
	"os"

	"github.com/msalah0e/ripple/internal/config"
	"github.com/msalah0e/ripple/internal/logging"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

var version = "0.3.0"

var (
	cfg      *config.Config
	logger   *slog.Logger
	logLevel string
)

// skipConfig marks commands that must run even when the config file is
// broken.
const skipConfig = "skip-config"

var rootCmd = &cobra.Command{
	Use:   "ripple",
	Short: "ripple: counterparty graphs for on-chain addresses",
	Long: ui.Brand.Sprint(ui.Wave+" ripple") + ": see who an address interacts with\n" +
		ui.Subtle.Sprint("Query counterparties through Dune and lay them out as a force graph"),
	Version: version + " " + ui.Wave,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loaded, err := config.Load()
		if err != nil {
			if cmd.Annotations[skipConfig] == "" {
				ui.Bad.Printf("ripple: %v\n", err)
				os.Exit(1)
			}
			loaded = config.Default()
		}
		cfg = loaded
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logger = logging.New(cfg.Log, os.Stderr)
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.SetVersionTemplate("ripple {{ .Version }}\n")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		searchCmd(),
		exportCmd(),
		viewCmd(),
		serveCmd(),
		relayCmd(),
		historyCmd(),
		configCmd(),
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
