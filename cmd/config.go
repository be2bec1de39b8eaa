package cmd

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/msalah0e/ripple/internal/config"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Run: func(cmd *cobra.Command, args []string) {
				ui.Subtle.Fprintf(ui.Out, "# %s\n", config.Path())
				ui.Subtle.Fprintf(ui.Out, "# %s present: %t\n\n", cfg.Dune.APIKeyEnv, cfg.APIKey() != "")
				if err := toml.NewEncoder(ui.Out).Encode(cfg); err != nil {
					fail("  Failed to encode config: %v\n", err)
				}
			},
		},
		&cobra.Command{
			Use:         "init",
			Short:       "Write the default config file if none exists",
			Annotations: map[string]string{skipConfig: "true"},
			Run: func(cmd *cobra.Command, args []string) {
				if err := config.EnsureExists(); err != nil {
					fail("  Failed to write config: %v\n", err)
				}
				ui.Good.Printf("  %s Config at %s\n", ui.StatusIcon(true), config.Path())
			},
		},
		&cobra.Command{
			Use:         "path",
			Short:       "Print the config file path",
			Annotations: map[string]string{skipConfig: "true"},
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(ui.Out, config.Path())
			},
		},
	)

	return cmd
}
