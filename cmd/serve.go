package cmd

import (
	"fmt"

	"github.com/msalah0e/ripple/internal/history"
	"github.com/msalah0e/ripple/internal/serve"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live graph server",
		Run: func(cmd *cobra.Command, args []string) {
			if addr != "" {
				cfg.Serve.Addr = addr
			}

			srv, err := serve.New(serve.Deps{
				Config:   cfg,
				Jobs:     newClient(),
				Recorder: history.Default(),
				Logger:   logger,
			})
			if err != nil {
				fail("  %v\n", err)
			}

			ui.Banner("live graph server")
			fmt.Fprintf(ui.Out, "  Open %s in your browser\n", ui.Info.Sprint(localURL(cfg.Serve.Addr)))
			ui.Subtle.Fprintf(ui.Out, "  Queries go to %s\n\n", cfg.Dune.BaseURL)

			ctx, cancel := signalContext()
			defer cancel()
			if err := srv.Run(ctx); err != nil {
				fail("  Server error: %v\n", err)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}
