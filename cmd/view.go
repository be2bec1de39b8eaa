package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/msalah0e/ripple/internal/interact"
	"github.com/msalah0e/ripple/internal/layout"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

func viewCmd() *cobra.Command {
	var (
		output  string
		hubMode string
	)

	cmd := &cobra.Command{
		Use:   "view <address>",
		Short: "Open the counterparty graph in a browser",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			res := runSearch(args[0], hubMode, layout.Viewport{})

			data, err := exportBytes(res, "html", interact.ZoomFrom(cfg.View))
			if err != nil {
				fail("  Failed to render HTML: %v\n", err)
			}

			htmlPath := output
			if htmlPath == "" {
				htmlPath = filepath.Join(os.TempDir(), "ripple-graph.html")
			}
			if err := os.WriteFile(htmlPath, data, 0o644); err != nil {
				fail("  Failed to write HTML: %v\n", err)
			}

			st := res.Model.GetStats()
			if err := openBrowser(htmlPath); err != nil {
				// Fallback: just print the path
				fmt.Fprintf(ui.Out, "  HTML written to: %s\n", htmlPath)
				fmt.Fprintln(ui.Out, "  Open it in your browser to see the graph")
				return
			}

			ui.Good.Printf("  %s Opened graph for %s (%d counterparties, %d links)\n",
				ui.StatusIcon(true), res.Address, st.Counterparties, st.Links)
			ui.Subtle.Printf("  %s\n", htmlPath)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the HTML (default a temp file)")
	cmd.Flags().StringVar(&hubMode, "hub-mode", "", "Hub handling: append or dedup (default from config)")
	return cmd
}
