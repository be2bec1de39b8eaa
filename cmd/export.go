package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/msalah0e/ripple/internal/interact"
	"github.com/msalah0e/ripple/internal/layout"
	"github.com/msalah0e/ripple/internal/render"
	"github.com/msalah0e/ripple/internal/search"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

var exportFormats = []string{"svg", "html", "json", "dot", "yaml"}

func exportCmd() *cobra.Command {
	var (
		format  string
		output  string
		width   float64
		height  float64
		hubMode string
	)

	cmd := &cobra.Command{
		Use:   "export <address>",
		Short: "Export the counterparty graph as SVG, HTML, JSON, DOT or YAML",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			format = strings.ToLower(format)
			if !validFormat(format) {
				fail("  Unknown format %q (use %s)\n", format, strings.Join(exportFormats, ", "))
			}

			res := runSearch(args[0], hubMode, layout.Viewport{Width: width, Height: height})
			data, err := exportBytes(res, format, interact.ZoomFrom(cfg.View))
			if err != nil {
				fail("  Export failed: %v\n", err)
			}

			if output == "" || output == "-" {
				os.Stdout.Write(data)
				return
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				fail("  Failed to write %s: %v\n", output, err)
			}
			st := res.Model.GetStats()
			ui.Good.Printf("  %s Wrote %s (%d nodes, %d links)\n", ui.StatusIcon(true), output, st.Nodes, st.Links)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "svg", "Output format: "+strings.Join(exportFormats, ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().Float64Var(&width, "width", 0, "Viewport width (default from config)")
	cmd.Flags().Float64Var(&height, "height", 0, "Viewport height (default from config)")
	cmd.Flags().StringVar(&hubMode, "hub-mode", "", "Hub handling: append or dedup (default from config)")
	return cmd
}

func validFormat(format string) bool {
	for _, f := range exportFormats {
		if f == format {
			return true
		}
	}
	return false
}

// exportBytes encodes a finished search in format.
func exportBytes(res *search.Result, format string, zoom interact.Zoom) ([]byte, error) {
	switch format {
	case "svg":
		return render.SVG(res.Scene), nil
	case "html":
		return render.HTML(render.StaticPage(res.Address, zoom), res.Scene)
	case "json":
		return res.Model.ExportJSON()
	case "dot":
		return []byte(res.Model.ExportDOT()), nil
	case "yaml":
		return res.Model.ExportYAML()
	}
	return nil, fmt.Errorf("unknown format %q", format)
}
