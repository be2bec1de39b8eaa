package cmd

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/msalah0e/ripple/internal/graph"
	"github.com/msalah0e/ripple/internal/layout"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var (
		asJSON  bool
		tree    bool
		hubMode string
	)

	cmd := &cobra.Command{
		Use:   "search <address>",
		Short: "List the counterparties of an address",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			res := runSearch(args[0], hubMode, layout.Viewport{})

			if asJSON {
				data, err := res.Model.ExportJSON()
				if err != nil {
					fail("  Failed to encode: %v\n", err)
				}
				fmt.Fprintln(ui.Out, string(data))
				return
			}

			ui.Banner("counterparties")
			ui.KV("address", res.Address)
			ui.KV("execution", res.Job.ExecutionID)
			ui.KV("elapsed", formatDuration(res.Job.Elapsed))
			fmt.Fprintln(ui.Out)

			st := res.Model.GetStats()
			if len(res.Model.Links) == 0 {
				fmt.Fprintln(ui.Out, "  No counterparties found.")
				return
			}

			if tree {
				fmt.Fprint(ui.Out, graph.RenderTree(res.Model, paint(ui.Brand), paint(ui.Subtle), paint(ui.Info)))
			} else {
				ui.Table([]string{"#", "Counterparty", "Interactions", "Width"}, counterpartyRows(res.Model))
			}
			fmt.Fprintf(ui.Out, "\n  %d counterparties, %d links, %s interactions\n",
				st.Counterparties, st.Links, formatValue(st.TotalFrequency))
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the graph model as JSON")
	cmd.Flags().BoolVar(&tree, "tree", false, "Print a tree instead of a table")
	cmd.Flags().StringVar(&hubMode, "hub-mode", "", "Hub handling: append or dedup (default from config)")
	return cmd
}

// counterpartyRows lists one table row per link, in row order.
func counterpartyRows(m *graph.Model) [][]string {
	rows := make([][]string, 0, len(m.Links))
	for i, l := range m.Links {
		name := l.Source
		if l.Source == m.Hub {
			name += " (hub)"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			name,
			formatValue(l.Value),
			fmt.Sprintf("%.2f", graph.StrokeWidth(l.Value)),
		})
	}
	return rows
}

func paint(c *color.Color) func(string) string {
	return func(s string) string { return c.Sprint(s) }
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
