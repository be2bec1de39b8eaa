package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/msalah0e/ripple/internal/history"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var (
		count int
		query string
		clear bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past searches",
		Run: func(cmd *cobra.Command, args []string) {
			log := history.Default()

			if clear {
				if err := log.Clear(); err != nil {
					fail("  Failed to clear history: %v\n", err)
				}
				ui.Good.Printf("  %s History cleared\n", ui.StatusIcon(true))
				return
			}

			var (
				entries []history.Entry
				err     error
			)
			if query != "" {
				entries, err = log.Search(query, count)
			} else {
				entries, err = log.Read(count)
			}
			if err != nil {
				fail("  Failed to read history: %v\n", err)
			}

			ui.Banner("search history")
			if len(entries) == 0 {
				if query != "" {
					fmt.Fprintf(ui.Out, "  No searches matching %q\n", query)
				} else {
					fmt.Fprintln(ui.Out, "  No searches recorded yet.")
					fmt.Fprintln(ui.Out, "  Searches are logged by `ripple search`, `view`, `export` and `serve`")
				}
				return
			}

			ui.Table([]string{"Time", "Address", "Status", "Nodes", "Links", "Duration", "Details"}, historyRows(entries))
			fmt.Fprintf(ui.Out, "\n  Showing %d most recent entries\n", len(entries))
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 20, "Number of entries to show")
	cmd.Flags().StringVar(&query, "search", "", "Only show entries matching this text")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete all history")
	return cmd
}

func historyRows(entries []history.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		durStr := "-"
		if e.Duration > 0 {
			durStr = formatDuration(time.Duration(e.Duration * float64(time.Second)))
		}
		status := ui.StatusIcon(e.Status == history.StatusOK) + " " + e.Status
		if e.Status == history.StatusStale {
			status = ui.WarnIcon() + " " + e.Status
		}
		rows = append(rows, []string{
			e.Timestamp.Format("Jan 02 15:04"),
			truncate(e.Address, 20),
			status,
			strconv.Itoa(e.Nodes),
			strconv.Itoa(e.Links),
			durStr,
			truncate(e.Detail, 30),
		})
	}
	return rows
}
