package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/msalah0e/ripple/internal/relay"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

func relayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Credential relay: hold the Dune API key and forward ripple's queries",
	}

	cmd.AddCommand(
		relayStartCmd(),
		relayStopCmd(),
		relayStatusCmd(),
		relayLogsCmd(),
	)

	return cmd
}

// runningRelay returns the PID of a live relay, clearing a stale PID file.
func runningRelay() (int, bool) {
	pid, ok := relay.ReadPid()
	if !ok {
		return 0, false
	}
	if !processAlive(pid) {
		_ = relay.RemovePid()
		return 0, false
	}
	return pid, true
}

func relayStartCmd() *cobra.Command {
	var addr string
	var verbose bool
	var background bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the relay",
		Run: func(cmd *cobra.Command, args []string) {
			// Check if already running
			if pid, running := runningRelay(); running {
				fmt.Fprintf(ui.Out, "  Relay already running (PID %d)\n", pid)
				return
			}
			if addr != "" {
				cfg.Relay.Addr = addr
			}

			if background {
				// Launch in background
				exe, _ := os.Executable()
				child := exec.Command(exe, "relay", "start", "--addr", cfg.Relay.Addr)
				if verbose {
					child.Args = append(child.Args, "--verbose")
				}
				child.Stdout = nil
				child.Stderr = nil
				setDetached(child)

				if err := child.Start(); err != nil {
					fail("  Failed to start relay: %v\n", err)
				}

				ui.Good.Printf("  %s Relay started on %s (PID %d)\n", ui.StatusIcon(true), cfg.Relay.Addr, child.Process.Pid)
				fmt.Fprintln(ui.Out)
				fmt.Fprintln(ui.Out, "  Point ripple at the relay in config.toml:")
				fmt.Fprintf(ui.Out, "    [dune]\n    base_url = %q\n", localURL(cfg.Relay.Addr)+"/api/v1")
				return
			}

			// Foreground mode
			ui.Banner("credential relay")
			rc := relay.ConfigFrom(cfg)
			rc.Verbose = verbose
			if rc.APIKey == "" {
				ui.Warn.Printf("  %s %s is not set; upstream will reject queries\n\n", ui.WarnIcon(), cfg.Dune.APIKeyEnv)
			}

			srv, err := relay.New(rc, logger)
			if err != nil {
				fail("  %v\n", err)
			}
			if err := relay.WritePid(os.Getpid()); err != nil {
				logger.Warn("could not write pid file", "error", err)
			}
			defer relay.RemovePid()

			ctx, cancel := signalContext()
			defer cancel()
			if err := srv.Run(ctx); err != nil {
				_ = relay.RemovePid()
				fail("  Relay error: %v\n", err)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every relayed request")
	cmd.Flags().BoolVarP(&background, "bg", "b", false, "Run in background")
	return cmd
}

func relayStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the relay",
		Run: func(cmd *cobra.Command, args []string) {
			pid, running := runningRelay()
			if !running {
				fmt.Fprintln(ui.Out, "  Relay is not running")
				return
			}

			proc, err := os.FindProcess(pid)
			if err != nil {
				fail("  Failed to find process %d: %v\n", pid, err)
			}

			if err := stopProcess(proc); err != nil {
				fail("  Failed to stop relay: %v\n", err)
			}

			_ = relay.RemovePid()
			ui.Good.Printf("  %s Relay stopped (PID %d)\n", ui.StatusIcon(true), pid)
		},
	}
}

func relayStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check relay status",
		Run: func(cmd *cobra.Command, args []string) {
			pid, running := runningRelay()
			if !running {
				fmt.Fprintln(ui.Out, "  Relay is not running")
				fmt.Fprintln(ui.Out, "  Start: ripple relay start")
				return
			}

			ui.Good.Printf("  %s Relay running (PID %d)\n", ui.StatusIcon(true), pid)
			status, err := fetchRelayStatus(localURL(cfg.Relay.Addr))
			if err != nil {
				ui.Subtle.Printf("  Could not reach %s: %v\n", cfg.Relay.Addr, err)
				return
			}
			ui.KV("upstream", status.Upstream)
			ui.KV("queries", status.Queries)
			ui.KV("api key", ui.StatusIcon(status.KeyPresent))
			ui.KV("uptime", status.Uptime)
		},
	}
}

type relayStatus struct {
	Upstream   string   `json:"upstream"`
	Queries    []string `json:"queries"`
	KeyPresent bool     `json:"key_present"`
	Uptime     string   `json:"uptime"`
}

func fetchRelayStatus(base string) (*relayStatus, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(base + "/relay/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	var st relayStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

func relayLogsCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent relay request logs",
		Run: func(cmd *cobra.Command, args []string) {
			ui.Banner("relay logs")

			logs, err := relay.ReadLogs(cfg.Relay.LogFile, count)
			if err != nil {
				fail("  Failed to read logs: %v\n", err)
			}

			if len(logs) == 0 {
				fmt.Fprintln(ui.Out, "  No relay logs yet.")
				return
			}

			ui.Table([]string{"Time", "Route", "Method", "Path", "Status", "Duration"}, relayLogRows(logs))
			fmt.Fprintf(ui.Out, "\n  %d entries\n", len(logs))
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 50, "Number of log entries to show")
	return cmd
}

func relayLogRows(logs []relay.RequestLog) [][]string {
	rows := make([][]string, 0, len(logs))
	for _, entry := range logs {
		statusIcon := ui.StatusIcon(entry.Status < 400)
		rows = append(rows, []string{
			entry.Timestamp.Format("15:04:05"),
			entry.Route,
			entry.Method,
			truncate(entry.Path, 40),
			fmt.Sprintf("%s %d", statusIcon, entry.Status),
			fmt.Sprintf("%.0fms", entry.Duration),
		})
	}
	return rows
}
