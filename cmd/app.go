package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/msalah0e/ripple/internal/dune"
	"github.com/msalah0e/ripple/internal/graph"
	"github.com/msalah0e/ripple/internal/history"
	"github.com/msalah0e/ripple/internal/layout"
	"github.com/msalah0e/ripple/internal/logging"
	"github.com/msalah0e/ripple/internal/search"
	"github.com/msalah0e/ripple/internal/ui"
)

func fail(format string, args ...any) {
	ui.Bad.Printf(format, args...)
	os.Exit(1)
}

// signalContext is canceled on Ctrl-C or SIGTERM and carries the logger.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return logging.WithLogger(ctx, logger), cancel
}

func newClient() *dune.Client {
	if cfg.APIKey() == "" {
		logger.Debug("no API key in environment, expecting a relay", "base_url", cfg.Dune.BaseURL, "key_present", false)
	}
	return dune.NewFromConfig(cfg.Dune, cfg.APIKey(), dune.WithObserver(func(ev dune.Event) {
		logger.Debug("job", "state", ev.State.String(), "execution_id", ev.ExecutionID, "attempt", ev.Attempt)
	}))
}

func resolveHubMode(flag string) graph.HubMode {
	name := cfg.Graph.HubMode
	if flag != "" {
		name = flag
	}
	mode, err := graph.ParseHubMode(name)
	if err != nil {
		fail("  %v\n", err)
	}
	return mode
}

func fallbackViewport() layout.Viewport {
	return layout.Viewport{Width: cfg.Layout.Width, Height: cfg.Layout.Height}
}

// runSearch queries address and settles its layout, exiting on failure.
func runSearch(address, hubFlag string, vp layout.Viewport) *search.Result {
	ctx, cancel := signalContext()
	defer cancel()

	if vp.Width <= 0 || vp.Height <= 0 {
		vp = fallbackViewport()
	}

	s := search.New(newClient(), search.Options{
		Layout:   layout.ConfigFrom(cfg.Layout),
		HubMode:  resolveHubMode(hubFlag),
		Settle:   cfg.Layout.MaxTicks,
		Recorder: history.Default(),
	})

	res, err := s.Search(ctx, address, vp)
	if err != nil {
		fail("  %s\n", describeSearchError(err))
	}
	return res
}

// describeSearchError turns a search failure into one line for the terminal.
func describeSearchError(err error) string {
	var (
		se *dune.SubmissionError
		ee *dune.ExecutionError
	)
	switch {
	case errors.Is(err, search.ErrEmptyAddress):
		return "Please enter a valid Ethereum address."
	case errors.Is(err, dune.ErrTimeout):
		return fmt.Sprintf("Query timed out: %v", err)
	case errors.Is(err, context.Canceled):
		return "Search canceled"
	case errors.As(err, &se) && (se.Status == 401 || se.Status == 403):
		return fmt.Sprintf("Query rejected (HTTP %d). Set %s or point dune.base_url at a relay.", se.Status, cfg.Dune.APIKeyEnv)
	case errors.As(err, &ee):
		return fmt.Sprintf("Query execution %s ended in %s", ee.ExecutionID, ee.State)
	}
	return fmt.Sprintf("Search failed: %v", err)
}

func openBrowser(path string) error {
	var openCmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		openCmd = exec.Command("open", path)
	case "linux":
		openCmd = exec.Command("xdg-open", path)
	default:
		// Windows or other
		openCmd = exec.Command("cmd", "/c", "start", path)
	}
	return openCmd.Start()
}

// localURL turns a listen address like ":4779" into a browsable URL.
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
