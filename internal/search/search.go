// Package search runs one address search end to end: query job, graph
// model, layout, and hand-off to a drawing surface.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/msalah0e/ripple/internal/dune"
	"github.com/msalah0e/ripple/internal/graph"
	"github.com/msalah0e/ripple/internal/history"
	"github.com/msalah0e/ripple/internal/interact"
	"github.com/msalah0e/ripple/internal/layout"
	"github.com/msalah0e/ripple/internal/logging"
	"github.com/msalah0e/ripple/internal/render"
)

var (
	// ErrEmptyAddress is returned for a blank search key.
	ErrEmptyAddress = errors.New("search: address is empty")
	// ErrStale is returned when a newer search started before this one
	// finished. Its result is discarded.
	ErrStale = errors.New("search: superseded by a newer search")
)

var searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ripple_searches_total",
	Help: "Searches by result",
}, []string{"result"})

// Jobs fetches counterparty rows for an address.
type Jobs interface {
	Counterparties(ctx context.Context, address string) (*dune.Result, error)
}

// Recorder stores search outcomes.
type Recorder interface {
	Append(history.Entry) error
}

// Surface receives rendered results. Clear is always followed by Render for
// the same result, and both run while no other result can be delivered.
type Surface interface {
	Clear()
	Render(*Result)
}

// Result is a successful search.
type Result struct {
	Generation uint64
	Address    string
	Model      *graph.Model
	Sim        *layout.Simulation
	Scene      *render.Scene
	Job        *dune.Result
}

// Options configures a Searcher.
type Options struct {
	Layout   layout.Config
	HubMode  graph.HubMode
	Settle   int // ticks to run before rendering; 0 leaves the simulation hot
	Surface  Surface
	Recorder Recorder
}

// Searcher serializes result delivery across concurrent searches.
type Searcher struct {
	jobs Jobs
	opts Options

	mu  sync.Mutex
	gen uint64
}

// New creates a searcher. A zero Layout uses the default parameters.
func New(jobs Jobs, opts Options) *Searcher {
	if opts.Layout == (layout.Config{}) {
		opts.Layout = layout.DefaultConfig()
	}
	return &Searcher{jobs: jobs, opts: opts}
}

// Latest returns the generation of the most recent search.
func (s *Searcher) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Searcher) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// Reserve claims the next generation for a search started later with
// SearchAs. Every search reserved earlier becomes stale.
func (s *Searcher) Reserve() uint64 {
	return s.next()
}

// Search runs a search for address. On success the surface, if any, is
// cleared and handed the result. On any failure the surface is untouched.
func (s *Searcher) Search(ctx context.Context, address string, vp layout.Viewport) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		searchesTotal.WithLabelValues("empty").Inc()
		return nil, ErrEmptyAddress
	}
	return s.search(ctx, s.next(), address, vp)
}

// SearchAs is Search under a generation obtained from Reserve.
func (s *Searcher) SearchAs(ctx context.Context, gen uint64, address string, vp layout.Viewport) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		searchesTotal.WithLabelValues("empty").Inc()
		return nil, ErrEmptyAddress
	}
	return s.search(ctx, gen, address, vp)
}

func (s *Searcher) search(ctx context.Context, gen uint64, address string, vp layout.Viewport) (*Result, error) {
	log := logging.FromContext(ctx).With("generation", gen, "address", address)
	ctx = logging.WithLogger(ctx, log)
	start := time.Now()

	res, err := s.run(ctx, gen, address, vp)
	if err == nil {
		err = s.deliver(res)
	}

	entry := history.Entry{
		Address:  address,
		Status:   history.StatusOK,
		Duration: time.Since(start).Seconds(),
	}
	if res != nil {
		entry.ExecutionID = res.Job.ExecutionID
		entry.Rows = len(res.Job.Rows)
		entry.Nodes = len(res.Model.Nodes)
		entry.Links = len(res.Model.Links)
	}

	switch {
	case errors.Is(err, ErrStale):
		log.Info("search superseded, result discarded")
		entry.Status, entry.Detail = history.StatusStale, err.Error()
		searchesTotal.WithLabelValues("stale").Inc()
	case err != nil:
		log.Error("search failed", "error", err)
		entry.Status, entry.Detail = history.StatusError, err.Error()
		searchesTotal.WithLabelValues(failureLabel(err)).Inc()
	default:
		log.Info("search rendered", "nodes", entry.Nodes, "links", entry.Links, "duration", time.Since(start))
		searchesTotal.WithLabelValues("ok").Inc()
	}

	if s.opts.Recorder != nil {
		if rerr := s.opts.Recorder.Append(entry); rerr != nil {
			log.Warn("history append failed", "error", rerr)
		}
	}

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Searcher) run(ctx context.Context, gen uint64, address string, vp layout.Viewport) (*Result, error) {
	job, err := s.jobs.Counterparties(ctx, address)
	if err != nil {
		return nil, err
	}

	m := graph.Build(job.Rows, address, s.opts.HubMode)
	sim, err := layout.Initialize(ctx, m, vp, s.opts.Layout)
	if err != nil {
		return nil, err
	}
	if s.opts.Settle > 0 {
		sim.Settle(s.opts.Settle)
	}

	return &Result{
		Generation: gen,
		Address:    address,
		Model:      m,
		Sim:        sim,
		Scene:      render.NewScene(m, sim, interact.Identity),
		Job:        job,
	}, nil
}

// deliver hands res to the surface if it is still the latest search. The
// staleness check and delivery share one critical section.
func (s *Searcher) deliver(res *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.Generation != s.gen {
		return ErrStale
	}
	if s.opts.Surface != nil {
		s.opts.Surface.Clear()
		s.opts.Surface.Render(res)
	}
	return nil
}

func failureLabel(err error) string {
	var (
		se *dune.SubmissionError
		pe *dune.PollError
	)
	switch {
	case errors.Is(err, dune.ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &se), errors.As(err, &pe):
		return "job_error"
	}
	return "error"
}
