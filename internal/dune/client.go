// Package dune submits parameterized query executions to the Dune API and
// polls them to completion.
//
// A job moves through Submitting → Polling → Finished or Failed. Only an
// unfinished execution is retried; every transport or status failure ends
// the job immediately.
package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/msalah0e/ripple/internal/config"
	"github.com/msalah0e/ripple/internal/graph"
	"github.com/msalah0e/ripple/internal/logging"
)

// APIKeyHeader is the header Dune reads the API key from.
const APIKeyHeader = "x-dune-api-key"

// maxBodyBytes caps how much of an error body is kept for diagnostics.
const maxBodyBytes = 64 << 10

// State is a job's position in its lifecycle.
type State int

const (
	StateSubmitting State = iota
	StatePolling
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StatePolling:
		return "polling"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Event is delivered to an Observer on every state change and every poll.
type Event struct {
	State       State
	ExecutionID string
	Attempt     int // polls issued so far
	Err         error
}

// Observer receives job events. It runs on the caller's goroutine and must
// not block.
type Observer func(Event)

// Result is a finished execution.
type Result struct {
	ExecutionID string
	Rows        []graph.Row
	Polls       int
	Elapsed     time.Duration
}

// Options configures a Client.
type Options struct {
	BaseURL      string // e.g. https://api.dune.com/api/v1
	QueryID      string
	ParamName    string // query parameter that receives the address
	APIKey       string // empty when routed through the relay
	PollInterval time.Duration
	MaxPolls     int           // 0 = unbounded
	Timeout      time.Duration // 0 = no deadline
}

// Client runs query executions.
type Client struct {
	opts     Options
	http     *http.Client
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver registers a job event observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithSleeper replaces the inter-poll wait.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithClock replaces the time source used for the deadline.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client.
func New(opts Options, options ...Option) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	c := &Client{
		opts:  opts,
		http:  &http.Client{Timeout: 30 * time.Second},
		sleep: sleepContext,
		now:   time.Now,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// NewFromConfig creates a client from the [dune] config section.
func NewFromConfig(cfg config.DuneConfig, apiKey string, options ...Option) *Client {
	c := New(Options{
		BaseURL:      cfg.BaseURL,
		QueryID:      cfg.QueryID,
		ParamName:    cfg.ParamName,
		APIKey:       apiKey,
		PollInterval: cfg.PollInterval.Duration,
		MaxPolls:     cfg.MaxPolls,
		Timeout:      cfg.Timeout.Duration,
	}, options...)
	if cfg.RequestTimeout.Duration > 0 && c.http.Timeout != cfg.RequestTimeout.Duration {
		hc := *c.http
		hc.Timeout = cfg.RequestTimeout.Duration
		c.http = &hc
	}
	return c
}

// Counterparties runs the configured query for address.
func (c *Client) Counterparties(ctx context.Context, address string) (*Result, error) {
	return c.SubmitAndAwait(ctx, map[string]any{c.opts.ParamName: address})
}

// SubmitAndAwait submits an execution with params and polls until it
// finishes, fails, or exceeds its bounds.
func (c *Client) SubmitAndAwait(ctx context.Context, params map[string]any) (*Result, error) {
	log := logging.FromContext(ctx).With("query_id", c.opts.QueryID)
	start := c.now()

	// jobCtx bounds every request and wait by the overall timeout.
	jobCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	overrun := func(err error, id string, attempt int) error {
		if ctx.Err() == nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{ExecutionID: id, Attempts: attempt, Elapsed: c.now().Sub(start)}
		}
		return err
	}

	c.emit(Event{State: StateSubmitting})
	id, err := c.submit(jobCtx, params)
	if err != nil {
		var se *SubmissionError
		if errors.As(err, &se) && se.Status != 0 {
			log.Error("dune submit rejected", "status", se.Status, "body", se.Body)
		}
		return nil, c.fail(Event{}, start, overrun(err, "", 0))
	}
	log = log.With("execution_id", id)
	log.Info("dune execution submitted", "key_present", c.opts.APIKey != "")

	c.emit(Event{State: StatePolling, ExecutionID: id})
	for attempt := 1; ; attempt++ {
		pollsTotal.Inc()
		res, err := c.results(jobCtx, id)
		if err != nil {
			return nil, c.fail(Event{ExecutionID: id, Attempt: attempt}, start, overrun(err, id, attempt))
		}
		c.emit(Event{State: StatePolling, ExecutionID: id, Attempt: attempt})

		if res.IsExecutionFinished {
			rows, err := res.rows(id)
			if err != nil {
				return nil, c.fail(Event{ExecutionID: id, Attempt: attempt}, start, err)
			}
			elapsed := c.now().Sub(start)
			observeJob("finished", elapsed)
			c.emit(Event{State: StateFinished, ExecutionID: id, Attempt: attempt})
			log.Info("dune execution finished", "rows", len(rows), "polls", attempt, "elapsed", elapsed)
			return &Result{ExecutionID: id, Rows: rows, Polls: attempt, Elapsed: elapsed}, nil
		}

		elapsed := c.now().Sub(start)
		if (c.opts.MaxPolls > 0 && attempt >= c.opts.MaxPolls) || (c.opts.Timeout > 0 && elapsed >= c.opts.Timeout) {
			err := &TimeoutError{ExecutionID: id, Attempts: attempt, Elapsed: elapsed}
			return nil, c.fail(Event{ExecutionID: id, Attempt: attempt}, start, err)
		}

		wait := c.opts.PollInterval
		if left := c.opts.Timeout - elapsed; c.opts.Timeout > 0 && left < wait {
			wait = left
		}
		log.Debug("dune execution pending", "state", res.State, "attempt", attempt)
		if err := c.sleep(jobCtx, wait); err != nil {
			return nil, c.fail(Event{ExecutionID: id, Attempt: attempt}, start, overrun(err, id, attempt))
		}
	}
}

func (c *Client) fail(ev Event, start time.Time, err error) error {
	ev.State = StateFailed
	ev.Err = err
	observeJob(resultLabel(err), c.now().Sub(start))
	c.emit(ev)
	return err
}

func (c *Client) emit(ev Event) {
	if c.observer != nil {
		c.observer(ev)
	}
}

// ─── Wire ───

type executeRequest struct {
	QueryParameters map[string]any `json:"query_parameters"`
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
}

type resultsResponse struct {
	ExecutionID         string `json:"execution_id"`
	IsExecutionFinished bool   `json:"is_execution_finished"`
	State               string `json:"state"`
	Result              *struct {
		Rows []rawRow `json:"rows"`
	} `json:"result"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// rawRow uses pointers so missing fields can be told apart from zero values.
type rawRow struct {
	Address              *string  `json:"address"`
	InteractionFrequency *float64 `json:"interaction_frequency"`
}

func (r *resultsResponse) rows(id string) ([]graph.Row, error) {
	if r.Result == nil {
		e := &ExecutionError{ExecutionID: id, State: r.State}
		if r.Error != nil {
			e.Message = r.Error.Message
		}
		return nil, e
	}
	rows := make([]graph.Row, 0, len(r.Result.Rows))
	for i, raw := range r.Result.Rows {
		if raw.Address == nil {
			return nil, &RowError{Index: i, Field: "address"}
		}
		if raw.InteractionFrequency == nil {
			return nil, &RowError{Index: i, Field: "interaction_frequency"}
		}
		rows = append(rows, graph.Row{Address: *raw.Address, InteractionFrequency: *raw.InteractionFrequency})
	}
	return rows, nil
}

func (c *Client) submit(ctx context.Context, params map[string]any) (string, error) {
	body, err := json.Marshal(executeRequest{QueryParameters: params})
	if err != nil {
		return "", &SubmissionError{Err: err}
	}

	endpoint := c.endpoint("query", c.opts.QueryID, "execute")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &SubmissionError{Err: err}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &SubmissionError{Status: resp.StatusCode, Body: readBody(resp.Body)}
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &SubmissionError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.ExecutionID == "" {
		return "", &SubmissionError{Status: resp.StatusCode, Err: ErrMissingExecutionID}
	}
	return out.ExecutionID, nil
}

func (c *Client) results(ctx context.Context, id string) (*resultsResponse, error) {
	endpoint := c.endpoint("execution", id, "results")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &PollError{ExecutionID: id, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &PollError{ExecutionID: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &PollError{ExecutionID: id, Status: resp.StatusCode, Body: readBody(resp.Body)}
	}

	var out resultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &PollError{ExecutionID: id, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}

func (c *Client) endpoint(kind, id, action string) string {
	return strings.TrimRight(c.opts.BaseURL, "/") + "/" + kind + "/" + url.PathEscape(id) + "/" + action
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set(APIKeyHeader, c.opts.APIKey)
	}
}

func readBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	return strings.TrimSpace(string(data))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
