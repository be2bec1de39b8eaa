package dune

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/msalah0e/ripple/internal/config"
	"github.com/msalah0e/ripple/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noSleep skips the inter-poll wait but still honors cancellation.
func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

type fakeDune struct {
	t          *testing.T
	pending    int // unfinished responses before the finished one
	finished   string
	submitCode int
	pollCode   int

	polls     atomic.Int32
	lastKey   atomic.Value
	lastQuery atomic.Value
}

func (f *fakeDune) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lastKey.Store(r.Header.Get(APIKeyHeader))
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/query/4617489/execute":
		var body map[string]any
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.lastQuery.Store(body)
		if f.submitCode != 0 {
			w.WriteHeader(f.submitCode)
			fmt.Fprint(w, `{"error":"invalid API Key"}`)
			return
		}
		fmt.Fprint(w, `{"execution_id":"01HEXEC","state":"QUERY_STATE_PENDING"}`)

	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/execution/01HEXEC/results":
		n := int(f.polls.Add(1))
		if f.pollCode != 0 {
			w.WriteHeader(f.pollCode)
			fmt.Fprint(w, `{"error":"boom"}`)
			return
		}
		if n <= f.pending {
			fmt.Fprint(w, `{"execution_id":"01HEXEC","is_execution_finished":false,"state":"QUERY_STATE_EXECUTING"}`)
			return
		}
		fmt.Fprint(w, f.finished)

	default:
		http.NotFound(w, r)
	}
}

const finishedTwoRows = `{
  "execution_id": "01HEXEC",
  "is_execution_finished": true,
  "state": "QUERY_STATE_COMPLETED",
  "result": {"rows": [
    {"address": "0xB", "interaction_frequency": 3},
    {"address": "0xC", "interaction_frequency": 1}
  ]}
}`

func newTestClient(t *testing.T, f *fakeDune, key string, opts ...Option) (*Client, *[]Event) {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	var events []Event
	opts = append([]Option{
		WithHTTPClient(srv.Client()),
		WithSleeper(noSleep),
		WithObserver(func(ev Event) { events = append(events, ev) }),
	}, opts...)

	c := New(Options{
		BaseURL:      srv.URL + "/api/v1",
		QueryID:      "4617489",
		ParamName:    "eth_address",
		APIKey:       key,
		PollInterval: time.Millisecond,
		MaxPolls:     10,
	}, opts...)
	return c, &events
}

func TestSubmitAndAwaitFinishesAfterPending(t *testing.T) {
	f := &fakeDune{pending: 2, finished: finishedTwoRows}
	var waits int
	sleeper := func(ctx context.Context, d time.Duration) error {
		waits++
		return noSleep(ctx, d)
	}
	c, events := newTestClient(t, f, "k", WithSleeper(sleeper))

	res, err := c.Counterparties(context.Background(), "0xA")
	require.NoError(t, err)

	assert.Equal(t, "01HEXEC", res.ExecutionID)
	assert.Equal(t, 3, res.Polls)
	assert.Equal(t, 2, waits, "one wait between each pair of polls")
	assert.Equal(t, []graph.Row{
		{Address: "0xB", InteractionFrequency: 3},
		{Address: "0xC", InteractionFrequency: 1},
	}, res.Rows)

	first, last := (*events)[0], (*events)[len(*events)-1]
	assert.Equal(t, StateSubmitting, first.State)
	assert.Equal(t, StateFinished, last.State)
	assert.Equal(t, 3, last.Attempt)
}

func TestSubmitRequestShape(t *testing.T) {
	f := &fakeDune{finished: finishedTwoRows}
	c, _ := newTestClient(t, f, "secret-key")

	_, err := c.Counterparties(context.Background(), "0xA")
	require.NoError(t, err)

	assert.Equal(t, "secret-key", f.lastKey.Load())
	assert.Equal(t, map[string]any{
		"query_parameters": map[string]any{"eth_address": "0xA"},
	}, f.lastQuery.Load())
}

func TestNoKeyOmitsHeader(t *testing.T) {
	f := &fakeDune{finished: finishedTwoRows}
	c, _ := newTestClient(t, f, "")

	_, err := c.Counterparties(context.Background(), "0xA")
	require.NoError(t, err)
	assert.Equal(t, "", f.lastKey.Load())
}

func TestSubmitRejected(t *testing.T) {
	f := &fakeDune{submitCode: http.StatusUnauthorized}
	c, events := newTestClient(t, f, "bad")

	_, err := c.Counterparties(context.Background(), "0xA")

	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Contains(t, se.Body, "invalid API Key")
	assert.Zero(t, f.polls.Load(), "no poll after a failed submit")

	last := (*events)[len(*events)-1]
	assert.Equal(t, StateFailed, last.State)
}

func TestPollErrorIsNotRetried(t *testing.T) {
	f := &fakeDune{pollCode: http.StatusInternalServerError}
	c, _ := newTestClient(t, f, "k")

	_, err := c.Counterparties(context.Background(), "0xA")

	var pe *PollError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "01HEXEC", pe.ExecutionID)
	assert.Equal(t, http.StatusInternalServerError, pe.Status)
	assert.EqualValues(t, 1, f.polls.Load())
}

func TestMaxPollsBound(t *testing.T) {
	f := &fakeDune{pending: 1000}
	c, _ := newTestClient(t, f, "k")

	_, err := c.Counterparties(context.Background(), "0xA")

	require.ErrorIs(t, err, ErrTimeout)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 10, te.Attempts)
	assert.EqualValues(t, 10, f.polls.Load())
}

func TestTimeoutBound(t *testing.T) {
	f := &fakeDune{pending: 1000}

	now := time.Unix(0, 0)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	c, _ := newTestClient(t, f, "k", WithClock(clock))
	c.opts.MaxPolls = 0
	c.opts.Timeout = 5 * time.Second

	_, err := c.Counterparties(context.Background(), "0xA")
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, f.polls.Load(), int32(10))
}

func TestWaitCappedAtDeadline(t *testing.T) {
	f := &fakeDune{pending: 1000}

	now := time.Unix(0, 0)
	var waits []time.Duration
	sleeper := func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		now = now.Add(d)
		return ctx.Err()
	}
	c, _ := newTestClient(t, f, "k", WithSleeper(sleeper), WithClock(func() time.Time { return now }))
	c.opts.MaxPolls = 0
	c.opts.PollInterval = 10 * time.Second
	c.opts.Timeout = 3 * time.Second

	_, err := c.Counterparties(context.Background(), "0xA")
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []time.Duration{3 * time.Second}, waits)
	assert.EqualValues(t, 2, f.polls.Load())
}

func TestTimeoutBoundsHungRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"execution_id":"01HEXEC"}`)
			return
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(Options{
		BaseURL:   srv.URL,
		QueryID:   "1",
		ParamName: "p",
		Timeout:   50 * time.Millisecond,
	}, WithHTTPClient(srv.Client()))

	start := time.Now()
	_, err := c.Counterparties(context.Background(), "0xA")
	require.ErrorIs(t, err, ErrTimeout)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "01HEXEC", te.ExecutionID)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCanceledContext(t *testing.T) {
	f := &fakeDune{pending: 1000}
	ctx, cancel := context.WithCancel(context.Background())

	sleeper := func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	c, _ := newTestClient(t, f, "k", WithSleeper(sleeper))

	_, err := c.Counterparties(ctx, "0xA")
	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, f.polls.Load())
}

func TestMissingExecutionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"state":"QUERY_STATE_PENDING"}`)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, QueryID: "1", ParamName: "p"}, WithHTTPClient(srv.Client()))
	_, err := c.Counterparties(context.Background(), "0xA")
	require.ErrorIs(t, err, ErrMissingExecutionID)
}

func TestRowMissingField(t *testing.T) {
	tests := []struct {
		name  string
		rows  string
		field string
		index int
	}{
		{"no address", `[{"interaction_frequency": 1}]`, "address", 0},
		{"no frequency", `[{"address": "0xB", "interaction_frequency": 1}, {"address": "0xC"}]`, "interaction_frequency", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeDune{finished: `{"is_execution_finished": true, "result": {"rows": ` + tt.rows + `}}`}
			c, _ := newTestClient(t, f, "k")

			_, err := c.Counterparties(context.Background(), "0xA")

			var re *RowError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.field, re.Field)
			assert.Equal(t, tt.index, re.Index)
		})
	}
}

func TestEmptyRowsIsSuccess(t *testing.T) {
	f := &fakeDune{finished: `{"is_execution_finished": true, "result": {"rows": []}}`}
	c, _ := newTestClient(t, f, "k")

	res, err := c.Counterparties(context.Background(), "0xA")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestFinishedWithoutResult(t *testing.T) {
	f := &fakeDune{finished: `{"is_execution_finished": true, "state": "QUERY_STATE_FAILED", "error": {"type": "FAILED_TYPE_EXECUTION_FAILED", "message": "line 1: syntax error"}}`}
	c, _ := newTestClient(t, f, "k")

	_, err := c.Counterparties(context.Background(), "0xA")

	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "QUERY_STATE_FAILED", ee.State)
	assert.Contains(t, ee.Error(), "syntax error")
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default().Dune
	c := NewFromConfig(cfg, "")

	assert.Equal(t, cfg.PollInterval.Duration, c.opts.PollInterval)
	assert.Equal(t, cfg.MaxPolls, c.opts.MaxPolls)
	assert.Equal(t, cfg.RequestTimeout.Duration, c.http.Timeout)
	assert.Equal(t, "https://api.dune.com/api/v1/query/4617489/execute", c.endpoint("query", cfg.QueryID, "execute"))
}

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&TimeoutError{}, "timeout"},
		{&SubmissionError{Status: 401}, "submit_error"},
		{&PollError{Status: 500}, "poll_error"},
		{&SubmissionError{Err: context.Canceled}, "canceled"},
		{&RowError{}, "row_error"},
		{&ExecutionError{}, "execution_error"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resultLabel(tt.err), "%T", tt.err)
	}
}
