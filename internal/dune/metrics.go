package dune

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// jobsTotal counts jobs by outcome
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_dune_jobs_total",
		Help: "Dune query jobs by result",
	}, []string{"result"})

	// pollsTotal counts results requests
	pollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripple_dune_polls_total",
		Help: "Dune results requests issued",
	})

	// jobDuration tracks submit-to-outcome latency
	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ripple_dune_job_duration_seconds",
		Help:    "Dune job duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
	})
)

func observeJob(result string, elapsed time.Duration) {
	jobsTotal.WithLabelValues(result).Inc()
	jobDuration.Observe(elapsed.Seconds())
}

func resultLabel(err error) string {
	var (
		se *SubmissionError
		pe *PollError
		re *RowError
		ee *ExecutionError
	)
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &se):
		return "submit_error"
	case errors.As(err, &pe):
		return "poll_error"
	case errors.As(err, &re):
		return "row_error"
	case errors.As(err, &ee):
		return "execution_error"
	}
	return "error"
}
