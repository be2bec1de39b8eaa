// Package relay is the credential-holding intermediary between ripple
// clients and the Dune API. Clients never see the API key: the relay drops
// any key a client sends and attaches its own.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/msalah0e/ripple/internal/config"
	"github.com/msalah0e/ripple/internal/dune"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ripple_relay_requests_total",
	Help: "Relay requests by route and status",
}, []string{"route", "status"})

// Route names.
const (
	RouteExecute   = "execute"
	RouteResults   = "results"
	RouteForbidden = "forbidden"
)

var (
	executePath = regexp.MustCompile(`^/api/v1/query/([0-9]+)/execute$`)
	resultsPath = regexp.MustCompile(`^/api/v1/execution/([A-Za-z0-9_-]+)/results$`)
)

// Config holds relay configuration.
type Config struct {
	Addr     string
	Upstream string   // Dune origin, e.g. https://api.dune.com
	Queries  []string // query ids clients may execute
	APIKey   string
	Rate     float64 // upstream requests per second
	Burst    int
	LogFile  string
	Verbose  bool
}

// ConfigFrom builds a relay config from the loaded settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Addr:     cfg.Relay.Addr,
		Upstream: cfg.Relay.Upstream,
		Queries:  cfg.AllowedQueries(),
		APIKey:   cfg.APIKey(),
		Rate:     cfg.Relay.Rate,
		Burst:    cfg.Relay.Burst,
		LogFile:  cfg.Relay.LogFile,
	}
}

// RequestLog represents a relayed request.
type RequestLog struct {
	Timestamp time.Time `json:"ts"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Route     string    `json:"route"`
	Status    int       `json:"status"`
	Duration  float64   `json:"duration_ms"`
}

// Stats tracks relay counters.
type Stats struct {
	TotalRequests int64            `json:"total_requests"`
	Forwarded     int64            `json:"forwarded"`
	Rejected      int64            `json:"rejected"`
	RateLimited   int64            `json:"rate_limited"`
	StartedAt     time.Time        `json:"started_at"`
	ByRoute       map[string]int64 `json:"by_route"`
}

// Server is the relay.
type Server struct {
	cfg     Config
	log     *slog.Logger
	proxy   *httputil.ReverseProxy
	limiter *rate.Limiter
	allowed map[string]bool
	logMu   sync.Mutex
	logFile *os.File
	mu      sync.Mutex
	stats   Stats
}

// New creates a relay. It does not open the request log; call Open.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("relay: invalid upstream %q", cfg.Upstream)
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		log:     logger.With("component", "relay"),
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		allowed: make(map[string]bool, len(cfg.Queries)),
		stats: Stats{
			StartedAt: time.Now(),
			ByRoute:   make(map[string]int64),
		},
	}
	for _, q := range cfg.Queries {
		s.allowed[q] = true
	}

	key := cfg.APIKey
	s.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.Out.Header.Del(dune.APIKeyHeader)
			if key != "" {
				pr.Out.Header.Set(dune.APIKeyHeader, key)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.log.Error("upstream request failed", "path", r.URL.Path, "error", err)
			http.Error(w, "relay: upstream unavailable", http.StatusBadGateway)
		},
	}
	return s, nil
}

// DefaultLogPath returns the standard request log location.
func DefaultLogPath() string {
	return filepath.Join(config.ConfigDir(), "relay.jsonl")
}

func (s *Server) logPath() string {
	if s.cfg.LogFile != "" {
		return s.cfg.LogFile
	}
	return DefaultLogPath()
}

// Open opens the request log for appending.
func (s *Server) Open() error {
	path := s.logPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	s.logMu.Lock()
	s.logFile = f
	s.logMu.Unlock()
	return nil
}

// Close closes the request log.
func (s *Server) Close() error {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if s.logFile == nil {
		return nil
	}
	err := s.logFile.Close()
	s.logFile = nil
	return err
}

// Handler returns the relay's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	mux.HandleFunc("/relay/status", s.handleStatus)
	mux.HandleFunc("/relay/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Open(); err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.log.Info("relay listening",
		"addr", s.cfg.Addr,
		"upstream", s.cfg.Upstream,
		"queries", s.cfg.Queries,
		"key_present", s.cfg.APIKey != "")
	if s.cfg.APIKey == "" {
		s.log.Warn("no API key configured, upstream will reject requests")
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// classify returns the route name for an allowed request, or "" when the
// request must be refused.
func (s *Server) classify(r *http.Request) string {
	if m := executePath.FindStringSubmatch(r.URL.Path); m != nil {
		if r.Method == http.MethodPost && s.allowed[m[1]] {
			return RouteExecute
		}
		return ""
	}
	if resultsPath.MatchString(r.URL.Path) && r.Method == http.MethodGet {
		return RouteResults
	}
	return ""
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	route := s.classify(r)
	rec := &statusRecorder{ResponseWriter: w}

	switch {
	case route == "":
		route = RouteForbidden
		http.Error(rec, "relay: request not permitted", http.StatusForbidden)
		s.count(func(st *Stats) { st.Rejected++ })

	default:
		if err := s.limiter.Wait(r.Context()); err != nil {
			http.Error(rec, "relay: rate limited", http.StatusTooManyRequests)
			s.count(func(st *Stats) { st.RateLimited++ })
			break
		}
		s.proxy.ServeHTTP(rec, r)
		s.count(func(st *Stats) { st.Forwarded++ })
	}

	status := rec.status()
	elapsed := time.Since(start)
	requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	s.count(func(st *Stats) {
		st.TotalRequests++
		st.ByRoute[route]++
	})

	entry := RequestLog{
		Timestamp: start,
		Method:    r.Method,
		Path:      r.URL.Path,
		Route:     route,
		Status:    status,
		Duration:  float64(elapsed.Milliseconds()),
	}
	s.writeLog(entry)

	if s.cfg.Verbose {
		s.log.Info("relayed", "route", route, "method", r.Method, "path", r.URL.Path, "status", status, "duration", elapsed)
	}
}

func (s *Server) count(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (s *Server) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.ByRoute = make(map[string]int64, len(s.stats.ByRoute))
	for k, v := range s.stats.ByRoute {
		st.ByRoute[k] = v
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "running",
		"addr":        s.cfg.Addr,
		"upstream":    s.cfg.Upstream,
		"queries":     s.cfg.Queries,
		"key_present": s.cfg.APIKey != "",
		"uptime":      time.Since(s.stats.StartedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Snapshot())
}

func (s *Server) writeLog(entry RequestLog) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if s.logFile == nil {
		return
	}
	_ = json.NewEncoder(s.logFile).Encode(entry)
}

// ReadLogs returns the most recent n entries of the log at path, oldest
// first. An empty path means DefaultLogPath.
func ReadLogs(path string, n int) ([]RequestLog, error) {
	if path == "" {
		path = DefaultLogPath()
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var all []RequestLog
	dec := json.NewDecoder(f)
	for dec.More() {
		var entry RequestLog
		if err := dec.Decode(&entry); err != nil {
			break
		}
		all = append(all, entry)
	}

	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

// statusRecorder captures the HTTP status code.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) status() int {
	if r.code == 0 {
		return http.StatusOK
	}
	return r.code
}
