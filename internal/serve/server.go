// Package serve is the live graph server: the interactive page, a JSON
// search endpoint, and one websocket session per open page.
package serve

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/msalah0e/ripple/internal/config"
	"github.com/msalah0e/ripple/internal/dune"
	"github.com/msalah0e/ripple/internal/graph"
	"github.com/msalah0e/ripple/internal/interact"
	"github.com/msalah0e/ripple/internal/layout"
	"github.com/msalah0e/ripple/internal/logging"
	"github.com/msalah0e/ripple/internal/render"
	"github.com/msalah0e/ripple/internal/search"
)

// Messages shown to the browser. Upstream details stay in the server log.
const (
	msgInvalidAddress = "Please enter a valid Ethereum address."
	msgFetchFailed    = "Failed to fetch data. Please try again."
	msgTimeout        = "The query took too long. Please try again."
	msgNotJSON        = "Requests must be sent as application/json."
)

var sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ripple_serve_sessions",
	Help: "Open websocket sessions",
})

// Deps are the collaborators a server needs.
type Deps struct {
	Config   *config.Config
	Jobs     search.Jobs
	Recorder search.Recorder // may be nil
	Logger   *slog.Logger
}

// Server serves the live page.
type Server struct {
	addr         string
	jobs         search.Jobs
	recorder     search.Recorder
	log          *slog.Logger
	layout       layout.Config
	hubMode      graph.HubMode
	zoom         interact.Zoom
	dragTarget   float64
	tickInterval time.Duration
	maxTicks     int
}

// New creates a server from the loaded config.
func New(d Deps) (*Server, error) {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}
	mode, err := graph.ParseHubMode(cfg.Graph.HubMode)
	if err != nil {
		return nil, err
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:         cfg.Serve.Addr,
		jobs:         d.Jobs,
		recorder:     d.Recorder,
		log:          logger.With("component", "serve"),
		layout:       layout.ConfigFrom(cfg.Layout),
		hubMode:      mode,
		zoom:         interact.ZoomFrom(cfg.View),
		dragTarget:   cfg.Layout.DragAlphaTarget,
		tickInterval: cfg.Layout.TickInterval.Duration,
		maxTicks:     cfg.Layout.MaxTicks,
	}, nil
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", s.handlePage)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/api/search", s.handleSearch)
	r.GET("/ws", s.handleWebSocket)
	return r
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("serving", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handlePage(c *gin.Context) {
	body, err := render.HTML(render.LivePage(s.zoom), nil)
	if err != nil {
		s.log.Error("render page", "error", err)
		c.String(http.StatusInternalServerError, "render failed")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

type searchRequest struct {
	Address string  `json:"address" binding:"required"`
	Width   float64 `json:"width" binding:"gte=0"`
	Height  float64 `json:"height" binding:"gte=0"`
}

func (s *Server) searcher(surface search.Surface, settle int) *search.Searcher {
	return search.New(s.jobs, search.Options{
		Layout:   s.layout,
		HubMode:  s.hubMode,
		Settle:   settle,
		Surface:  surface,
		Recorder: s.recorder,
	})
}

// handleSearch runs one search to a settled layout and returns the scene.
// Bodies other than application/json get 415 before any job starts.
func (s *Server) handleSearch(c *gin.Context) {
	if c.ContentType() != gin.MIMEJSON {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": msgNotJSON})
		return
	}
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidAddress})
		return
	}

	ctx := logging.WithLogger(c.Request.Context(), s.log)
	res, err := s.searcher(nil, s.maxTicks).Search(ctx, req.Address, layout.Viewport{Width: req.Width, Height: req.Height})
	if err != nil {
		status, msg := searchFailure(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, res.Scene)
}

// searchFailure maps a search error to an HTTP status and a browser-safe
// message.
func searchFailure(err error) (int, string) {
	switch {
	case errors.Is(err, search.ErrEmptyAddress):
		return http.StatusBadRequest, msgInvalidAddress
	case errors.Is(err, dune.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, msgTimeout
	default:
		return http.StatusBadGateway, msgFetchFailed
	}
}
