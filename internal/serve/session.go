package serve

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/msalah0e/ripple/internal/interact"
	"github.com/msalah0e/ripple/internal/layout"
	"github.com/msalah0e/ripple/internal/logging"
	"github.com/msalah0e/ripple/internal/render"
	"github.com/msalah0e/ripple/internal/search"
)

const writeWait = 10 * time.Second

// The default origin check rejects pages served from other hosts, since
// every search runs on this server's Dune key.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 64 * 1024,
}

// Message types.
const (
	MsgSearch    = "search"
	MsgDragStart = "drag_start"
	MsgDrag      = "drag"
	MsgDragEnd   = "drag_end"
	MsgWheel     = "wheel"
	MsgPan       = "pan"
	MsgZoom      = "zoom"

	MsgSession   = "session"
	MsgStatus    = "status"
	MsgError     = "error"
	MsgClear     = "clear"
	MsgScene     = "scene"
	MsgTick      = "tick"
	MsgTransform = "transform"
)

// ClientMessage is a message from the page.
type ClientMessage struct {
	Type      string  `json:"type"`
	Address   string  `json:"address,omitempty"`
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
	Index     int     `json:"index"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	DX        float64 `json:"dx,omitempty"`
	DY        float64 `json:"dy,omitempty"`
	DeltaY    float64 `json:"delta_y,omitempty"`
	DeltaMode int     `json:"delta_mode,omitempty"`
	K         float64 `json:"k,omitempty"`
}

// ServerMessage is a message to the page.
type ServerMessage struct {
	Type      string              `json:"type"`
	Session   string              `json:"session,omitempty"`
	Loading   *bool               `json:"loading,omitempty"`
	Message   string              `json:"message,omitempty"`
	Scene     *render.Scene       `json:"scene,omitempty"`
	Positions []layout.Point      `json:"positions,omitempty"`
	Transform *interact.Transform `json:"transform,omitempty"`
}

// delivery is a rendered result handed over by the searcher.
type delivery struct {
	res   *search.Result
	clear bool
}

// surface hands results to the session goroutine. Clear and Render run
// under the searcher's lock, so only the newest undrained delivery is kept.
type surface struct {
	out     chan delivery
	cleared bool
}

func newSurface() *surface {
	return &surface{out: make(chan delivery, 1)}
}

func (s *surface) Clear() { s.cleared = true }

func (s *surface) Render(res *search.Result) {
	d := delivery{res: res, clear: s.cleared}
	s.cleared = false
	select {
	case <-s.out:
	default:
	}
	s.out <- d
}

// outcome reports a finished search.
type outcome struct {
	gen     uint64
	address string
	err     error
}

// session is one websocket connection. Only run touches the simulation,
// the layer and the connection's writer.
type session struct {
	id       string
	conn     *websocket.Conn
	log      *slog.Logger
	srv      *Server
	searcher *search.Searcher
	surface  *surface
	layer    *interact.Layer
	scene    *render.Scene
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	surf := newSurface()
	sess := &session{
		id:       uuid.New().String(),
		conn:     conn,
		srv:      s,
		surface:  surf,
		searcher: s.searcher(surf, 0),
		layer:    interact.NewLayer(nil, s.zoom, s.dragTarget),
	}
	sess.log = s.log.With("session", sess.id)

	sessionsActive.Inc()
	defer sessionsActive.Dec()

	sess.log.Info("session opened")
	sess.run(c.Request.Context())
	sess.log.Info("session closed")
}

func (ss *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(logging.WithLogger(parent, ss.log))
	defer cancel()

	in := make(chan ClientMessage)
	go ss.read(ctx, cancel, in)

	outcomes := make(chan outcome)

	interval := ss.srv.tickInterval
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := ss.send(ServerMessage{Type: MsgSession, Session: ss.id}); err != nil {
		return
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			return

		case msg := <-in:
			err = ss.handle(ctx, msg, outcomes)

		case d := <-ss.surface.out:
			err = ss.deliver(d)

		case o := <-outcomes:
			err = ss.finish(o)

		case <-ticker.C:
			err = ss.tick()
		}
		if err != nil {
			ss.log.Debug("write failed", "error", err)
			return
		}
	}
}

// read pumps client messages into in until the connection drops.
func (ss *session) read(ctx context.Context, cancel context.CancelFunc, in chan<- ClientMessage) {
	defer cancel()
	for {
		var msg ClientMessage
		if err := ss.conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				ss.log.Debug("read failed", "error", err)
			}
			return
		}
		select {
		case in <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (ss *session) send(msg ServerMessage) error {
	ss.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ss.conn.WriteJSON(msg)
}

func (ss *session) status(loading bool) error {
	return ss.send(ServerMessage{Type: MsgStatus, Loading: &loading})
}

func (ss *session) handle(ctx context.Context, msg ClientMessage, outcomes chan<- outcome) error {
	switch msg.Type {
	case MsgSearch:
		return ss.startSearch(ctx, msg, outcomes)

	case MsgDragStart:
		ss.gesture(msg.Type, ss.layer.DragStart(msg.Index))

	case MsgDrag:
		ss.gesture(msg.Type, ss.layer.Drag(msg.Index, layout.Point{X: msg.X, Y: msg.Y}))

	case MsgDragEnd:
		ss.gesture(msg.Type, ss.layer.DragEnd(msg.Index))

	case MsgPan:
		return ss.sendTransform(ss.layer.Pan(msg.DX, msg.DY))

	case MsgWheel:
		return ss.sendTransform(ss.layer.Wheel(msg.DeltaY, msg.DeltaMode, layout.Point{X: msg.X, Y: msg.Y}))

	case MsgZoom:
		if msg.K <= 0 {
			ss.log.Debug("zoom ignored", "k", msg.K)
			return nil
		}
		return ss.sendTransform(ss.layer.ZoomTo(msg.K, layout.Point{X: msg.X, Y: msg.Y}))

	default:
		ss.log.Debug("unknown message", "type", msg.Type)
	}
	return nil
}

func (ss *session) gesture(kind string, err error) {
	if err != nil {
		ss.log.Debug("gesture ignored", "type", kind, "error", err)
		return
	}
	if kind != MsgDrag {
		ss.log.Debug("gesture", "type", kind, "dragging", ss.layer.Dragging(),
			"alpha_target", ss.layer.Simulation().AlphaTarget())
	}
}

func (ss *session) sendTransform(t interact.Transform) error {
	if ss.scene != nil {
		ss.scene.Transform = t
	}
	return ss.send(ServerMessage{Type: MsgTransform, Transform: &t})
}

func (ss *session) startSearch(ctx context.Context, msg ClientMessage, outcomes chan<- outcome) error {
	vp := layout.Viewport{Width: msg.Width, Height: msg.Height}
	if strings.TrimSpace(msg.Address) == "" {
		return ss.send(ServerMessage{Type: MsgError, Message: msgInvalidAddress})
	}

	gen := ss.searcher.Reserve()
	go func() {
		_, err := ss.searcher.SearchAs(ctx, gen, msg.Address, vp)
		select {
		case outcomes <- outcome{gen: gen, address: msg.Address, err: err}:
		case <-ctx.Done():
		}
	}()
	return ss.status(true)
}

// deliver swaps in a new graph unless a newer search has started since it
// was handed over.
func (ss *session) deliver(d delivery) error {
	if d.res.Generation < ss.searcher.Latest() {
		ss.log.Debug("dropping stale result", "generation", d.res.Generation)
		return nil
	}

	if d.clear {
		if err := ss.send(ServerMessage{Type: MsgClear}); err != nil {
			return err
		}
	}
	ss.layer.Reset(d.res.Sim)
	ss.scene = d.res.Scene
	ss.scene.Transform = ss.layer.Transform()
	return ss.send(ServerMessage{Type: MsgScene, Scene: ss.scene})
}

// finish settles the page once the latest search is done. Outcomes of
// superseded searches are ignored, whatever order they arrive in.
func (ss *session) finish(o outcome) error {
	if o.gen < ss.searcher.Latest() || errors.Is(o.err, search.ErrStale) {
		ss.log.Debug("superseded search finished", "generation", o.gen, "address", o.address)
		return nil
	}
	if err := ss.status(false); err != nil {
		return err
	}
	if o.err == nil {
		return nil
	}
	_, msg := searchFailure(o.err)
	return ss.send(ServerMessage{Type: MsgError, Message: msg})
}

// tick advances the simulation one step and publishes the positions.
func (ss *session) tick() error {
	sim := ss.layer.Simulation()
	if sim == nil || !sim.Step() {
		return nil
	}
	if !sim.Active() {
		ss.log.Debug("simulation settled", "ticks", sim.Ticks())
	}
	pos := sim.Positions()
	ss.scene.Update(pos)
	return ss.send(ServerMessage{Type: MsgTick, Positions: pos})
}
