// Package bridge is the core of the voice bridge: it terminates
// carrier media-stream WebSockets, authenticates each call, and runs a
// Session per call that relays audio to a conversational AI provider.
package bridge

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veridian-labs/voicebridge/pkg/actions"
	"github.com/veridian-labs/voicebridge/pkg/provider"
)

// AdapterFactory builds the provider adapter for one call. The gateway
// fills cfg.Tools from the call's action registry before calling it.
type AdapterFactory func(cfg provider.Config) provider.Adapter

// RegistryFactory builds the per-call action registry. The caller's
// verified phone number comes from the carrier, never from the model.
type RegistryFactory func(callerPhone string) *actions.Registry

// Config is the gateway's static configuration.
type Config struct {
	// Environment tags this deployment. Calls whose start message
	// names a different environment are refused.
	Environment string

	// SharedSecret is the token the carrier must present.
	SharedSecret string

	// MaxSessions caps concurrent calls.
	MaxSessions int

	// PreConnectFrames sizes each session's pre-connect audio buffer.
	PreConnectFrames int

	// ConnectTimeout bounds each session's wait for provider readiness.
	ConnectTimeout time.Duration
}

// Gateway accepts carrier connections and owns the live-session table.
type Gateway struct {
	cfg         Config
	providerCfg provider.Config
	newAdapter  AdapterFactory
	newRegistry RegistryFactory

	pool        *CapacityPool
	upgrader    websocket.Upgrader
	log         *slog.Logger
	variantName string

	mu       sync.Mutex
	sessions map[string]*Session // keyed by stream sid
}

// New creates a Gateway. providerCfg is the base upstream
// configuration; per-call fields (tools) are filled in per session.
func New(cfg Config, providerCfg provider.Config, newAdapter AdapterFactory, newRegistry RegistryFactory, log *slog.Logger) *Gateway {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1
	}
	if log == nil {
		log = slog.Default()
	}
	g := &Gateway{
		cfg:         cfg,
		providerCfg: providerCfg,
		newAdapter:  newAdapter,
		newRegistry: newRegistry,
		pool:        NewCapacityPool(cfg.MaxSessions),
		log:         log,
		sessions:    make(map[string]*Session),
	}
	if newAdapter != nil {
		// Probe the factory once so /status can report the variant.
		a := newAdapter(provider.Config{})
		g.variantName = string(a.Variant())
		a.Close()
	}
	return g
}

// Routes returns the gateway's HTTP surface: the media-stream
// WebSocket endpoint and the status endpoint.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/media", g.HandleMedia)
	mux.HandleFunc("/status", g.HandleStatus)
	return mux
}

// HandleMedia is the carrier-facing WebSocket endpoint. It upgrades,
// waits for the start message, authenticates, and then pumps carrier
// messages into the session until the stream ends.
func (g *Gateway) HandleMedia(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	start, err := g.awaitStart(conn)
	if err != nil {
		g.log.Warn("no usable start message", "remote", r.RemoteAddr, "err", err)
		return
	}

	// Authenticate before consuming a capacity ticket: a rejected
	// call must leave the pool untouched.
	if err := g.authorize(start); err != nil {
		g.reject(conn, start, err)
		return
	}
	ticket, err := g.pool.Acquire()
	if err != nil {
		g.reject(conn, start, err)
		return
	}

	session := g.startSession(r, conn, start, ticket)
	if session == nil {
		return
	}
	g.pump(conn, session)
}

// awaitStart reads until the carrier's start message arrives. Carriers
// send a protocol "connected" preamble first; anything else before
// start is ignored.
func (g *Gateway) awaitStart(conn *websocket.Conn) (*startPayload, error) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	for {
		var msg carrierMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return nil, err
		}
		switch msg.Event {
		case eventConnected:
			continue
		case eventStart:
			if msg.Start == nil {
				continue
			}
			if msg.Start.StreamSid == "" {
				msg.Start.StreamSid = msg.StreamSid
			}
			return msg.Start, nil
		default:
			g.log.Debug("ignoring pre-start message", "event", msg.Event)
		}
	}
}

func (g *Gateway) authorize(start *startPayload) error {
	token := start.CustomParameters[paramToken]
	if subtle.ConstantTimeCompare([]byte(token), []byte(g.cfg.SharedSecret)) != 1 {
		return ErrBadToken
	}
	if env := start.CustomParameters[paramEnvironment]; env != g.cfg.Environment {
		return ErrEnvMismatch
	}
	return nil
}

// reject closes the carrier socket with a reason-specific close code.
func (g *Gateway) reject(conn *websocket.Conn, start *startPayload, reason error) {
	code := closeCodeFor(reason)
	g.log.Warn("call refused",
		"call_sid", start.CallSid,
		"stream_sid", start.StreamSid,
		"close_code", code,
		"reason", reason,
	)
	msg := websocket.FormatCloseMessage(code, reason.Error())
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
}

func (g *Gateway) startSession(r *http.Request, conn *websocket.Conn, start *startPayload, ticket *Ticket) *Session {
	caller := start.CustomParameters[paramCaller]
	registry := g.newRegistry(caller)

	providerCfg := g.providerCfg
	providerCfg.Tools = registry.List()
	if providerCfg.ConnectTimeout <= 0 {
		providerCfg.ConnectTimeout = g.cfg.ConnectTimeout
	}
	adapter := g.newAdapter(providerCfg)

	session := NewSession(SessionConfig{
		CallSid:          start.CallSid,
		StreamSid:        start.StreamSid,
		Caller:           caller,
		Adapter:          adapter,
		Registry:         registry,
		Carrier:          &wsCarrier{conn: conn},
		Ticket:           ticket,
		ConnectTimeout:   g.cfg.ConnectTimeout,
		PreConnectFrames: g.cfg.PreConnectFrames,
		Logger:           g.log,
		OnClose:          g.remove,
	})

	g.mu.Lock()
	g.sessions[start.StreamSid] = session
	g.mu.Unlock()

	if err := session.Start(r.Context()); err != nil {
		// Start already tore the session down and released the ticket.
		return nil
	}
	return session
}

// pump feeds carrier messages into the session until the socket ends.
func (g *Gateway) pump(conn *websocket.Conn, session *Session) {
	defer session.Teardown("carrier disconnected")

	for {
		var msg carrierMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		select {
		case <-session.Done():
			return
		default:
		}

		switch msg.Event {
		case eventMedia:
			if msg.Media == nil {
				continue
			}
			session.HandleMedia(msg.Media.Payload)
		case eventMark:
			if msg.Mark != nil {
				session.HandleMark(msg.Mark.Name)
			}
		case eventStop:
			session.HandleStop()
			return
		default:
			g.log.Debug("ignoring carrier message", "event", msg.Event)
		}
	}
}

func (g *Gateway) remove(s *Session) {
	g.mu.Lock()
	delete(g.sessions, s.StreamSid())
	g.mu.Unlock()
}

// Status is the gateway's observable state.
type Status struct {
	ActiveSessions  int             `json:"active_sessions"`
	MaxSessions     int             `json:"max_sessions"`
	ProviderVariant string          `json:"provider_variant"`
	UpstreamKeySet  bool            `json:"upstream_key_set"`
	Sessions        []SessionStatus `json:"sessions"`
}

// SessionStatus describes one live call. The upstream key itself never
// appears here, only whether one is configured.
type SessionStatus struct {
	StreamSid      string  `json:"stream_sid"`
	CallSid        string  `json:"call_sid"`
	State          string  `json:"state"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	BufferedFrames int     `json:"buffered_frames"`
	DroppedFrames  int64   `json:"dropped_frames"`
}

// Status snapshots the session table.
func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := Status{
		ActiveSessions:  len(g.sessions),
		MaxSessions:     g.pool.Limit(),
		ProviderVariant: g.variantName,
		UpstreamKeySet:  g.providerCfg.APIKey != "",
		Sessions:        make([]SessionStatus, 0, len(g.sessions)),
	}
	for _, s := range g.sessions {
		st.Sessions = append(st.Sessions, SessionStatus{
			StreamSid:      s.StreamSid(),
			CallSid:        s.CallSid(),
			State:          s.State().String(),
			UptimeSeconds:  s.Uptime().Seconds(),
			BufferedFrames: s.BufferedFrames(),
			DroppedFrames:  s.DroppedFrames(),
		})
	}
	return st
}

// HandleStatus serves the status snapshot as JSON.
func (g *Gateway) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(g.Status()); err != nil {
		g.log.Warn("encode status", "err", err)
	}
}

// Shutdown tears down every live session.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	live := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		live = append(live, s)
	}
	g.mu.Unlock()

	for _, s := range live {
		s.Teardown("gateway shutdown")
	}
}

// wsCarrier serializes writes to the carrier socket. The session's
// event loop and mark echoes write concurrently with gateway control
// frames; gorilla/websocket requires a single writer.
type wsCarrier struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsCarrier) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}
