package bridge

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync"
	"time"

	"github.com/veridian-labs/voicebridge/pkg/actions"
	"github.com/veridian-labs/voicebridge/pkg/frames"
	"github.com/veridian-labs/voicebridge/pkg/provider"
)

// State is the lifecycle phase of a call session.
type State int

const (
	// StateCreated: start message accepted, upstream dial not begun.
	StateCreated State = iota
	// StateConnectingUpstream: dialing and configuring the provider.
	// Caller audio is buffered, not forwarded.
	StateConnectingUpstream
	// StateActive: both legs live, audio relayed in both directions.
	StateActive
	// StateClosing: teardown in progress.
	StateClosing
	// StateClosed: terminal. Every session reaches this state exactly
	// once no matter which side ended the call.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnectingUpstream:
		return "connecting_upstream"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	defaultPreConnectFrames = 500
	defaultConnectTimeout   = 10 * time.Second
)

// carrierWriter is the downstream leg as the session sees it. The
// gateway passes a locked WebSocket wrapper; tests pass a recorder.
type carrierWriter interface {
	WriteJSON(v any) error
}

// SessionConfig carries everything a Session needs. The gateway fills
// it from the carrier's start message and the server configuration.
type SessionConfig struct {
	CallSid   string
	StreamSid string
	Caller    string

	Adapter  provider.Adapter
	Registry *actions.Registry
	Carrier  carrierWriter
	Ticket   *Ticket

	// ConnectTimeout bounds the wait for the provider's ready
	// acknowledgment. Zero means the default.
	ConnectTimeout time.Duration

	// PreConnectFrames sizes the buffer for caller audio that arrives
	// before the provider is ready. Zero means the default.
	PreConnectFrames int

	Logger *slog.Logger

	// OnClose runs once during teardown, before the session reaches
	// StateClosed. The gateway uses it to drop the session from its
	// table.
	OnClose func(*Session)
}

// Session bridges one phone call: the carrier leg on one side, a
// provider adapter on the other. All teardown paths converge on
// Teardown, which is idempotent.
type Session struct {
	cfg SessionConfig
	log *slog.Logger

	pre       *frames.Ring
	startedAt time.Time
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	state State
}

// NewSession creates a session in StateCreated.
func NewSession(cfg SessionConfig) *Session {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.PreConnectFrames <= 0 {
		cfg.PreConnectFrames = defaultPreConnectFrames
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		cfg: cfg,
		log: cfg.Logger.With(
			"call_sid", cfg.CallSid,
			"stream_sid", cfg.StreamSid,
		),
		pre:       frames.NewRing(cfg.PreConnectFrames),
		startedAt: time.Now(),
		done:      make(chan struct{}),
		state:     StateCreated,
	}
}

// Start dials the provider and begins relaying. On connect failure the
// session is torn down and the error returned.
func (s *Session) Start(ctx context.Context) error {
	s.setState(StateConnectingUpstream)
	s.log.Info("session starting", "variant", s.cfg.Adapter.Variant())

	if err := s.cfg.Adapter.Connect(ctx); err != nil {
		s.log.Error("upstream connect failed", "err", err)
		s.Teardown("upstream connect failed")
		return err
	}

	// The dial succeeded but the provider has not acknowledged the
	// session yet. If the ready event never comes, give up.
	watchdog := time.AfterFunc(s.cfg.ConnectTimeout, func() {
		if s.State() != StateActive {
			s.log.Error("provider ready timeout", "timeout", s.cfg.ConnectTimeout)
			s.Teardown("provider ready timeout")
		}
	})

	go s.eventLoop(ctx, watchdog)
	return nil
}

// HandleMedia accepts one inbound media payload from the carrier.
// Before the provider is ready the frame is buffered; once active it
// is forwarded. A frame that does not decode is dropped and the call
// continues.
func (s *Session) HandleMedia(payload string) {
	frame, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		s.log.Warn("dropping malformed media frame", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateCreated, StateConnectingUpstream:
		s.pre.Add(frame)
	case StateActive:
		if err := s.cfg.Adapter.SendAudio(frame); err != nil {
			s.log.Warn("forward caller audio", "err", err)
		}
	default:
		// Closing or closed: late frames are expected, ignore.
	}
}

// HandleMark records a playback confirmation from the carrier. Marks
// come back for the markers the bridge placed after a flush; unknown
// names are logged and ignored.
func (s *Session) HandleMark(name string) {
	s.log.Debug("playback mark confirmed", "mark", name)
}

// HandleStop reacts to the carrier ending the stream.
func (s *Session) HandleStop() {
	s.Teardown("carrier stop")
}

// Teardown releases everything the session holds. Safe to call from
// any goroutine, any number of times, in any state.
func (s *Session) Teardown(reason string) {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		s.log.Info("session closing", "reason", reason, "uptime", time.Since(s.startedAt))

		if err := s.cfg.Adapter.Close(); err != nil {
			s.log.Warn("close upstream", "err", err)
		}
		if s.cfg.Ticket != nil {
			s.cfg.Ticket.Release()
		}
		if s.cfg.OnClose != nil {
			s.cfg.OnClose(s)
		}

		s.setState(StateClosed)
		close(s.done)
	})
}

// Done is closed when the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CallSid returns the carrier call identifier.
func (s *Session) CallSid() string { return s.cfg.CallSid }

// StreamSid returns the carrier stream identifier.
func (s *Session) StreamSid() string { return s.cfg.StreamSid }

// Uptime reports how long the session has existed.
func (s *Session) Uptime() time.Duration { return time.Since(s.startedAt) }

// BufferedFrames reports how many caller frames are waiting for the
// provider to become ready.
func (s *Session) BufferedFrames() int { return s.pre.Len() }

// DroppedFrames reports how many buffered frames were evicted.
func (s *Session) DroppedFrames() int64 { return s.pre.Dropped() }

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// eventLoop consumes the adapter's event stream until it closes.
// Tool calls are executed inline, so they are naturally serialized and
// their results reach the provider before any later event is handled.
func (s *Session) eventLoop(ctx context.Context, watchdog *time.Timer) {
	defer watchdog.Stop()

	for e := range s.cfg.Adapter.Events() {
		switch e.Type {
		case provider.EventConnected:
			watchdog.Stop()
			s.activate()

		case provider.EventAudio:
			if err := s.cfg.Carrier.WriteJSON(mediaMessage(s.cfg.StreamSid, e.Audio)); err != nil {
				s.log.Warn("forward agent audio", "err", err)
			}

		case provider.EventToolCall:
			s.runTool(ctx, e.ToolCall)

		case provider.EventInterrupted:
			s.log.Debug("caller interruption, flushing playback")
			if err := s.cfg.Carrier.WriteJSON(clearMessage(s.cfg.StreamSid)); err != nil {
				s.log.Warn("send clear", "err", err)
			}
			// The carrier confirms the flush by sending this marker
			// back once its queue has drained.
			if err := s.cfg.Carrier.WriteJSON(markMessage(s.cfg.StreamSid, markPlaybackCleared)); err != nil {
				s.log.Warn("send mark", "err", err)
			}

		case provider.EventError:
			s.log.Error("upstream error", "err", e.Err)
			s.Teardown("upstream error")

		case provider.EventClosed:
			s.Teardown("upstream closed")
		}
	}
	s.Teardown("upstream event stream ended")
}

// activate flushes pre-connect audio in arrival order, then opens the
// live path. Holding the lock across the flush keeps a concurrent
// HandleMedia from slipping a fresh frame in ahead of buffered ones.
func (s *Session) activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnectingUpstream {
		return
	}
	buffered := s.pre.Drain()
	for _, frame := range buffered {
		if err := s.cfg.Adapter.SendAudio(frame); err != nil {
			s.log.Warn("flush buffered audio", "err", err)
			break
		}
	}
	s.state = StateActive
	s.log.Info("session active",
		"flushed_frames", len(buffered),
		"dropped_frames", s.pre.Dropped(),
	)
}

// runTool executes one business action and returns the result, success
// or structured failure, to the provider. A broken handler never takes
// the call down.
func (s *Session) runTool(ctx context.Context, tc *provider.ToolCall) {
	if tc == nil {
		return
	}
	s.log.Info("tool call", "tool", tc.Name, "id", tc.ID)

	res := s.cfg.Registry.ExecuteRaw(ctx, tc.Name, tc.Arguments)
	if !res.Success {
		s.log.Warn("tool call failed", "tool", tc.Name, "id", tc.ID, "reason", res.Error)
	}
	if err := s.cfg.Adapter.SendToolResult(tc.ID, res.JSON()); err != nil {
		s.log.Warn("deliver tool result", "tool", tc.Name, "id", tc.ID, "err", err)
	}
}
