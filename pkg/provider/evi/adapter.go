// Package evi implements the provider adapter for the empathic
// voice-interface API.
//
// This variant takes 16-bit linear PCM at 8 kHz on the way in and
// emits 48 kHz WAV chunks on the way out, so the adapter transcodes at
// both edges: carrier μ-law is expanded to linear before sending, and
// synthesis output is unwrapped, decimated to 8 kHz, and companded
// back to μ-law before it reaches the session.
package evi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veridian-labs/voicebridge/pkg/audio/g711"
	"github.com/veridian-labs/voicebridge/pkg/audio/pcm"
	"github.com/veridian-labs/voicebridge/pkg/audio/wave"
	"github.com/veridian-labs/voicebridge/pkg/provider"
)

const (
	// DefaultURL is the provider's WebSocket endpoint.
	DefaultURL = "wss://api.hume.ai/v0/evi/chat"

	defaultConnectTimeout = 10 * time.Second
)

// Adapter speaks the empathic voice-interface wire protocol.
type Adapter struct {
	cfg provider.Config

	events  chan provider.Event
	closeCh chan struct{}

	mu        sync.Mutex // guards conn writes
	conn      *websocket.Conn
	closeOnce sync.Once
}

// New creates an unconnected Adapter.
func New(cfg provider.Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	return &Adapter{
		cfg:     cfg,
		events:  make(chan provider.Event, 128),
		closeCh: make(chan struct{}),
	}
}

// Variant reports the wire protocol.
func (a *Adapter) Variant() provider.Variant { return provider.VariantEmpathic }

// Events returns the adapter's event stream.
func (a *Adapter) Events() <-chan provider.Event { return a.events }

// Connect dials the provider, sends the session settings, and starts
// the read loop. This provider authenticates with a query parameter
// rather than a header.
func (a *Adapter) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("api_key", a.cfg.APIKey)
	if a.cfg.Model != "" {
		q.Set("config_id", a.cfg.Model)
	}
	endpoint := a.cfg.BaseURL + "?" + q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: a.cfg.ConnectTimeout}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("evi: connect failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("evi: connect failed: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	if err := a.send(a.sessionSettings()); err != nil {
		a.Close()
		return fmt.Errorf("evi: configure session: %w", err)
	}

	go a.readLoop()
	return nil
}

// SendAudio expands one μ-law frame to linear PCM and forwards it.
func (a *Adapter) SendAudio(frame []byte) error {
	linear := g711.Decode(frame)
	return a.send(&audioInput{
		Type: msgTypeAudioInput,
		Data: base64.StdEncoding.EncodeToString(linear),
	})
}

// SendToolResult returns an action result for the given tool call.
// The provider resumes the turn on its own once the response arrives.
func (a *Adapter) SendToolResult(correlationID, result string) error {
	return a.send(&toolResponse{
		Type:       msgTypeToolResponse,
		ToolCallID: correlationID,
		Content:    result,
	})
}

// Close tears down the upstream connection. Safe to call repeatedly.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.closeCh)
		a.mu.Lock()
		if a.conn != nil {
			err = a.conn.Close()
		}
		a.mu.Unlock()
	})
	return err
}

func (a *Adapter) send(msg any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return fmt.Errorf("evi: not connected")
	}
	return a.conn.WriteJSON(msg)
}

func (a *Adapter) sessionSettings() *sessionSettings {
	tools := make([]tool, 0, len(a.cfg.Tools))
	for i := range a.cfg.Tools {
		d := &a.cfg.Tools[i]
		params, err := json.Marshal(d.Schema())
		if err != nil {
			slog.Warn("evi: skipping tool with unencodable schema", "tool", d.Name, "err", err)
			continue
		}
		tools = append(tools, tool{
			Type:        "function",
			Name:        d.Name,
			Description: d.Description,
			Parameters:  string(params),
		})
	}
	return &sessionSettings{
		Type:         msgTypeSessionSettings,
		SystemPrompt: a.cfg.Instructions,
		Audio: &audioSettings{
			Encoding:   encodingLinear16,
			SampleRate: pcm.L16Mono8K.SampleRate(),
			Channels:   pcm.L16Mono8K.Channels(),
		},
		VAD: &vadSettings{
			Threshold:         a.cfg.TurnDetection.Threshold,
			SilenceDurationMs: int(a.cfg.TurnDetection.SilenceDuration / time.Millisecond),
		},
		Tools: tools,
	}
}

func (a *Adapter) readLoop() {
	defer close(a.events)

	for {
		a.mu.Lock()
		conn := a.conn
		a.mu.Unlock()

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-a.closeCh:
				a.emit(provider.Event{Type: provider.EventClosed})
			default:
				a.emit(provider.Event{Type: provider.EventError,
					Err: fmt.Errorf("evi: read: %w", err)})
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Warn("evi: dropping malformed message", "err", err, "len", len(message))
			continue
		}

		switch msg.Type {
		case msgTypeChatMetadata:
			a.emit(provider.Event{Type: provider.EventConnected})

		case msgTypeAudioOutput:
			frame, err := a.transcodeOutput(msg.Data)
			if err != nil {
				slog.Warn("evi: dropping undecodable audio output", "err", err)
				continue
			}
			a.emit(provider.Event{Type: provider.EventAudio, Audio: frame})

		case msgTypeToolCall:
			a.emit(provider.Event{Type: provider.EventToolCall, ToolCall: &provider.ToolCall{
				ID:        msg.ToolCallID,
				Name:      msg.Name,
				Arguments: msg.Parameters,
			}})

		case msgTypeUserInterruption:
			a.emit(provider.Event{Type: provider.EventInterrupted})

		case msgTypeError:
			a.emit(provider.Event{Type: provider.EventError, Err: msg.toError()})
			a.Close()
			return

		default:
			// Unknown message types are logged and ignored.
			slog.Debug("evi: ignoring message", "type", msg.Type)
		}
	}
}

// transcodeOutput converts one synthesis chunk (base64 WAV at the
// provider's rate) into an 8 kHz μ-law frame. Decimation keeps every
// 6th sample with no anti-aliasing; acceptable for telephony.
func (a *Adapter) transcodeOutput(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	info, err := wave.Decode(raw)
	if err != nil {
		return nil, err
	}
	if info.Channels != 1 || info.Depth != 16 {
		return nil, fmt.Errorf("evi: unsupported audio output format: %d ch / %d bit",
			info.Channels, info.Depth)
	}

	linear := info.Data
	switch info.SampleRate {
	case pcm.L16Mono48K.SampleRate():
		linear, err = g711.Decimate48To8(linear)
		if err != nil {
			return nil, err
		}
	case pcm.L16Mono8K.SampleRate():
		// Already narrowband.
	default:
		return nil, fmt.Errorf("evi: unsupported sample rate %d", info.SampleRate)
	}

	return g711.Encode(linear)
}

func (a *Adapter) emit(e provider.Event) {
	select {
	case a.events <- e:
	case <-a.closeCh:
		if e.Type == provider.EventAudio || e.Type == provider.EventToolCall {
			return
		}
		select {
		case a.events <- e:
		default:
		}
	}
}

var _ provider.Adapter = (*Adapter)(nil)
