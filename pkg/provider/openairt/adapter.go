// Package openairt implements the provider adapter for the generic
// realtime-model API. The session is configured for 8 kHz μ-law in
// both directions, so carrier audio is forwarded without transcoding.
package openairt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/veridian-labs/voicebridge/pkg/provider"
)

const (
	// DefaultURL is the provider's WebSocket endpoint.
	DefaultURL = "wss://api.openai.com/v1/realtime"

	// DefaultModel is used when the configuration names none.
	DefaultModel = "gpt-4o-realtime-preview"

	defaultConnectTimeout = 10 * time.Second
)

// Adapter speaks the realtime-model wire protocol.
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
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
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
func (a *Adapter) Variant() provider.Variant { return provider.VariantRealtime }

// Events returns the adapter's event stream.
func (a *Adapter) Events() <-chan provider.Event { return a.events }

// Connect dials the provider and starts the read loop. The session
// configuration is sent once the provider announces the session;
// EventConnected follows.
func (a *Adapter) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer cancel()

	url := fmt.Sprintf("%s?model=%s", a.cfg.BaseURL, a.cfg.Model)
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+a.cfg.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: a.cfg.ConnectTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("openairt: connect failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("openairt: connect failed: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	go a.readLoop()
	return nil
}

// SendAudio forwards one μ-law frame as an input buffer append.
func (a *Adapter) SendAudio(frame []byte) error {
	return a.sendEvent(map[string]any{
		"event_id": newEventID(),
		"type":     eventTypeInputAudioBufferAppend,
		"audio":    base64.StdEncoding.EncodeToString(frame),
	})
}

// SendToolResult delivers a function call output and asks the model
// to continue the turn.
func (a *Adapter) SendToolResult(correlationID, result string) error {
	err := a.sendEvent(map[string]any{
		"event_id": newEventID(),
		"type":     eventTypeConversationItemCreate,
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": correlationID,
			"output":  result,
		},
	})
	if err != nil {
		return err
	}
	return a.sendEvent(map[string]any{
		"event_id": newEventID(),
		"type":     eventTypeResponseCreate,
	})
}

// Close tears down the connection. Safe to call more than once.
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

func (a *Adapter) sendEvent(event map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return fmt.Errorf("openairt: not connected")
	}
	return a.conn.WriteJSON(event)
}

// sessionUpdate builds the session.update payload from the bridge
// configuration.
func (a *Adapter) sessionUpdate() map[string]any {
	tools := make([]tool, 0, len(a.cfg.Tools))
	for i := range a.cfg.Tools {
		d := &a.cfg.Tools[i]
		tools = append(tools, tool{
			Type:        "function",
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Schema(),
		})
	}
	return map[string]any{
		"event_id": newEventID(),
		"type":     eventTypeSessionUpdate,
		"session": &sessionConfig{
			Modalities:        []string{"text", "audio"},
			Instructions:      a.cfg.Instructions,
			Voice:             a.cfg.Voice,
			InputAudioFormat:  audioFormatG711ULaw,
			OutputAudioFormat: audioFormatG711ULaw,
			TurnDetection: &turnDetection{
				Type:              vadServer,
				Threshold:         a.cfg.TurnDetection.Threshold,
				SilenceDurationMs: int(a.cfg.TurnDetection.SilenceDuration / time.Millisecond),
			},
			Tools:      tools,
			ToolChoice: "auto",
		},
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
					Err: fmt.Errorf("openairt: read: %w", err)})
			}
			return
		}

		var event serverEvent
		if err := json.Unmarshal(message, &event); err != nil {
			slog.Warn("openairt: dropping malformed event", "err", err, "len", len(message))
			continue
		}

		switch event.Type {
		case eventTypeSessionCreated:
			if err := a.sendEvent(a.sessionUpdate()); err != nil {
				a.emit(provider.Event{Type: provider.EventError,
					Err: fmt.Errorf("openairt: configure session: %w", err)})
				a.Close()
				return
			}
			a.emit(provider.Event{Type: provider.EventConnected})

		case eventTypeSessionUpdated:
			// Configuration acknowledged; nothing to do.

		case eventTypeResponseAudioDelta:
			audio, err := base64.StdEncoding.DecodeString(event.Delta)
			if err != nil {
				slog.Warn("openairt: dropping undecodable audio delta", "err", err)
				continue
			}
			a.emit(provider.Event{Type: provider.EventAudio, Audio: audio})

		case eventTypeFunctionCallArgsDone:
			a.emit(provider.Event{Type: provider.EventToolCall, ToolCall: &provider.ToolCall{
				ID:        event.CallID,
				Name:      event.Name,
				Arguments: event.Arguments,
			}})

		case eventTypeSpeechStarted:
			a.emit(provider.Event{Type: provider.EventInterrupted})

		case eventTypeError:
			err := fmt.Errorf("openairt: provider error")
			if event.Error != nil {
				err = event.Error.toError()
			}
			a.emit(provider.Event{Type: provider.EventError, Err: err})
			a.Close()
			return

		default:
			// Unknown event types are logged and ignored; the session
			// continues.
			slog.Debug("openairt: ignoring event", "type", event.Type)
		}
	}
}

func (a *Adapter) emit(e provider.Event) {
	select {
	case a.events <- e:
	case <-a.closeCh:
		// Receiver is gone; drop terminal events rather than block.
		if e.Type == provider.EventAudio || e.Type == provider.EventToolCall {
			return
		}
		select {
		case a.events <- e:
		default:
		}
	}
}

func newEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

var _ provider.Adapter = (*Adapter)(nil)
