// Package provider defines the capability set the bridge expects from
// a conversational AI back end.
//
// Two upstream APIs are supported: a generic realtime-model API
// (openairt) and an empathic voice-interface API (evi). They differ in
// sample format, message envelope, and persona configuration shape;
// the adapter hides all of that. On the bridge side of an Adapter,
// audio is always 8 kHz μ-law, in both directions.
package provider

import (
	"context"
	"time"

	"github.com/veridian-labs/voicebridge/pkg/actions"
)

// Variant identifies which wire protocol an adapter speaks.
type Variant string

const (
	// VariantRealtime is the generic realtime-model API.
	VariantRealtime Variant = "realtime"
	// VariantEmpathic is the empathic voice-interface API.
	VariantEmpathic Variant = "evi"
)

// TurnDetection configures when the provider is allowed to respond.
type TurnDetection struct {
	// Threshold is the voice-activity sensitivity (0.0–1.0).
	Threshold float64 `yaml:"threshold"`

	// SilenceDuration is how long the caller must be silent before
	// the provider may start its turn.
	SilenceDuration time.Duration `yaml:"silence_duration"`
}

// Config is the provider-independent session configuration sent on
// connect.
type Config struct {
	// APIKey authenticates the upstream connection.
	APIKey string

	// Model is the model or voice-configuration identifier.
	Model string

	// Voice selects the synthesis voice, where the variant supports it.
	Voice string

	// Instructions is the system prompt / persona.
	Instructions string

	// Tools are the business actions offered to the model, translated
	// by each adapter into its provider's function-calling schema.
	Tools []actions.Definition

	// TurnDetection tunes voice-activity handling.
	TurnDetection TurnDetection

	// BaseURL overrides the provider endpoint. Used by tests.
	BaseURL string

	// ConnectTimeout bounds the upstream handshake.
	ConnectTimeout time.Duration
}

// EventType enumerates what an adapter can report.
type EventType int

const (
	// EventConnected fires once the upstream session is configured and
	// ready for audio.
	EventConnected EventType = iota

	// EventAudio carries one frame of agent speech, 8 kHz μ-law.
	EventAudio

	// EventToolCall asks the bridge to run a business action.
	EventToolCall

	// EventInterrupted reports that the caller started speaking over
	// the agent; queued playback should be discarded.
	EventInterrupted

	// EventError reports a terminal upstream failure.
	EventError

	// EventClosed reports an orderly upstream close.
	EventClosed
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventAudio:
		return "audio"
	case EventToolCall:
		return "tool_call"
	case EventInterrupted:
		return "interrupted"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	}
	return "unknown"
}

// ToolCall is a mid-conversation action request from the provider.
type ToolCall struct {
	// ID correlates the eventual result with this request.
	ID string

	// Name is the action name.
	Name string

	// Arguments is the raw JSON argument payload.
	Arguments string
}

// Event is one occurrence on the upstream connection.
type Event struct {
	Type EventType

	// Audio is set for EventAudio: one μ-law frame.
	Audio []byte

	// ToolCall is set for EventToolCall.
	ToolCall *ToolCall

	// Err is set for EventError.
	Err error
}

// Adapter owns one upstream connection and translates between the
// bridge's event model and the provider's wire protocol.
//
// Events delivers occurrences in wire order; the channel is closed
// when the connection ends, after a final EventError or EventClosed.
// Close is idempotent and safe to call from any goroutine.
type Adapter interface {
	// Connect opens the upstream socket and sends the initial session
	// configuration. The adapter emits EventConnected once the
	// provider acknowledges it.
	Connect(ctx context.Context) error

	// SendAudio forwards one 8 kHz μ-law frame of caller audio,
	// converting format if the variant requires it.
	SendAudio(frame []byte) error

	// SendToolResult delivers a business-action result for the given
	// correlation id and requests continuation of the turn.
	SendToolResult(correlationID, result string) error

	// Events returns the adapter's event stream.
	Events() <-chan Event

	// Variant reports which wire protocol this adapter speaks.
	Variant() Variant

	// Close tears down the upstream connection.
	Close() error
}
