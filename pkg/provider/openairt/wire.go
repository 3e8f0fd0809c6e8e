package openairt

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Client event types (sent from the bridge to the provider).
const (
	eventTypeSessionUpdate          = "session.update"
	eventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	eventTypeConversationItemCreate = "conversation.item.create"
	eventTypeResponseCreate         = "response.create"
)

// Server event types (received from the provider).
const (
	eventTypeError                = "error"
	eventTypeSessionCreated       = "session.created"
	eventTypeSessionUpdated       = "session.updated"
	eventTypeSpeechStarted        = "input_audio_buffer.speech_started"
	eventTypeResponseAudioDelta   = "response.audio.delta"
	eventTypeFunctionCallArgsDone = "response.function_call_arguments.done"
)

// audioFormatG711ULaw is the 8 kHz μ-law sample format, used in both
// directions so carrier audio passes through untranscoded.
const audioFormatG711ULaw = "g711_ulaw"

// vadServer selects server-side voice activity detection.
const vadServer = "server_vad"

// sessionConfig is the session.update payload.
type sessionConfig struct {
	Modalities        []string       `json:"modalities,omitempty"`
	Instructions      string         `json:"instructions,omitempty"`
	Voice             string         `json:"voice,omitempty"`
	InputAudioFormat  string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat string         `json:"output_audio_format,omitempty"`
	TurnDetection     *turnDetection `json:"turn_detection,omitempty"`
	Tools             []tool         `json:"tools,omitempty"`
	ToolChoice        string         `json:"tool_choice,omitempty"`
}

// turnDetection configures server VAD.
type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}

// tool is a function definition in the provider's schema.
type tool struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// serverEvent is the subset of the provider's event envelope the
// bridge consumes. Unknown fields are ignored.
type serverEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`

	// Delta carries base64 audio for response.audio.delta.
	Delta string `json:"delta,omitempty"`

	// Function call fields for response.function_call_arguments.done.
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// Error detail for error events.
	Error *eventError `json:"error,omitempty"`
}

// eventError is the provider's error detail payload.
type eventError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *eventError) toError() error {
	if e.Code != "" {
		return fmt.Errorf("openairt: %s: %s", e.Code, e.Message)
	}
	return fmt.Errorf("openairt: %s: %s", e.Type, e.Message)
}
