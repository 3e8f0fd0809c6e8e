package evi

import "fmt"

// Outbound message types.
const (
	msgTypeSessionSettings = "session_settings"
	msgTypeAudioInput      = "audio_input"
	msgTypeToolResponse    = "tool_response"
	msgTypeToolError       = "tool_error"
)

// Inbound message types.
const (
	msgTypeChatMetadata     = "chat_metadata"
	msgTypeAudioOutput      = "audio_output"
	msgTypeToolCall         = "tool_call"
	msgTypeUserInterruption = "user_interruption"
	msgTypeError            = "error"
)

// encodingLinear16 is the input encoding the provider expects.
const encodingLinear16 = "linear16"

// sessionSettings is the configuration message sent immediately after
// the socket opens.
type sessionSettings struct {
	Type         string         `json:"type"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Audio        *audioSettings `json:"audio,omitempty"`
	VAD          *vadSettings   `json:"vad,omitempty"`
	Tools        []tool         `json:"tools,omitempty"`
}

// audioSettings declares the inbound audio format.
type audioSettings struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// vadSettings tunes turn taking.
type vadSettings struct {
	Threshold         float64 `json:"threshold,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}

// tool declares one callable function. Unlike the realtime-model API,
// this provider takes the parameter schema as a JSON-encoded string.
type tool struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  string `json:"parameters,omitempty"`
}

// audioInput carries one chunk of caller audio.
type audioInput struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// toolResponse returns an action result for a tool call.
type toolResponse struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// inboundMessage is the subset of the provider's envelope the bridge
// consumes. Unknown fields are ignored.
type inboundMessage struct {
	Type string `json:"type"`

	// Data carries base64 audio for audio_output: a complete WAV file
	// at the provider's synthesis rate.
	Data string `json:"data,omitempty"`

	// Tool call fields.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Parameters string `json:"parameters,omitempty"`

	// Chat metadata.
	ChatID string `json:"chat_id,omitempty"`

	// Error fields.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (m *inboundMessage) toError() error {
	if m.Code != "" {
		return fmt.Errorf("evi: %s: %s", m.Code, m.Message)
	}
	return fmt.Errorf("evi: %s", m.Message)
}
