package bridge

import "encoding/base64"

// Carrier media-stream protocol: JSON text messages over a WebSocket,
// discriminated by the "event" field. The carrier opens the socket,
// announces the stream with "start", then sends base64 μ-law audio in
// "media" messages until "stop". The bridge sends "media" back for
// agent speech, "mark" echoes, and "clear" to flush queued playback.
const (
	eventConnected = "connected"
	eventStart     = "start"
	eventMedia     = "media"
	eventStop      = "stop"
	eventMark      = "mark"
	eventClear     = "clear"
)

// markPlaybackCleared is the marker placed after a barge-in clear; the
// carrier echoes it once its playback queue has drained.
const markPlaybackCleared = "playback-cleared"

// Custom parameter keys the carrier is configured to attach to the
// start message.
const (
	paramEnvironment = "environment"
	paramToken       = "token"
	paramCaller      = "caller"
)

type carrierMessage struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSid      string        `json:"streamSid,omitempty"`
	Start          *startPayload `json:"start,omitempty"`
	Media          *mediaPayload `json:"media,omitempty"`
	Stop           *stopPayload  `json:"stop,omitempty"`
	Mark           *markPayload  `json:"mark,omitempty"`
}

type startPayload struct {
	StreamSid        string            `json:"streamSid"`
	AccountSid       string            `json:"accountSid,omitempty"`
	CallSid          string            `json:"callSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      mediaFormat       `json:"mediaFormat"`
}

type mediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type mediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	// Payload is one frame of base64-encoded 8 kHz μ-law audio.
	Payload string `json:"payload"`
}

type stopPayload struct {
	AccountSid string `json:"accountSid,omitempty"`
	CallSid    string `json:"callSid,omitempty"`
}

type markPayload struct {
	Name string `json:"name"`
}

func mediaMessage(streamSid string, frame []byte) *carrierMessage {
	return &carrierMessage{
		Event:     eventMedia,
		StreamSid: streamSid,
		Media:     &mediaPayload{Payload: base64.StdEncoding.EncodeToString(frame)},
	}
}

func markMessage(streamSid, name string) *carrierMessage {
	return &carrierMessage{
		Event:     eventMark,
		StreamSid: streamSid,
		Mark:      &markPayload{Name: name},
	}
}

func clearMessage(streamSid string) *carrierMessage {
	return &carrierMessage{Event: eventClear, StreamSid: streamSid}
}
