// Package wave implements a minimal RIFF/WAVE reader.
//
// The empathic voice provider delivers each synthesized audio chunk as
// a self-contained WAV file. The bridge only needs to unwrap the PCM
// payload and confirm the format, so this package parses just enough
// of the container: the fmt chunk and the data chunk.
package wave

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNotWave is returned when the buffer does not start with a
// RIFF/WAVE header.
var ErrNotWave = errors.New("wave: not a RIFF/WAVE buffer")

// formatPCM is the only wFormatTag this reader accepts.
const formatPCM = 1

// Info holds the decoded format and payload of a WAV buffer.
type Info struct {
	SampleRate int
	Channels   int
	Depth      int

	// Data is the raw PCM payload, little-endian.
	Data []byte
}

// Decode parses a complete in-memory WAV buffer.
func Decode(buf []byte) (*Info, error) {
	if len(buf) < 12 || string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WAVE" {
		return nil, ErrNotWave
	}

	info := &Info{}
	sawFmt := false

	// Walk the chunk list. Chunks are word-aligned.
	pos := 12
	for pos+8 <= len(buf) {
		id := string(buf[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(buf[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(buf) {
			return nil, fmt.Errorf("wave: truncated %q chunk", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("wave: fmt chunk too short (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(buf[body:])
			if format != formatPCM {
				return nil, fmt.Errorf("wave: unsupported format tag %d", format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(buf[body+2:]))
			info.SampleRate = int(binary.LittleEndian.Uint32(buf[body+4:]))
			info.Depth = int(binary.LittleEndian.Uint16(buf[body+14:]))
			sawFmt = true
		case "data":
			info.Data = buf[body : body+size]
		}

		pos = body + size
		if size%2 != 0 {
			pos++ // padding byte
		}
	}

	if !sawFmt {
		return nil, errors.New("wave: missing fmt chunk")
	}
	if info.Data == nil {
		return nil, errors.New("wave: missing data chunk")
	}
	return info, nil
}

// Encode wraps little-endian PCM data in a minimal WAV container.
// Used by tests and debugging tools; the bridge itself only decodes.
func Encode(sampleRate, channels, depth int, data []byte) []byte {
	blockAlign := channels * depth / 8
	byteRate := sampleRate * blockAlign

	buf := make([]byte, 0, 44+len(data))
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+len(data)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, formatPCM)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(byteRate))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(depth))
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	return buf
}
