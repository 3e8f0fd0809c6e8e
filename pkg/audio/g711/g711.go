// Package g711 implements the μ-law half of ITU-T G.711 companding,
// plus the small set of PCM conversions the voice bridge needs:
// μ-law byte ↔ 16-bit linear sample, buffer-level transcoding,
// 48 kHz → 8 kHz decimation, and base64 framing of little-endian PCM.
//
// All functions are stateless and safe for concurrent use.
package g711

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

const (
	// bias is the μ-law bias added before segment lookup.
	bias = 0x84
	// clip is the maximum magnitude representable after biasing.
	clip = 32635
)

// decodeTable maps every μ-law byte to its linear PCM sample.
// Built once at init from the sign/exponent/mantissa decomposition.
var decodeTable [256]int16

func init() {
	for i := range decodeTable {
		decodeTable[i] = decodeSample(byte(i))
	}
}

// DecodeSample converts one μ-law byte to a 16-bit linear PCM sample.
func DecodeSample(b byte) int16 {
	return decodeTable[b]
}

func decodeSample(b byte) int16 {
	b = ^b
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	magnitude := ((int32(mantissa) << 3) + bias) << exponent
	magnitude -= bias
	if b&0x80 != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// EncodeSample converts a 16-bit linear PCM sample to one μ-law byte.
func EncodeSample(s int16) byte {
	v := int32(s)
	var sign byte
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > clip {
		v = clip
	}
	v += bias

	exponent := byte(7)
	for mask := int32(0x4000); v&mask == 0 && exponent > 0; exponent-- {
		mask >>= 1
	}
	mantissa := byte(v>>(exponent+3)) & 0x0F

	return ^(sign | exponent<<4 | mantissa)
}

// Decode converts a μ-law buffer to little-endian 16-bit linear PCM.
// The result is exactly twice the input length.
func Decode(mu []byte) []byte {
	pcm := make([]byte, len(mu)*2)
	for i, b := range mu {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(decodeTable[b]))
	}
	return pcm
}

// Encode converts little-endian 16-bit linear PCM to μ-law.
// The input length must be even.
func Encode(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("g711: odd PCM buffer length %d", len(pcm))
	}
	mu := make([]byte, len(pcm)/2)
	for i := range mu {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		mu[i] = EncodeSample(s)
	}
	return mu, nil
}

// Decimate48To8 reduces 48 kHz little-endian PCM to 8 kHz by keeping
// every 6th sample. No anti-aliasing filter is applied; the result is
// lossy and only intended for narrowband telephony playback.
func Decimate48To8(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("g711: odd PCM buffer length %d", len(pcm))
	}
	samples := len(pcm) / 2
	out := make([]byte, 0, (samples/6+1)*2)
	for i := 0; i < samples; i += 6 {
		out = append(out, pcm[i*2], pcm[i*2+1])
	}
	return out, nil
}

// EncodeBase64 encodes an audio buffer with standard base64, the
// framing both the carrier and the upstream providers use.
func EncodeBase64(buf []byte) string {
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeBase64 decodes a standard-base64 audio payload.
func DecodeBase64(s string) ([]byte, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("g711: invalid base64 payload: %w", err)
	}
	return buf, nil
}
