package wave

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeRoundTrip(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6}
	buf := Encode(48000, 1, 16, data)

	info, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if info.SampleRate != 48000 || info.Channels != 1 || info.Depth != 16 {
		t.Errorf("format = %d Hz / %d ch / %d bit", info.SampleRate, info.Channels, info.Depth)
	}
	if !bytes.Equal(info.Data, data) {
		t.Errorf("data = %v, want %v", info.Data, data)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Run("not wave", func(t *testing.T) {
		if _, err := Decode([]byte("OggS....")); !errors.Is(err, ErrNotWave) {
			t.Errorf("err = %v, want ErrNotWave", err)
		}
	})

	t.Run("truncated data chunk", func(t *testing.T) {
		buf := Encode(8000, 1, 16, []byte{1, 2, 3, 4})
		if _, err := Decode(buf[:len(buf)-2]); err == nil {
			t.Error("Decode accepted truncated buffer")
		}
	})

	t.Run("missing fmt", func(t *testing.T) {
		buf := []byte("RIFF\x04\x00\x00\x00WAVE")
		if _, err := Decode(buf); err == nil {
			t.Error("Decode accepted buffer without fmt chunk")
		}
	})

	t.Run("non-pcm format", func(t *testing.T) {
		buf := Encode(8000, 1, 16, nil)
		buf[20] = 6 // wFormatTag = A-law
		if _, err := Decode(buf); err == nil {
			t.Error("Decode accepted non-PCM format")
		}
	})
}
