package audio

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/recitelabs/whisperd/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testAudioConfig() config.AudioConfig {
	return config.Default().Audio
}

// writeToneWAV writes a pure 440 Hz tone as a 16-bit PCM WAV file.
func writeToneWAV(t *testing.T, path string, sampleRate, channels int, seconds float64) {
	t.Helper()
	frames := int(float64(sampleRate) * seconds)
	samples := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()
	if err := WriteWAV(f, samples, sampleRate, channels); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestDecodeStereoWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeToneWAV(t, path, 44100, 2, 2.0)

	dec := NewDecoder(testAudioConfig(), newLogger())
	raw, err := dec.Decode(path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(raw.Channels))
	}
	if raw.SampleRate != 44100 {
		t.Fatalf("expected 44100 Hz, got %d", raw.SampleRate)
	}
	if raw.Frames() != 88200 {
		t.Fatalf("expected 88200 frames, got %d", raw.Frames())
	}
	for _, s := range raw.Channels[0][:100] {
		if s < -1 || s > 1 {
			t.Fatalf("sample out of range: %f", s)
		}
	}
}

func TestDecodeMissingFile(t *testing.T) {
	dec := NewDecoder(testAudioConfig(), newLogger())
	if _, err := dec.Decode(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDecodeExhaustsStrategies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.xyz")
	if err := os.WriteFile(path, []byte("definitely not audio data at all"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	dec := NewDecoder(testAudioConfig(), newLogger())
	_, err := dec.Decode(path)
	if err == nil {
		t.Fatal("expected decode failure")
	}

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
	if decodeErr.Path != path {
		t.Fatalf("expected path %s in error, got %s", path, decodeErr.Path)
	}
	if len(decodeErr.Attempts) != 4 {
		t.Fatalf("expected 4 strategy attempts, got %d", len(decodeErr.Attempts))
	}
	if !strings.Contains(err.Error(), "wav") {
		t.Fatalf("expected strategy names in error, got %q", err.Error())
	}
}

func TestConvertTimeout(t *testing.T) {
	// Stand in for a converter that hangs on its input.
	script := filepath.Join(t.TempDir(), "slow-ffmpeg")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755); err != nil {
		t.Fatalf("write stub converter: %v", err)
	}

	s := ffmpegStrategy{binary: script, timeout: 200 * time.Millisecond, targetRate: 16000}
	_, err := s.Decode(filepath.Join(t.TempDir(), "clip.m4a"))
	if err == nil {
		t.Fatal("expected conversion timeout")
	}
	if !errors.Is(err, ErrConvertTimeout) {
		t.Fatalf("expected ErrConvertTimeout, got %v", err)
	}
}

func TestContainerExtensionTriesConverterFirst(t *testing.T) {
	// With a bogus converter binary an .m4a file must surface the
	// tool-missing condition among the attempts.
	path := filepath.Join(t.TempDir(), "clip.m4a")
	if err := os.WriteFile(path, []byte("not an mp4 container"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := testAudioConfig()
	cfg.FFmpegPath = "definitely-not-installed-ffmpeg"
	dec := NewDecoder(cfg, newLogger())

	_, err := dec.Decode(path)
	if err == nil {
		t.Fatal("expected decode failure")
	}
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
	if decodeErr.Attempts[0].Strategy != "ffmpeg" {
		t.Fatalf("expected converter attempted first for .m4a, got %s", decodeErr.Attempts[0].Strategy)
	}
	if !errors.Is(decodeErr.Attempts[0].Err, ErrToolMissing) {
		t.Fatalf("expected tool-missing error, got %v", decodeErr.Attempts[0].Err)
	}
}
