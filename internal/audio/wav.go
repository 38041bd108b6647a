package audio

import (
	"fmt"
	"math"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavStrategy decodes PCM WAV containers with go-audio.
type wavStrategy struct{}

func (wavStrategy) Name() string { return "wav" }

func (wavStrategy) Decode(path string) (Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return Raw{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Raw{}, fmt.Errorf("not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Raw{}, fmt.Errorf("read wav pcm: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return Raw{}, fmt.Errorf("wav contains no samples")
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(1.0 / float64(int64(1)<<(bitDepth-1)))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) * scale
	}

	return Raw{
		Channels:   deinterleave(samples, channels),
		SampleRate: buf.Format.SampleRate,
	}, nil
}

// WriteWAV encodes interleaved float samples as a 16-bit PCM WAV file.
// Samples outside [-1, 1] are clipped.
func WriteWAV(f *os.File, samples []float32, sampleRate, channels int) error {
	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:   make([]int, len(samples)),
	}
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		buf.Data[i] = int(v)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
