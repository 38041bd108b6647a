package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// mp3Strategy decodes MPEG layer 3 streams. go-mp3 always emits 16-bit
// little-endian stereo frames regardless of the source channel layout.
type mp3Strategy struct{}

func (mp3Strategy) Name() string { return "mp3" }

func (mp3Strategy) Decode(path string) (Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return Raw{}, fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return Raw{}, fmt.Errorf("parse mp3: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return Raw{}, fmt.Errorf("read mp3 pcm: %w", err)
	}
	if len(pcm) < 4 {
		return Raw{}, fmt.Errorf("mp3 contains no samples")
	}
	pcm = pcm[:len(pcm)-len(pcm)%4]

	const channels = 2
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}

	return Raw{
		Channels:   deinterleave(samples, channels),
		SampleRate: dec.SampleRate(),
	}, nil
}
