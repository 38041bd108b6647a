package audio

import (
	"fmt"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// vorbisStrategy decodes Ogg/Vorbis streams to float samples.
type vorbisStrategy struct{}

func (vorbisStrategy) Name() string { return "oggvorbis" }

func (vorbisStrategy) Decode(path string) (Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return Raw{}, fmt.Errorf("open ogg: %w", err)
	}
	defer f.Close()

	samples, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return Raw{}, fmt.Errorf("read vorbis: %w", err)
	}
	if len(samples) == 0 {
		return Raw{}, fmt.Errorf("vorbis stream contains no samples")
	}

	return Raw{
		Channels:   deinterleave(samples, format.Channels),
		SampleRate: format.SampleRate,
	}, nil
}
