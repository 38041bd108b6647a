package audio

import (
	"errors"
	"log/slog"
)

// ErrEmptyAudio reports that normalization produced a zero-length waveform.
var ErrEmptyAudio = errors.New("empty audio")

// Normalizer converts a Raw waveform into the Canonical model input.
// Stage order is fixed: channel mixdown, then resample, then peak
// normalization. Mixing down first keeps resampling single-pass and
// phase-consistent; normalizing last reflects the final channel and rate.
type Normalizer struct {
	targetRate int
	log        *slog.Logger
}

func NewNormalizer(targetRate int, log *slog.Logger) *Normalizer {
	return &Normalizer{targetRate: targetRate, log: log}
}

// Normalize produces a mono, target-rate, peak-normalized waveform.
// Total silence is passed through unscaled with Silent set; a zero-length
// result fails with ErrEmptyAudio.
func (n *Normalizer) Normalize(raw Raw) (Canonical, error) {
	mono := mixdown(raw.Channels)

	if len(mono) > 0 && raw.SampleRate != n.targetRate {
		mono = resample(mono, raw.SampleRate, n.targetRate)
	}

	silent := false
	var peak float32
	for _, s := range mono {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak > 0 {
		inv := 1 / peak
		for i := range mono {
			mono[i] *= inv
		}
	} else if len(mono) > 0 {
		silent = true
		n.log.Warn("audio appears to be silent, skipping peak normalization")
	}

	if len(mono) == 0 {
		return Canonical{}, ErrEmptyAudio
	}

	return Canonical{Samples: mono, SampleRate: n.targetRate, Silent: silent}, nil
}

// mixdown averages all channels sample-wise into one.
func mixdown(channels [][]float32) []float32 {
	switch len(channels) {
	case 0:
		return nil
	case 1:
		out := make([]float32, len(channels[0]))
		copy(out, channels[0])
		return out
	}

	frames := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) < frames {
			frames = len(ch)
		}
	}
	out := make([]float32, frames)
	scale := 1 / float32(len(channels))
	for i := 0; i < frames; i++ {
		var sum float32
		for _, ch := range channels {
			sum += ch[i]
		}
		out[i] = sum * scale
	}
	return out
}

// resample converts a mono waveform between sample rates using cubic
// Hermite interpolation. Deterministic: identical input always yields
// identical output.
func resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}

	outLen := int(float64(len(in)) * float64(to) / float64(from))
	if outLen == 0 {
		outLen = 1
	}
	step := float64(from) / float64(to)

	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		frac := float32(pos - float64(idx))

		x0 := sampleAt(in, idx-1)
		x1 := sampleAt(in, idx)
		x2 := sampleAt(in, idx+1)
		x3 := sampleAt(in, idx+2)

		// Catmull-Rom spline through the four neighbors.
		out[i] = x1 + 0.5*frac*(x2-x0+frac*(2*x0-5*x1+4*x2-x3+frac*(3*(x1-x2)+x3-x0)))
	}
	return out
}

func sampleAt(in []float32, i int) float32 {
	if i < 0 {
		i = 0
	}
	if i >= len(in) {
		i = len(in) - 1
	}
	return in[i]
}
