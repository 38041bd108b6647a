// Package audio turns uploaded audio files of arbitrary container/codec
// into the canonical waveform the acoustic model consumes: one channel,
// fixed sample rate, peak-normalized float samples.
package audio

import "time"

// Raw is a decoded waveform as produced by one of the decode strategies.
// Samples are split per channel and already scaled into [-1, 1] according
// to the source bit depth. Immutable once constructed.
type Raw struct {
	Channels   [][]float32
	SampleRate int
}

// Frames returns the number of samples per channel.
func (r Raw) Frames() int {
	if len(r.Channels) == 0 {
		return 0
	}
	return len(r.Channels[0])
}

// Duration returns the playback length of the waveform.
func (r Raw) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(r.Frames()) / float64(r.SampleRate) * float64(time.Second))
}

// Canonical is the model-ready waveform: mono, fixed sample rate, peak
// amplitude 1.0 unless the input was total silence.
type Canonical struct {
	Samples    []float32
	SampleRate int
	// Silent reports that the input had zero peak amplitude and peak
	// normalization was skipped.
	Silent bool
}

// Duration returns the playback length of the waveform.
func (c Canonical) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// deinterleave splits an interleaved sample block into per-channel slices.
func deinterleave(samples []float32, channels int) [][]float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out[ch][i] = samples[i*channels+ch]
		}
	}
	return out
}
