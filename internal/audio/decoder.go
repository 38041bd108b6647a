package audio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/recitelabs/whisperd/internal/config"
)

// Strategy is one candidate path for turning a file's bytes into raw PCM.
type Strategy interface {
	Name() string
	Decode(path string) (Raw, error)
}

// StrategyError records why a single strategy rejected a file.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e StrategyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

func (e StrategyError) Unwrap() error { return e.Err }

// DecodeError reports that every strategy was exhausted for a file.
type DecodeError struct {
	Path     string
	Attempts []StrategyError
}

func (e *DecodeError) Error() string {
	reasons := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		reasons = append(reasons, a.Error())
	}
	return fmt.Sprintf("failed to decode %s, tried all strategies: %s", e.Path, strings.Join(reasons, "; "))
}

// containerPriorityExts are container families generic decoders handle
// poorly; for these the external converter is tried first.
var containerPriorityExts = map[string]bool{
	".m4a": true,
	".mp4": true,
	".aac": true,
}

// Decoder attempts an ordered chain of decode strategies, short-circuiting
// on the first success.
type Decoder struct {
	native    []Strategy
	converter Strategy
	log       *slog.Logger
}

func NewDecoder(cfg config.AudioConfig, log *slog.Logger) *Decoder {
	return &Decoder{
		native: []Strategy{
			wavStrategy{},
			mp3Strategy{},
			vorbisStrategy{},
		},
		converter: ffmpegStrategy{
			binary:     cfg.FFmpegPath,
			timeout:    cfg.FFmpegTimeout(),
			targetRate: cfg.TargetSampleRate,
		},
		log: log,
	}
}

// Decode reads the file at path into a Raw waveform. The strategy order
// depends on the file extension: extensions in the poorly-supported
// container family go straight to the external converter, everything else
// runs the native decoders first and falls back to conversion.
func (d *Decoder) Decode(path string) (Raw, error) {
	if _, err := os.Stat(path); err != nil {
		return Raw{}, fmt.Errorf("audio file not readable: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	chain := make([]Strategy, 0, len(d.native)+1)
	if containerPriorityExts[ext] {
		chain = append(chain, d.converter)
		chain = append(chain, d.native...)
	} else {
		chain = append(chain, d.native...)
		chain = append(chain, d.converter)
	}

	decodeErr := &DecodeError{Path: path}
	for _, s := range chain {
		raw, err := s.Decode(path)
		if err == nil {
			d.log.Debug("decoded audio file",
				slog.String("strategy", s.Name()),
				slog.String("path", path),
				slog.Int("channels", len(raw.Channels)),
				slog.Int("sample_rate", raw.SampleRate))
			return raw, nil
		}
		d.log.Debug("decode strategy failed",
			slog.String("strategy", s.Name()),
			slog.String("error", err.Error()))
		decodeErr.Attempts = append(decodeErr.Attempts, StrategyError{Strategy: s.Name(), Err: err})
	}
	return Raw{}, decodeErr
}
