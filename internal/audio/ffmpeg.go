package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

var (
	// ErrToolMissing reports that the external converter binary is not
	// installed on this host.
	ErrToolMissing = errors.New("ffmpeg binary not found")
	// ErrConvertTimeout reports that the conversion exceeded its deadline.
	ErrConvertTimeout = errors.New("ffmpeg conversion timed out")
)

// ffmpegStrategy shells out to ffmpeg to transcode the file into a mono
// 16-bit PCM WAV at the target rate, then decodes that intermediate. The
// intermediate file is removed on every exit path.
type ffmpegStrategy struct {
	binary     string
	timeout    time.Duration
	targetRate int
}

func (ffmpegStrategy) Name() string { return "ffmpeg" }

func (s ffmpegStrategy) Decode(path string) (Raw, error) {
	if _, err := exec.LookPath(s.binary); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Raw{}, fmt.Errorf("%w: %q", ErrToolMissing, s.binary)
		}
		return Raw{}, fmt.Errorf("locate converter: %w", err)
	}

	tmp, err := os.CreateTemp("", "whisperd_convert_*.wav")
	if err != nil {
		return Raw{}, fmt.Errorf("create intermediate file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.binary,
		"-i", path,
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(s.targetRate),
		"-ac", "1",
		"-y",
		tmpPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Raw{}, fmt.Errorf("%w after %s", ErrConvertTimeout, s.timeout)
		}
		return Raw{}, fmt.Errorf("ffmpeg failed: %w: %s", err, stderr.String())
	}

	return wavStrategy{}.Decode(tmpPath)
}
