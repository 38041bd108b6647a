package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/recitelabs/whisperd/internal/audio"
	"github.com/recitelabs/whisperd/internal/config"
)

type execTranscriber struct {
	cmd    []string
	cfg    config.ModelConfig
	mu     sync.Mutex
	loaded bool
}

type execResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// NewExec builds a Transcriber that shells out to an inference command.
// The command receives a mono WAV via --audio and must print a JSON
// object {"text": ..., "confidence": ...} on stdout.
func NewExec(cfg config.ModelConfig) (Transcriber, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse model command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("model command is empty")
	}
	return &execTranscriber{cmd: args, cfg: cfg}, nil
}

func (t *execTranscriber) LoadOnce(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loaded {
		return nil
	}
	if _, err := exec.LookPath(t.cmd[0]); err != nil {
		return fmt.Errorf("inference command unavailable: %w", err)
	}
	if t.cfg.ModelPath != "" {
		if _, err := os.Stat(t.cfg.ModelPath); err != nil {
			return fmt.Errorf("model weights unavailable: %w", err)
		}
	}
	t.loaded = true
	return nil
}

func (t *execTranscriber) Transcribe(ctx context.Context, clip audio.Canonical) (string, error) {
	t.mu.Lock()
	loaded := t.loaded
	t.mu.Unlock()
	if !loaded {
		return "", ErrNotReady
	}

	file, err := os.CreateTemp("", "whisperd_infer_*.wav")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())

	if err := audio.WriteWAV(file, clip.Samples, clip.SampleRate, 1); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	args := append([]string{}, t.cmd[1:]...)
	args = append(args, "--audio", file.Name())
	if t.cfg.ModelPath != "" {
		args = append(args, "--model", t.cfg.ModelPath)
	}
	if t.cfg.Language != "" {
		args = append(args, "--language", t.cfg.Language)
	}

	command := exec.CommandContext(ctx, t.cmd[0], args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("inference command failed: %w: %s", err, stderr.String())
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("decode inference response: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
