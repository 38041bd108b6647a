package transcriber

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/recitelabs/whisperd/internal/audio"
	"github.com/recitelabs/whisperd/internal/config"
)

func TestMockLoadOnceIsSingleUnderConcurrency(t *testing.T) {
	m := NewMock()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.LoadOnce(context.Background()); err != nil {
				t.Errorf("load: %v", err)
			}
		}()
	}
	wg.Wait()

	if m.LoadCount() != 1 {
		t.Fatalf("expected exactly 1 load, got %d", m.LoadCount())
	}
}

func TestMockFailedLoadIsRetryable(t *testing.T) {
	m := NewMock()
	m.LoadErr = errors.New("weights missing")

	if err := m.LoadOnce(context.Background()); err == nil {
		t.Fatal("expected load failure")
	}
	if _, err := m.Transcribe(context.Background(), audio.Canonical{}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	m.LoadErr = nil
	if err := m.LoadOnce(context.Background()); err != nil {
		t.Fatalf("retry load: %v", err)
	}
	if m.LoadCount() != 1 {
		t.Fatalf("expected 1 successful load, got %d", m.LoadCount())
	}
}

func TestTranscribeBeforeLoadFailsFast(t *testing.T) {
	m := NewMock()
	clip := audio.Canonical{Samples: make([]float32, 16000), SampleRate: 16000}
	if _, err := m.Transcribe(context.Background(), clip); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestNewExecRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExec(config.ModelConfig{Command: ""}); err == nil {
		t.Fatal("expected error for empty command")
	}
	if _, err := NewExec(config.ModelConfig{Command: "unbalanced 'quote"}); err == nil {
		t.Fatal("expected parse error for unbalanced quote")
	}
}

func TestExecLoadFailsWhenCommandMissing(t *testing.T) {
	tr, err := NewExec(config.ModelConfig{Command: "definitely-not-an-installed-binary --json"})
	if err != nil {
		t.Fatalf("new exec: %v", err)
	}
	if err := tr.LoadOnce(context.Background()); err == nil {
		t.Fatal("expected load failure for missing binary")
	}
	clip := audio.Canonical{Samples: make([]float32, 160), SampleRate: 16000}
	if _, err := tr.Transcribe(context.Background(), clip); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}
