package transcriber

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/recitelabs/whisperd/internal/audio"
)

// Mock is an in-process Transcriber for tests and for running the server
// without model weights. It counts real loads so tests can observe the
// single-load guarantee.
type Mock struct {
	LoadErr       error
	Reply         string
	TranscribeErr error

	loadCount atomic.Int64
	mu        sync.Mutex
	loaded    bool
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) LoadOnce(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}
	if m.LoadErr != nil {
		return m.LoadErr
	}
	m.loadCount.Add(1)
	m.loaded = true
	return nil
}

func (m *Mock) Transcribe(_ context.Context, clip audio.Canonical) (string, error) {
	m.mu.Lock()
	loaded := m.loaded
	m.mu.Unlock()
	if !loaded {
		return "", ErrNotReady
	}
	if m.TranscribeErr != nil {
		return "", m.TranscribeErr
	}
	if m.Reply != "" {
		return m.Reply, nil
	}
	return fmt.Sprintf("[mock transcript samples=%d]", len(clip.Samples)), nil
}

// LoadCount reports how many real loads happened.
func (m *Mock) LoadCount() int64 {
	return m.loadCount.Load()
}
