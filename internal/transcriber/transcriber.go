// Package transcriber defines the contract to the acoustic model and its
// implementations. The model itself is an external capability: loading,
// tokenization and beam search are owned by whatever backs the interface.
package transcriber

import (
	"context"
	"errors"

	"github.com/recitelabs/whisperd/internal/audio"
)

// ErrNotReady reports a transcription attempt before a successful load.
var ErrNotReady = errors.New("model not loaded")

// Transcriber converts canonical audio into text.
type Transcriber interface {
	// LoadOnce loads the model. Idempotent: only the first successful
	// call has effect, concurrent callers coalesce onto one load, and a
	// failed load may be retried.
	LoadOnce(ctx context.Context) error
	// Transcribe requires a completed LoadOnce and fails fast with
	// ErrNotReady otherwise.
	Transcribe(ctx context.Context, clip audio.Canonical) (string, error)
}
