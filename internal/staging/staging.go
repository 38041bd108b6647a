// Package staging handles request-scoped on-disk staging of uploaded
// audio bytes with best-effort cleanup.
package staging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// recognizedExts are upload extensions preserved on the staged file so
// the decoder can use them as a strategy hint.
var recognizedExts = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".aac":  true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".flac": true,
	".webm": true,
	".amr":  true,
	".wma":  true,
}

// defaultExt is used when the upload name carries no recognized extension.
const defaultExt = ".wav"

// StagedFile is a temporary on-disk copy of an upload, owned exclusively
// by the request that created it.
type StagedFile struct {
	Path string
	Ext  string
	Size int64
}

// Store writes uploads into a temp directory and deletes them again.
type Store struct {
	dir string
	log *slog.Logger
}

// New creates a Store. An empty dir means the system temp directory.
func New(dir string, log *slog.Logger) *Store {
	return &Store{dir: dir, log: log}
}

// Stage writes the upload to a uniquely named file whose extension is
// inferred case-insensitively from the original upload name.
func (s *Store) Stage(name string, r io.Reader) (*StagedFile, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !recognizedExts[ext] {
		ext = defaultExt
	}

	f, err := os.CreateTemp(s.dir, "whisperd_upload_*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	size, err := io.Copy(f, r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("write staged file: %w", err)
	}

	s.log.Debug("staged upload",
		slog.String("path", f.Name()),
		slog.Int64("size", size))

	return &StagedFile{Path: f.Name(), Ext: ext, Size: size}, nil
}

// Release deletes the staged file. Failures are logged, not propagated;
// every code path that staged a file must call Release exactly once.
func (s *Store) Release(f *StagedFile) {
	if f == nil {
		return
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to remove staged file",
			slog.String("path", f.Path),
			slog.String("error", err.Error()))
		return
	}
	s.log.Debug("released staged file", slog.String("path", f.Path))
}
