package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/recitelabs/whisperd/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	cfg := config.StoreConfig{RetentionMode: "ephemeral"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Append(context.Background(), Record{Status: "ok"}); err != nil {
		t.Fatalf("ephemeral append must be a no-op: %v", err)
	}
	records, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if records != nil {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestAppendAndRecent(t *testing.T) {
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "transcripts.db"), RetentionMode: "persistent"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	rec := Record{
		RequestID:  "req-1",
		Filename:   "surah.mp3",
		Page:       "604",
		Ayah:       "3",
		Status:     "ok",
		Text:       "bismillah",
		DurationMS: 420,
	}
	if err := s.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(context.Background(), Record{RequestID: "req-2", Status: "error"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].RequestID != "req-2" {
		t.Fatalf("expected newest first, got %s", records[0].RequestID)
	}
	if records[1].Text != "bismillah" || records[1].Page != "604" {
		t.Fatalf("unexpected record: %+v", records[1])
	}
}

func TestPruneByDays(t *testing.T) {
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "transcripts.db"), RetentionMode: "persistent", RetentionDays: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.Append(context.Background(), Record{RequestID: "old", Status: "ok"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.Append(context.Background(), Record{RequestID: "new", Status: "ok"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	records, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 1 || records[0].RequestID != "new" {
		t.Fatalf("expected only the new record to survive, got %+v", records)
	}
}
