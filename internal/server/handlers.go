package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/recitelabs/whisperd/internal/audio"
	"github.com/recitelabs/whisperd/internal/events"
	"github.com/recitelabs/whisperd/internal/store"
)

const healthProbeTimeout = 10 * time.Second

type healthResponse struct {
	Status      string    `json:"status"`
	Model       string    `json:"model"`
	Device      string    `json:"device"`
	ModelStatus string    `json:"model_status,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Version     string    `json:"version"`
}

type modelInfoResponse struct {
	ModelName        string   `json:"model_name"`
	Device           string   `json:"device"`
	TargetSampleRate int      `json:"target_sample_rate"`
	MaxAudioLength   int      `json:"max_audio_length"`
	SpecializedFor   string   `json:"specialized_for"`
	ModelType        string   `json:"model_type"`
	Languages        []string `json:"languages"`
}

type transcribeError struct {
	Error          string  `json:"error"`
	Details        string  `json:"details,omitempty"`
	MaxSize        string  `json:"max_size,omitempty"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth reports readiness. When the model is loaded it runs a
// one-second silence probe through the full inference path so "healthy"
// means the model actually answers, not just that the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	resp := healthResponse{
		Model:     s.cfg.Model.Name,
		Device:    s.cfg.Model.Device,
		Timestamp: now,
		Version:   serviceVersion,
	}

	if err := s.ensureReady(r.Context()); err != nil {
		resp.Status = "initializing"
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	probe := audio.Canonical{
		Samples:    make([]float32, s.cfg.Audio.TargetSampleRate),
		SampleRate: s.cfg.Audio.TargetSampleRate,
		Silent:     true,
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()
	if _, err := s.transcriber.Transcribe(ctx, probe); err != nil {
		s.log.Error("health probe failed", slog.String("error", err.Error()))
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	resp.Status = "healthy"
	resp.ModelStatus = "ready"
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureReady(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Server not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, modelInfoResponse{
		ModelName:        s.cfg.Model.Name,
		Device:           s.cfg.Model.Device,
		TargetSampleRate: s.cfg.Audio.TargetSampleRate,
		MaxAudioLength:   s.cfg.Audio.MaxDurationSeconds,
		SpecializedFor:   "Quranic Arabic recitation",
		ModelType:        "Whisper Tiny",
		Languages:        []string{"Arabic (Quranic)"},
	})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	log := s.log.With(slog.String("request_id", requestID))

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.HTTP.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("upload rejected: too large", slog.Int64("limit_bytes", s.cfg.HTTP.MaxUploadBytes))
			writeJSON(w, http.StatusRequestEntityTooLarge, transcribeError{
				Error:   "File too large",
				MaxSize: fmt.Sprintf("%dMB", s.cfg.HTTP.MaxUploadBytes/(1024*1024)),
			})
			return
		}
		// A part with an empty filename parses as a plain form value, the
		// shape a browser submit with no file chosen produces.
		if errors.Is(err, http.ErrMissingFile) && r.MultipartForm != nil {
			if _, found := r.MultipartForm.Value["file"]; found {
				writeJSON(w, http.StatusBadRequest, transcribeError{Error: "No file selected"})
				return
			}
		}
		writeJSON(w, http.StatusBadRequest, transcribeError{Error: "No audio file provided"})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, transcribeError{Error: "No file selected"})
		return
	}

	page := r.URL.Query().Get("page")
	ayah := r.URL.Query().Get("ayah")
	log.Info("transcription request received",
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size),
		slog.String("page", page),
		slog.String("ayah", ayah))

	fail := func(err error) {
		elapsed := time.Since(start)
		log.Error("transcription failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", elapsed))
		s.metrics.recordRequest(r.Context(), "error", elapsed)
		s.appendRecord(store.Record{
			RequestID:  requestID,
			Filename:   header.Filename,
			Page:       page,
			Ayah:       ayah,
			Status:     "error",
			DurationMS: elapsed.Milliseconds(),
		})
		writeJSON(w, http.StatusInternalServerError, transcribeError{
			Error:          "Transcription failed",
			Details:        err.Error(),
			ProcessingTime: elapsed.Seconds(),
		})
	}

	if err := s.ensureReady(r.Context()); err != nil {
		fail(fmt.Errorf("model initialization: %w", err))
		return
	}

	staged, err := s.staging.Stage(header.Filename, file)
	if err != nil {
		fail(err)
		return
	}
	defer s.staging.Release(staged)

	raw, err := s.decoder.Decode(staged.Path)
	if err != nil {
		s.metrics.recordDecodeFailure(r.Context())
		fail(err)
		return
	}

	clip, err := s.normalizer.Normalize(raw)
	if err != nil {
		fail(err)
		return
	}
	if maxDur := s.cfg.Audio.MaxDuration(); maxDur > 0 && clip.Duration() > maxDur {
		log.Warn("audio exceeds recommended duration",
			slog.Duration("duration", clip.Duration()),
			slog.Duration("recommended_max", maxDur))
	}

	text, err := s.transcriber.Transcribe(r.Context(), clip)
	if err != nil {
		fail(err)
		return
	}

	elapsed := time.Since(start)
	log.Info("transcription completed",
		slog.String("filename", header.Filename),
		slog.Duration("audio_duration", clip.Duration()),
		slog.Duration("elapsed", elapsed),
		slog.Int("chars", len(text)))

	s.metrics.recordRequest(r.Context(), "ok", elapsed)
	s.appendRecord(store.Record{
		RequestID:  requestID,
		Filename:   header.Filename,
		Page:       page,
		Ayah:       ayah,
		Status:     "ok",
		Text:       text,
		DurationMS: elapsed.Milliseconds(),
	})
	s.events.PublishResult(events.Result{
		RequestID:  requestID,
		Filename:   header.Filename,
		Text:       text,
		DurationMS: elapsed.Milliseconds(),
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// appendRecord writes the transcript log entry outside the request
// context so a client disconnect cannot lose the record.
func (s *Server) appendRecord(rec store.Record) {
	if err := s.store.Append(context.Background(), rec); err != nil {
		s.log.Warn("failed to append transcript record", slog.String("error", err.Error()))
	}
}

type transcriptEntry struct {
	RequestID  string    `json:"request_id"`
	Filename   string    `json:"filename"`
	Page       string    `json:"page,omitempty"`
	Ayah       string    `json:"ayah,omitempty"`
	Status     string    `json:"status"`
	Text       string    `json:"text"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	records, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("failed to read transcript log", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read transcript log"})
		return
	}
	entries := make([]transcriptEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, transcriptEntry{
			RequestID:  rec.RequestID,
			Filename:   rec.Filename,
			Page:       rec.Page,
			Ayah:       rec.Ayah,
			Status:     rec.Status,
			Text:       rec.Text,
			DurationMS: rec.DurationMS,
			CreatedAt:  rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcripts": entries})
}

var availableEndpoints = []string{
	"GET /health",
	"GET /model/info",
	"POST /transcribe",
	"GET /transcripts",
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":               "Not found",
			"available_endpoints": availableEndpoints,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "whisperd",
		"version":   serviceVersion,
		"model":     s.cfg.Model.Name,
		"endpoints": availableEndpoints,
	})
}
