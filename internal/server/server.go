// Package server exposes the transcription pipeline over HTTP: upload,
// stage, decode, normalize, transcribe, respond.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/recitelabs/whisperd/internal/audio"
	"github.com/recitelabs/whisperd/internal/config"
	"github.com/recitelabs/whisperd/internal/events"
	"github.com/recitelabs/whisperd/internal/staging"
	"github.com/recitelabs/whisperd/internal/store"
	"github.com/recitelabs/whisperd/internal/transcriber"
)

const serviceVersion = "1.0.0"

// State tracks model readiness. FailedInit is not terminal: the next
// request re-attempts initialization.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailedInit
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailedInit:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Server orchestrates the transcription pipeline and owns the endpoint
// handlers.
type Server struct {
	cfg         config.Config
	log         *slog.Logger
	decoder     *audio.Decoder
	normalizer  *audio.Normalizer
	staging     *staging.Store
	transcriber transcriber.Transcriber
	store       *store.Store
	events      *events.Publisher
	metrics     *metrics

	initMu sync.Mutex
	state  atomic.Int32
}

func New(cfg config.Config, log *slog.Logger, tr transcriber.Transcriber, ts *store.Store, pub *events.Publisher) *Server {
	return &Server{
		cfg:         cfg,
		log:         log,
		decoder:     audio.NewDecoder(cfg.Audio, log),
		normalizer:  audio.NewNormalizer(cfg.Audio.TargetSampleRate, log),
		staging:     staging.New(cfg.Staging.Dir, log),
		transcriber: tr,
		store:       ts,
		events:      pub,
		metrics:     newMetrics(log),
	}
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/model/info", s.handleModelInfo)
	mux.HandleFunc("/transcribe", s.handleTranscribe)
	mux.HandleFunc("/transcripts", s.handleTranscripts)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// State returns the current readiness state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// ensureReady performs at most one concurrent initialization attempt.
// Requests arriving while a load is in flight block on the mutex and
// observe its outcome; a failed load is retried by the next caller.
func (s *Server) ensureReady(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.State() == StateReady {
		return nil
	}

	s.state.Store(int32(StateInitializing))
	s.log.Info("initializing transcription service",
		slog.String("model", s.cfg.Model.Name),
		slog.String("device", s.cfg.Model.Device))

	if err := s.transcriber.LoadOnce(ctx); err != nil {
		s.state.Store(int32(StateFailedInit))
		s.log.Error("initialization failed", slog.String("error", err.Error()))
		return err
	}

	s.state.Store(int32(StateReady))
	s.log.Info("initialization completed successfully")
	return nil
}
