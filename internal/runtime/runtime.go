// Package runtime assembles the transcription service: telemetry, the
// transcript store, the optional event bus, the model backend, and the
// HTTP servers.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/recitelabs/whisperd/internal/config"
	"github.com/recitelabs/whisperd/internal/events"
	"github.com/recitelabs/whisperd/internal/server"
	"github.com/recitelabs/whisperd/internal/store"
	"github.com/recitelabs/whisperd/internal/transcriber"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	apiServer   *http.Server
	metrics     *http.Server
	tracerClose func(context.Context) error
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start runs the service until ctx is cancelled, then shuts down
// gracefully.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if dir := r.cfg.Staging.Dir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create staging dir: %w", err)
		}
	}

	transcriptStore, err := store.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open transcript store: %w", err)
	}
	defer transcriptStore.Close()

	publisher, err := events.Connect(r.cfg.Events, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect event bus: %w", err)
	}
	defer publisher.Close()

	backend, err := r.buildTranscriber()
	if err != nil {
		return fmt.Errorf("failed to build model backend: %w", err)
	}

	srv := server.New(r.cfg, r.logger, backend, transcriptStore, publisher)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.apiServer = &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricHandler)
		r.metrics = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.logger.Info("whisperd started",
		slog.String("addr", addr),
		slog.String("model", r.cfg.Model.Name),
		slog.String("device", r.cfg.Model.Device),
		slog.String("mode", r.cfg.Model.Mode))

	<-ctx.Done()
	r.logger.Info("whisperd stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.apiServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metrics != nil {
		if err := r.metrics.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildTranscriber() (transcriber.Transcriber, error) {
	switch r.cfg.Model.Mode {
	case "exec":
		return transcriber.NewExec(r.cfg.Model)
	default:
		r.logger.Warn("running with mock model backend; transcripts are synthetic")
		return transcriber.NewMock(), nil
	}
}
