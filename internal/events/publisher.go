// Package events publishes transcription results to NATS for downstream
// consumers. The publisher is optional: when disabled the server runs
// standalone and nothing is emitted.
package events

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/recitelabs/whisperd/internal/config"
)

// SubjectResult carries completed transcriptions.
const SubjectResult = "transcribe.result"

// Result is the payload published after each successful transcription.
type Result struct {
	RequestID  string    `json:"request_id"`
	Filename   string    `json:"filename"`
	Text       string    `json:"text"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher wraps a NATS connection.
type Publisher struct {
	conn *nats.Conn
	log  *slog.Logger
}

// Connect establishes the NATS connection. Returns (nil, nil) when events
// are disabled.
func Connect(cfg config.EventsConfig, log *slog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("whisperd"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}
	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))
	return &Publisher{conn: conn, log: log}, nil
}

// PublishResult emits a transcription result. Failures are logged, never
// propagated; event delivery must not fail the request that produced it.
func (p *Publisher) PublishResult(res Result) {
	if p == nil {
		return
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(res)
	if err != nil {
		p.log.Warn("failed to marshal result event", slog.String("error", err.Error()))
		return
	}
	if err := p.conn.Publish(SubjectResult, data); err != nil {
		p.log.Warn("failed to publish result event", slog.String("error", err.Error()))
	}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.log.Info("closing NATS connection")
	p.conn.Drain()
	p.conn.Close()
}
