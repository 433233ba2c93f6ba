// Package bus publishes transcript events and translations on NATS so other
// services can follow a live session.
//
// Subjects are "<prefix>.partial" for provisional text and "<prefix>.final"
// for committed text with its translation; the default prefix is
// "realtalk.transcript". Payloads are JSON.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/MrWong99/realtalk/internal/sink"
	"github.com/MrWong99/realtalk/pkg/types"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "realtalk.transcript"

// Config holds the bus settings.
type Config struct {
	// URL is a comma-separated list of NATS servers. Ignored when Embedded is
	// set.
	URL string `yaml:"nats_url"`

	// Subject is the subject prefix. Default: [DefaultSubject].
	Subject string `yaml:"subject"`

	// Token authenticates against the server.
	Token string `yaml:"token"`

	// Embedded starts an in-process NATS server on EmbeddedPort and publishes
	// to it. -1 picks a free port.
	Embedded     bool `yaml:"embedded"`
	EmbeddedPort int  `yaml:"embedded_port"`

	// ConnectTimeout bounds the initial connection. Default: 2s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// PartialMessage is the payload on "<prefix>.partial".
type PartialMessage struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Lang      string `json:"lang"`
	OffsetMS  int64  `json:"offset_ms"`
}

// FinalMessage is the payload on "<prefix>.final".
type FinalMessage struct {
	SessionID   string    `json:"session_id"`
	Source      string    `json:"source"`
	Target      string    `json:"target"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	Truncated   bool      `json:"truncated,omitempty"`
	Degraded    bool      `json:"degraded,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher is a [sink.Sink] backed by a NATS connection.
type Publisher struct {
	conn     *nats.Conn
	embedded *server.Server
	partial  string
	final    string
}

var _ sink.Sink = (*Publisher)(nil)

// Connect dials NATS, starting the embedded server first when configured.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 2 * time.Second
	}

	p := &Publisher{partial: cfg.Subject + ".partial", final: cfg.Subject + ".final"}
	url := cfg.URL
	if cfg.Embedded {
		ns, err := startEmbedded(cfg.EmbeddedPort, cfg.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		p.embedded = ns
		url = ns.ClientURL()
	}
	if url == "" {
		return nil, fmt.Errorf("bus: nats_url is required: %w", types.ErrConfig)
	}

	opts := []nats.Option{
		nats.Name("realtalk"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	if err := ctx.Err(); err != nil {
		p.shutdownEmbedded()
		return nil, err
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		p.shutdownEmbedded()
		return nil, fmt.Errorf("bus: connect to nats: %w", err)
	}
	p.conn = conn
	slog.Info("connected to NATS", "url", conn.ConnectedUrl(), "subject", cfg.Subject, "embedded", cfg.Embedded)
	return p, nil
}

func startEmbedded(port int, wait time.Duration) (*server.Server, error) {
	if port == 0 {
		port = server.RANDOM_PORT
	}
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("bus: create embedded nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(wait) {
		ns.Shutdown()
		return nil, fmt.Errorf("bus: embedded nats server not ready after %s", wait)
	}
	return ns, nil
}

// Partial implements [sink.Sink].
func (p *Publisher) Partial(_ context.Context, sessionID string, ev types.TranscriptEvent) error {
	return p.publish(p.partial, PartialMessage{
		SessionID: sessionID,
		Text:      ev.Text,
		Lang:      string(ev.Lang),
		OffsetMS:  ev.At.Milliseconds(),
	})
}

// Final implements [sink.Sink].
func (p *Publisher) Final(_ context.Context, tr types.Translation) error {
	return p.publish(p.final, FinalMessage{
		SessionID:   tr.SessionID,
		Source:      string(tr.Source),
		Target:      string(tr.Target),
		Original:    tr.Original,
		Translation: tr.Text,
		Truncated:   tr.Truncated,
		Degraded:    tr.Degraded,
		Timestamp:   tr.At,
	})
}

func (p *Publisher) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("bus: encode %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("bus: publish %s: %w", subject, err)
	}
	return nil
}

// Healthy reports whether the connection is up. Used as a readiness check.
func (p *Publisher) Healthy() bool {
	return p != nil && p.conn != nil && p.conn.Status() == nats.CONNECTED
}

// Check is [Publisher.Healthy] in the shape of a health checker.
func (p *Publisher) Check(context.Context) error {
	if !p.Healthy() {
		return errors.New("bus: nats not connected")
	}
	return nil
}

// ClientURL returns the URL of the embedded server, or "".
func (p *Publisher) ClientURL() string {
	if p.embedded == nil {
		return ""
	}
	return p.embedded.ClientURL()
}

// Name implements [sink.Sink].
func (p *Publisher) Name() string { return "bus" }

// Close flushes pending messages, closes the connection and stops the
// embedded server.
func (p *Publisher) Close() error {
	var err error
	if p.conn != nil {
		if ferr := p.conn.FlushTimeout(2 * time.Second); ferr != nil && !errors.Is(ferr, nats.ErrConnectionClosed) {
			err = fmt.Errorf("bus: flush: %w", ferr)
		}
		p.conn.Close()
	}
	p.shutdownEmbedded()
	return err
}

func (p *Publisher) shutdownEmbedded() {
	if p.embedded == nil {
		return
	}
	p.embedded.Shutdown()
	p.embedded.WaitForShutdown()
}
