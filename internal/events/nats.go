package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/bindery/internal/config"
)

const publishTimeout = 5 * time.Second

// NATSEmitter publishes events to JetStream subjects under a configured
// prefix: <prefix>.build.completed, <prefix>.release.created,
// <prefix>.release.published, <prefix>.sync.<channel>.
type NATSEmitter struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	prefix string
}

// FromConfig returns the configured emitter: a NATS emitter when events
// are enabled, the noop emitter otherwise.
func FromConfig(cfg config.EventsConfig) (Emitter, error) {
	if !cfg.Enabled || cfg.URL == "" {
		return NoopEmitter{}, nil
	}
	return NewNATSEmitter(cfg)
}

// NewNATSEmitter connects to the configured NATS server and prepares a
// JetStream context.
func NewNATSEmitter(cfg config.EventsConfig) (*NATSEmitter, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("bindery"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	slog.Info("event publication enabled",
		slog.String("url", cfg.URL),
		slog.String("subject_prefix", cfg.SubjectPrefix))

	return &NATSEmitter{conn: conn, js: js, prefix: cfg.SubjectPrefix}, nil
}

func (e *NATSEmitter) BuildCompleted(ctx context.Context, ev BuildEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return e.publish(ctx, e.subject("build.completed"), ev)
}

func (e *NATSEmitter) ReleaseCreated(ctx context.Context, ev ReleaseEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return e.publish(ctx, e.subject("release.created"), ev)
}

func (e *NATSEmitter) ReleasePublished(ctx context.Context, ev ReleaseEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return e.publish(ctx, e.subject("release.published"), ev)
}

func (e *NATSEmitter) ChannelSynced(ctx context.Context, ev SyncEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return e.publish(ctx, e.subject("sync."+ev.Channel), ev)
}

// Close drains the connection.
func (e *NATSEmitter) Close() error {
	if e.conn != nil {
		e.conn.Close()
	}
	return nil
}

func (e *NATSEmitter) subject(suffix string) string {
	if e.prefix == "" {
		return suffix
	}
	return e.prefix + "." + suffix
}

func (e *NATSEmitter) publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if _, err := e.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	slog.Debug("event published", slog.String("subject", subject))
	return nil
}
