// Package notify publishes run and release events to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/shipwright/internal/config"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
)

// DefaultSubject is used when notify.subject is empty.
const DefaultSubject = config.DefaultNotifySubject

// Event types, appended to the subject.
const (
	TypeRunCompleted = "run.completed"
	TypeRelease      = "release.transition"
)

// Event is the JSON body of a notification.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Project   string    `json:"project"`
	Version   string    `json:"version,omitempty"`
	Command   string    `json:"command,omitempty"`
	Status    string    `json:"status,omitempty"`
	State     string    `json:"state,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Tag       string    `json:"tag,omitempty"`
	Failed    []string  `json:"failed,omitempty"`
	Excluded  []string  `json:"excluded,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Notify(context.Context, Event) error { return nil }
func (Noop) Close() error                        { return nil }

// conn is the part of *nats.Conn the client uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSClient publishes events as JSON on <subject>.<type>.
type NATSClient struct {
	conn    conn
	subject string
}

// Connect dials the configured NATS server. An empty URL yields Noop.
func Connect(cfg config.NotifyConfig, opts ...nats.Option) (Notifier, error) {
	if cfg.NATSURL == "" {
		return Noop{}, nil
	}
	opts = append([]nats.Option{nats.Name("shipwright"), nats.Timeout(5 * time.Second)}, opts...)
	nc, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", cfg.NATSURL).
			Build()
	}
	slog.Info("NATS notifications enabled", logfields.URL(cfg.NATSURL), slog.String("subject", subjectOrDefault(cfg.Subject)))
	return newClient(nc, cfg.Subject), nil
}

func newClient(c conn, subject string) *NATSClient {
	return &NATSClient{conn: c, subject: subjectOrDefault(subject)}
}

func subjectOrDefault(s string) string {
	s = strings.Trim(strings.TrimSpace(s), ".")
	if s == "" {
		return DefaultSubject
	}
	return s
}

// Subject returns the subject an event of type typ is published on.
func (c *NATSClient) Subject(typ string) string {
	return c.subject + "." + typ
}

// Notify publishes e and waits for the server to acknowledge the flush.
func (c *NATSClient) Notify(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.conn.Publish(c.Subject(e.Type), data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to publish event").Retryable().Build()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.conn.FlushWithContext(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to flush event").Retryable().Build()
	}
	slog.Debug("Published event", slog.String("subject", c.Subject(e.Type)), logfields.RunID(e.RunID))
	return nil
}

// Close drains nothing; pending events were flushed by Notify.
func (c *NATSClient) Close() error {
	c.conn.Close()
	return nil
}
