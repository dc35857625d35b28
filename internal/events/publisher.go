// Package events publishes delivery and fix activity to NATS so external
// consumers (dashboards, alerting) can follow along without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deliverd/internal/fixtree"
	"github.com/fyrsmithlabs/deliverd/internal/flow"
)

const (
	flowSubjectFmt = "deliverd.flow.%s.timeline"
	fixSubjectFmt  = "deliverd.fix.%s"
)

var (
	_ flow.EventPublisher      = (*Publisher)(nil)
	_ fixtree.SessionPublisher = (*Publisher)(nil)
)

// Publisher writes events to NATS subjects. Flow timelines go to
// deliverd.flow.<id>.timeline, fix session transitions to deliverd.fix.<id>.
type Publisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// Connect dials NATS with the standard retry options and returns a
// publisher that owns the connection.
func Connect(url string, logger *zap.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	logger.Info("connected to NATS", zap.String("url", url))
	return NewPublisher(nc, logger), nil
}

// NewPublisher wraps an existing connection. The caller keeps ownership of
// nc unless it came from Connect.
func NewPublisher(nc *nats.Conn, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, logger: logger}
}

// PublishTimeline sends one flow timeline event.
func (p *Publisher) PublishTimeline(_ context.Context, flowID string, ev flow.TimelineEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal timeline event: %w", err)
	}
	subject := fmt.Sprintf(flowSubjectFmt, flowID)
	if err := p.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// fixEvent is the wire shape for fix session transitions.
type fixEvent struct {
	SessionID string                `json:"session_id"`
	Status    fixtree.SessionStatus `json:"status"`
	Attempts  int                   `json:"attempts"`
	Summary   string                `json:"summary,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// PublishFixSession announces a fix session's current state.
func (p *Publisher) PublishFixSession(_ context.Context, s *fixtree.Session) error {
	payload, err := json.Marshal(fixEvent{
		SessionID: s.ID,
		Status:    s.Status,
		Attempts:  len(s.Attempts),
		Summary:   s.HumanSummary,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal fix event: %w", err)
	}
	subject := fmt.Sprintf(fixSubjectFmt, s.ID)
	if err := p.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

// Noop discards every event. Used when NATS is not configured.
type Noop struct{}

var (
	_ flow.EventPublisher      = Noop{}
	_ fixtree.SessionPublisher = Noop{}
)

func (Noop) PublishTimeline(context.Context, string, flow.TimelineEvent) error { return nil }

func (Noop) PublishFixSession(context.Context, *fixtree.Session) error { return nil }
