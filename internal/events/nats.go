package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix namespaces every published subject.
const SubjectPrefix = "kbauditor."

// NewNATS constructs a thin NATS-based publisher.
func NewNATS(log *slog.Logger, nc *nats.Conn) Publisher {
	return &natsPublisher{log: log, nc: nc}
}

type natsPublisher struct {
	log *slog.Logger
	nc  *nats.Conn
}

func (p *natsPublisher) Publish(_ context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Type == "" {
		return errors.New("event type required")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.log.Debug("publishing event", "id", event.ID, "type", event.Type)
	return p.nc.Publish(Subject(event.Type), body)
}

func (p *natsPublisher) Close() error {
	return p.nc.Drain()
}

// Subject returns the NATS subject for events of type t.
func Subject(t Type) string {
	return SubjectPrefix + string(t)
}
