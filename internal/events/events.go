package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type enumerates published event categories.
type Type string

const (
	// TypeKBSaved follows a save through the API or an applied update.
	TypeKBSaved Type = "kb.saved"
	// TypeKBChanged follows any change of the knowledge base file on disk,
	// including edits made outside the server.
	TypeKBChanged Type = "kb.changed"
	// TypeEvaluationCompleted follows every finished workbench run.
	TypeEvaluationCompleted Type = "evaluation.completed"
)

// Event is a notification about the knowledge base or an evaluation.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Publisher fans events out to interested listeners.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// New builds an event of type t with payload marshalled to JSON.
func New(t Type, payload any) (Event, error) {
	ev := Event{ID: uuid.New(), Type: t, OccurredAt: time.Now().UTC()}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		ev.Payload = body
	}
	return ev, nil
}

// KBPayload describes a knowledge base change.
type KBPayload struct {
	Source string `json:"source"`
	Bytes  int    `json:"bytes,omitempty"`
	Op     string `json:"op,omitempty"`
}

// EvaluationPayload describes a finished run.
type EvaluationPayload struct {
	EvaluationID uuid.UUID `json:"evaluation_id"`
	Mode         string    `json:"mode"`
	Model        string    `json:"model"`
	Pairs        int       `json:"pairs,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
}

// Emit builds and publishes an event. Failures are handed to onErr and never
// reach the caller.
func Emit(ctx context.Context, p Publisher, t Type, payload any, onErr func(error)) {
	ev, err := New(t, payload)
	if err == nil {
		err = p.Publish(ctx, ev)
	}
	if err != nil && onErr != nil {
		onErr(err)
	}
}
