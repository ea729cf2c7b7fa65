package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ev, err := New(TypeKBSaved, KBPayload{Source: "api", Bytes: 12})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, ev.ID)
	assert.Equal(t, TypeKBSaved, ev.Type)
	assert.False(t, ev.OccurredAt.IsZero())

	var p KBPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, KBPayload{Source: "api", Bytes: 12}, p)

	ev, err = New(TypeKBChanged, nil)
	require.NoError(t, err)
	assert.Nil(t, ev.Payload)

	_, err = New(TypeKBChanged, make(chan int))
	assert.Error(t, err)
}

func TestEmit(t *testing.T) {
	p := new(MockPublisher)
	p.On("Publish", mock.Anything, mock.MatchedBy(func(ev Event) bool {
		return ev.Type == TypeEvaluationCompleted
	})).Return(errors.New("nats down")).Once()

	var reported error
	Emit(context.Background(), p, TypeEvaluationCompleted, EvaluationPayload{Mode: "audit"}, func(err error) {
		reported = err
	})

	assert.EqualError(t, reported, "nats down")
	p.AssertExpectations(t)
}

func TestEmitWithNoOp(t *testing.T) {
	called := false
	Emit(context.Background(), NoOpPublisher{}, TypeKBSaved, nil, func(error) { called = true })
	assert.False(t, called)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "kbauditor.kb.saved", Subject(TypeKBSaved))
	assert.Equal(t, "kbauditor.evaluation.completed", Subject(TypeEvaluationCompleted))
}
