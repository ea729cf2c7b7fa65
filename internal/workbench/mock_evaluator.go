package workbench

import (
	"context"

	"github.com/stretchr/testify/mock"

	"kb-auditor/internal/prompt"
)

// MockEvaluator is a mock implementation of Evaluator using testify/mock.
type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) Evaluate(ctx context.Context, req prompt.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
