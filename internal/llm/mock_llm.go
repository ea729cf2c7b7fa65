package llm

import (
	"context"

	"github.com/stretchr/testify/mock"

	"kb-auditor/internal/prompt"
)

// MockTextClient is a mock implementation of TextClient using testify/mock.
type MockTextClient struct {
	mock.Mock
}

func (m *MockTextClient) Complete(ctx context.Context, model, system, userPrompt string) (string, error) {
	args := m.Called(ctx, model, system, userPrompt)
	return args.String(0), args.Error(1)
}

// MockStructuredClient is a mock implementation of StructuredClient using testify/mock.
type MockStructuredClient struct {
	mock.Mock
}

func (m *MockStructuredClient) Generate(ctx context.Context, model, system string, parts []prompt.Part) (string, error) {
	args := m.Called(ctx, model, system, parts)
	return args.String(0), args.Error(1)
}
