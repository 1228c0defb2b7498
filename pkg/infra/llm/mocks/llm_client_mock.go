package mocks

import (
	"context"
	"fmt"

	"github.com/NeuralTrust/TrustRail/pkg/infra/llm"
	"github.com/stretchr/testify/mock"
)

type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Ask(ctx context.Context, config *llm.Config, prompt string) (*llm.Completion, error) {
	args := m.Called(ctx, config, prompt)
	completion, ok := args.Get(0).(*llm.Completion)
	if !ok && args.Get(0) != nil {
		return nil, fmt.Errorf("expected *llm.Completion, got %T", args.Get(0))
	}
	return completion, args.Error(1)
}
