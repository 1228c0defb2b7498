package mocks

import (
	"context"
	"fmt"

	"github.com/NeuralTrust/TrustRail/pkg/infra/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/mock"
)

type MockBedrockClient struct {
	mock.Mock
}

func (m *MockBedrockClient) ApplyGuardrail(
	ctx context.Context,
	params *bedrockruntime.ApplyGuardrailInput,
	optFns ...func(*bedrockruntime.Options),
) (*bedrockruntime.ApplyGuardrailOutput, error) {
	args := m.Called(ctx, params)
	out, ok := args.Get(0).(*bedrockruntime.ApplyGuardrailOutput)
	if !ok && args.Get(0) != nil {
		return nil, fmt.Errorf("expected *bedrockruntime.ApplyGuardrailOutput, got %T", args.Get(0))
	}
	return out, args.Error(1)
}

func (m *MockBedrockClient) BuildClient(ctx context.Context, creds bedrock.Credentials) (bedrock.Client, error) {
	args := m.Called(ctx, creds)
	client, ok := args.Get(0).(bedrock.Client)
	if !ok && args.Get(0) != nil {
		return nil, fmt.Errorf("expected bedrock.Client, got %T", args.Get(0))
	}
	return client, args.Error(1)
}
