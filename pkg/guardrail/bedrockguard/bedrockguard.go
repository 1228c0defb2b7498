package bedrockguard

import (
	"context"
	"fmt"
	"strings"

	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/infra/bedrock"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awstypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const Kind = "bedrockguard"

type Config struct {
	GuardrailID string              `mapstructure:"guardrail_id"`
	Version     string              `mapstructure:"version"`
	Credentials bedrock.Credentials `mapstructure:"credentials"`
}

type violation struct {
	Policy string `json:"policy"`
	Name   string `json:"name"`
}

// Guardrail delegates the verdict to an AWS Bedrock guardrail via
// ApplyGuardrail. The remote guardrail owns the policy; this kind maps
// its topic, content and sensitive-information assessments onto a
// Result. Credentials are resolved and the client bound at
// construction, so a misconfigured definition fails at startup rather
// than on the first check.
type Guardrail struct {
	logger      *logrus.Logger
	client      bedrock.Client
	guardrailID string
	version     string
	source      awstypes.GuardrailContentSource
}

func New(logger *logrus.Logger, client bedrock.Client, def types.Definition) (*Guardrail, error) {
	if client == nil {
		return nil, fmt.Errorf("bedrockguard guardrail requires a bedrock client")
	}

	var cfg Config
	if err := mapstructure.Decode(def.Settings, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if cfg.GuardrailID == "" {
		return nil, fmt.Errorf("guardrail_id is required")
	}
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}

	bound, err := client.BuildClient(context.Background(), cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to build bedrock client: %w", err)
	}

	source := awstypes.GuardrailContentSourceInput
	if def.Direction == types.DirectionOutput {
		source = awstypes.GuardrailContentSourceOutput
	}

	return &Guardrail{
		logger:      logger,
		client:      bound,
		guardrailID: cfg.GuardrailID,
		version:     cfg.Version,
		source:      source,
	}, nil
}

// Available reports whether a bound client exists.
func (g *Guardrail) Available() bool {
	return g.client != nil
}

func (g *Guardrail) Analyze(ctx context.Context, content string, _ *conversation.Conversation) (types.Result, error) {
	if content == "" {
		return types.NewAllowResult("no content to inspect"), nil
	}

	contentBlock := awstypes.GuardrailContentBlockMemberText{
		Value: awstypes.GuardrailTextBlock{
			Text: aws.String(content),
		},
	}
	input := &bedrockruntime.ApplyGuardrailInput{
		Content:             []awstypes.GuardrailContentBlock{&contentBlock},
		GuardrailIdentifier: aws.String(g.guardrailID),
		GuardrailVersion:    aws.String(g.version),
		Source:              g.source,
	}

	output, err := g.client.ApplyGuardrail(ctx, input)
	if err != nil {
		g.logger.WithError(err).Error("bedrock apply guardrail call failed")
		return types.Result{}, fmt.Errorf("bedrock apply guardrail failed: %w", err)
	}

	violations := collectViolations(output.Assessments)
	if len(violations) == 0 {
		return types.NewAllowResult("no policy violations detected").WithDetails(map[string]interface{}{
			"guardrail_id": g.guardrailID,
		}), nil
	}

	entries := make([]string, 0, len(violations))
	for _, v := range violations {
		entries = append(entries, fmt.Sprintf("%s (%s)", v.Policy, v.Name))
	}
	reason := fmt.Sprintf("bedrock guardrail flagged content: %s", strings.Join(entries, ", "))
	return types.NewBlockResult(reason, 1.0).WithDetails(map[string]interface{}{
		"guardrail_id": g.guardrailID,
		"violations":   violations,
	}), nil
}

func collectViolations(assessments []awstypes.GuardrailAssessment) []violation {
	var violations []violation
	for _, assessment := range assessments {
		if assessment.TopicPolicy != nil {
			for _, topic := range assessment.TopicPolicy.Topics {
				if topic.Action == "BLOCKED" && topic.Type == "DENY" {
					violations = append(violations, violation{
						Policy: "topic_policy",
						Name:   aws.ToString(topic.Name),
					})
				}
			}
		}
		if assessment.ContentPolicy != nil {
			for _, filter := range assessment.ContentPolicy.Filters {
				if filter.Action == "REJECT" {
					violations = append(violations, violation{
						Policy: "content_policy",
						Name:   string(filter.Type),
					})
				}
			}
		}
		if assessment.SensitiveInformationPolicy != nil {
			for _, entity := range assessment.SensitiveInformationPolicy.PiiEntities {
				if entity.Action == "REJECT" {
					violations = append(violations, violation{
						Policy: "sensitive_information",
						Name:   string(entity.Type),
					})
				}
			}
		}
	}
	return violations
}
