// Package llm wraps the OpenAI-compatible chat completions API for
// guardrails that delegate their verdict to a model.
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"golang.org/x/sync/singleflight"
)

// Config addresses one completion call. BaseURL is optional and allows
// pointing at any OpenAI-compatible endpoint.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Completion struct {
	ID       string
	Model    string
	Response string
	Usage    Usage
}

//go:generate mockery --name=Client --dir=. --output=./mocks --filename=llm_client_mock.go --case=underscore

type Client interface {
	Ask(ctx context.Context, config *Config, prompt string) (*Completion, error)
}

type openAIClient struct {
	clientPool *sync.Map
	sf         singleflight.Group
}

func NewOpenAIClient() Client {
	return &openAIClient{
		clientPool: &sync.Map{},
	}
}

func (c *openAIClient) Ask(
	ctx context.Context,
	config *Config,
	prompt string,
) (*Completion, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	openaiClient := c.getOrCreateClient(config.APIKey, config.BaseURL)

	var messages []openai.ChatCompletionMessageParamUnion

	if config.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(config.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    config.Model,
		Messages: messages,
	}

	if config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(config.MaxTokens))
	}
	if config.Temperature > 0 {
		params.Temperature = openai.Float(config.Temperature)
	}

	resp, err := openaiClient.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no completions returned")
	}

	return &Completion{
		ID:       resp.ID,
		Model:    resp.Model,
		Response: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (c *openAIClient) getOrCreateClient(apiKey, baseURL string) *openai.Client {
	poolKey := apiKey + "|" + baseURL
	if v, ok := c.clientPool.Load(poolKey); ok {
		if client, ok := v.(*openai.Client); ok {
			return client
		}
	}
	v, err, _ := c.sf.Do(poolKey, func() (any, error) {
		if v2, ok := c.clientPool.Load(poolKey); ok {
			return v2, nil
		}
		cli := c.buildClient(apiKey, baseURL)
		c.clientPool.Store(poolKey, cli)
		return cli, nil
	})
	if err == nil {
		if client, ok := v.(*openai.Client); ok {
			return client
		}
	}
	return c.buildClient(apiKey, baseURL)
}

func (c *openAIClient) buildClient(apiKey, baseURL string) *openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	cli := openai.NewClient(opts...)
	return &cli
}
