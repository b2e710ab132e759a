package data

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"

	"github.com/netocloud/slack-relay/internal/biz/domain"
	"github.com/netocloud/slack-relay/internal/biz/repo"
)

// ModelParams are the sampling parameters sent with every completion request
type ModelParams struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// DefaultModelParams contains default model parameters
var DefaultModelParams = ModelParams{
	Model:       openai.GPT4,
	MaxTokens:   1000,
	Temperature: 0.7,
}

// ChatCompleter is the subset of the go-openai client used by the relay
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// openaiRepo implements the completion repository
type openaiRepo struct {
	client ChatCompleter
	params ModelParams
}

// NewOpenAIClient creates a go-openai client. baseURL points at any compatible endpoint when set.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// NewOpenAIRepo creates a completion repository
func NewOpenAIRepo(client ChatCompleter, params ModelParams) repo.CompletionRepo {
	if client == nil {
		return nil
	}
	if params.Model == "" {
		params.Model = DefaultModelParams.Model
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = DefaultModelParams.MaxTokens
	}
	return &openaiRepo{client: client, params: params}
}

// CreateCompletion requests one completion for the prompt
func (r *openaiRepo) CreateCompletion(ctx context.Context, messages []domain.ChatMessage) (*domain.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       r.params.Model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   r.params.MaxTokens,
		Temperature: r.params.Temperature,
	}
	// go-openai omits a zero temperature, which the API reads as its default of 1
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    toOpenAIRole(m.Role),
			Content: m.Content,
		})
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: no choices returned")
	}

	return &domain.Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: domain.TokenUsage{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
		},
	}, nil
}

func toOpenAIRole(role domain.ChatRole) string {
	switch role {
	case domain.RoleSystem:
		return openai.ChatMessageRoleSystem
	case domain.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
