package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient completes chats against the OpenAI API or a compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	logger *zap.Logger
}

// NewOpenAIClient creates a client. An empty baseURL keeps the public endpoint.
func NewOpenAIClient(apiKey, baseURL string, logger *zap.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), logger: logger}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openaiRole(m.Role), Content: m.Content})
	}

	c.logger.Debug("openai completion", zap.String("model", req.Model), zap.Int("messages", len(msgs)))
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	c.logger.Debug("openai reply",
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return resp.Choices[0].Message.Content, nil
}

func openaiRole(r Role) string {
	switch r {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
