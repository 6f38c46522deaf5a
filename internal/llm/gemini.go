package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient completes chats with the Gemini API.
type GeminiClient struct {
	client *genai.Client
	logger *zap.Logger
}

func NewGeminiClient(ctx context.Context, apiKey string, logger *zap.Logger) (*GeminiClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, logger: logger}, nil
}

// Complete maps system messages onto the system instruction and assistant
// turns onto the model role.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	var cfg *genai.GenerateContentConfig
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			cfg = &genai.GenerateContentConfig{
				SystemInstruction: genai.NewContentFromText(m.Content, genai.RoleUser),
			}
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	c.logger.Debug("gemini completion", zap.String("model", req.Model), zap.Int("contents", len(contents)))
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrNoChoices
	}
	return text, nil
}
