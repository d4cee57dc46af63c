package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"brain-orchestrator/internal/domain/ports/adapter"
)

var _ adapter.ReasoningAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter implements adapter.ReasoningAdapter using the official SDK.
type GeminiAdapter struct {
	client      *genai.Client
	temperature float64
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL string, temperature float64) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if temperature <= 0 {
		temperature = 0.3
	}
	return &GeminiAdapter{client: c, temperature: temperature}, nil
}

func (g *GeminiAdapter) ChatJSON(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("gemini: no messages")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(g.temperature)),
		ResponseMIMEType: "application/json",
	}

	// The chat format carries the system prompt separately.
	var contents []*genai.Content
	for _, m := range messages {
		if strings.ToLower(m.Role) == "system" {
			cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
			continue
		}
		role := genai.RoleUser
		if strings.ToLower(m.Role) == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: empty response")
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", errors.New("gemini: no text in response")
	}
	return text, nil
}

func (g *GeminiAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	var contents []*genai.Content
	for _, m := range messages {
		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	resp, err := g.client.Models.CountTokens(ctx, model, contents, nil)
	if err != nil {
		return 0, err
	}
	return int(resp.TotalTokens), nil
}
