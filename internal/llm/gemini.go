package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient is the structured-output backend. The model is asked for
// application/json directly, so the returned text is a bare JSON document
// rather than a fenced block.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient connects to the Gemini API with apiKey.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (g *GeminiClient) Invoke(ctx context.Context, prompt, model string, opts Options) (string, error) {
	ctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	temp := float32(opts.Temperature)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		Temperature:       &temp,
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", classify(model, fmt.Errorf("generate content: %w", err))
	}

	if len(resp.Candidates) == 0 {
		return "", malformed(model, "no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", malformed(model, "no parts in candidate content")
	}
	text := candidate.Content.Parts[0].Text
	if text == "" {
		return "", malformed(model, "no text in first part of response")
	}
	return text, nil
}
