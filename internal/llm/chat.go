package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const systemPrompt = "You are an assistant that extracts structured JSON from unstructured text."

// ChatClient talks to an OpenAI-compatible chat completion endpoint.
type ChatClient struct {
	url    string
	apiKey string
	client *http.Client
}

// NewChatClient returns a client for url, e.g.
// "http://localhost:1234/v1/chat/completions". apiKey may be empty for local
// servers. Timeouts come from Options, not from the http.Client.
func NewChatClient(url, apiKey string) *ChatClient {
	return &ChatClient{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{},
	}
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke sends prompt as the user turn and returns choices[0].message.content.
func (c *ChatClient) Invoke(ctx context.Context, prompt, model string, opts Options) (string, error) {
	ctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", &ModelError{Kind: KindUnknown, Model: model, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", &ModelError{Kind: KindUnknown, Model: model, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classify(model, fmt.Errorf("api call: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(model, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return "", &ModelError{Kind: KindUnknown, Model: model,
				Err: fmt.Errorf("api error %d: %s: %s", resp.StatusCode, errResp.Error.Type, errResp.Error.Message)}
		}
		return "", &ModelError{Kind: KindUnknown, Model: model,
			Err: fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))}
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", malformed(model, "unmarshal response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", malformed(model, "no choices in response")
	}
	msg := apiResp.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return "", malformed(model, "choice has no message content")
	}
	return *msg.Content, nil
}
