package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the OpenRouter chat-completions endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"

// RequestTimeout bounds each HTTP request end to end.
const RequestTimeout = 120 * time.Second

// defaultTemperature is sent unless overridden per model.
const defaultTemperature = 1.0

// Usage is the token and cost accounting returned by the API. All fields
// are optional on the wire; absent cost means zero, not an error.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

// Client speaks the chat-completions protocol to a single endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client for the given endpoint and bearer credential.
// An empty baseURL uses the OpenRouter endpoint.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: RequestTimeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiResponse tolerates both response shapes the API has used: the chat
// shape (choices[].message.content) and the older completions shape
// (choices[].text).
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one prompt to one model and returns the generated text and
// usage accounting. Overrides are merged over the default parameters, with
// the override winning on key collision.
func (c *Client) Complete(ctx context.Context, model, prompt string, overrides map[string]any) (string, Usage, error) {
	body := map[string]any{
		"model":       model,
		"messages":    []chatMessage{{Role: "user", Content: prompt}},
		"temperature": defaultTemperature,
	}
	for k, v := range overrides {
		body[k] = v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", Usage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", "nerd-prompt")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", Usage{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", Usage{}, fmt.Errorf("API returned %s: %s", resp.Status, excerpt(data))
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("malformed response body: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", Usage{}, fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, errors.New("response contained no choices")
	}

	content := parsed.Choices[0].Message.Content
	if content == "" {
		content = parsed.Choices[0].Text
	}
	if content == "" {
		return "", Usage{}, errors.New("received empty content from API")
	}

	usage := Usage{}
	if parsed.Usage != nil {
		usage = *parsed.Usage
	}
	return content, usage, nil
}

// excerpt trims an error body for human-readable messages.
func excerpt(data []byte) string {
	const max = 500
	s := string(data)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
