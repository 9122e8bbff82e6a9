// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/bookfinder/internal/httputil"
)

// Endpoints. Package-level vars for test substitution.
var (
	groqBaseURL  = "https://api.groq.com/openai/v1"
	claudeAPIURL = "https://api.anthropic.com/v1/messages"
)

// Completion is one prompt sent to a model that must answer with a JSON
// object.
type Completion struct {
	Prompt      string
	Temperature float64
}

// Completer sends a prompt to a Generative AI API and returns the raw text
// of the answer. Implementations exist for OpenAI-compatible chat APIs
// (Groq) and the Claude Messages API.
type Completer interface {
	Complete(ctx context.Context, c Completion) (string, error)
}

// ChatCompleter calls an OpenAI-compatible /chat/completions endpoint with
// JSON response mode.
type ChatCompleter struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxRetries int
	Client     *http.Client
}

// Complete posts c as a single user message.
func (c *ChatCompleter) Complete(ctx context.Context, comp Completion) (string, error) {
	body := map[string]any{
		"model":           c.Model,
		"temperature":     comp.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "user", "content": comp.Prompt},
		},
	}

	base := c.BaseURL
	if base == "" {
		base = groqBaseURL
	}
	endpoint := strings.TrimRight(base, "/") + "/chat/completions"

	raw, err := post(ctx, c.Client, endpoint, body, c.MaxRetries, map[string]string{
		"Authorization": "Bearer " + c.APIKey,
	})
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

// ClaudeCompleter calls the Claude Messages API.
type ClaudeCompleter struct {
	APIKey     string
	Model      string
	MaxRetries int
	Client     *http.Client
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends the prompt and returns the first text block.
func (c *ClaudeCompleter) Complete(ctx context.Context, comp Completion) (string, error) {
	reqBody := claudeRequest{
		Model:       c.Model,
		MaxTokens:   1024,
		Temperature: comp.Temperature,
		Messages: []claudeMessage{
			{Role: "user", Content: comp.Prompt},
		},
	}

	raw, err := post(ctx, c.Client, claudeAPIURL, reqBody, c.MaxRetries, map[string]string{
		"x-api-key":         c.APIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var cResp claudeResponse
	if err := json.Unmarshal(raw, &cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}
	for _, block := range cResp.Content {
		if block.Type == "text" {
			return stripFences(block.Text), nil
		}
	}
	return "", fmt.Errorf("no text content in Claude API response")
}

// post marshals body, sends it with headers, and returns the response body
// of a 2xx answer.
func post(ctx context.Context, client *http.Client, url string, body any, maxRetries int, headers map[string]string) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned %d: %s", req.URL.Host, resp.StatusCode, string(raw))
	}
	return raw, nil
}

// stripFences removes a Markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
