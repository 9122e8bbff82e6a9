// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bookfinder/internal/httputil"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func TestChatCompleter(t *testing.T) {
	var got map[string]any
	var auth, path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":" {\"title\":\"Dune\"} "}}]}`)
	}))
	defer ts.Close()

	c := &ChatCompleter{APIKey: "gsk_1", Model: "llama3-8b-8192", BaseURL: ts.URL + "/openai/v1/", Client: ts.Client()}
	out, err := c.Complete(context.Background(), Completion{Prompt: "hello", Temperature: 0.3})
	require.NoError(t, err)

	assert.Equal(t, `{"title":"Dune"}`, out)
	assert.Equal(t, "Bearer gsk_1", auth)
	assert.Equal(t, "/openai/v1/chat/completions", path)
	assert.Equal(t, "llama3-8b-8192", got["model"])
	assert.Equal(t, 0.3, got["temperature"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].(map[string]any)["content"])
}

func TestChatCompleterDefaultBaseURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{}"}}]}`)
	}))
	defer ts.Close()
	old := groqBaseURL
	groqBaseURL = ts.URL + "/v1"
	defer func() { groqBaseURL = old }()

	c := &ChatCompleter{Client: ts.Client()}
	_, err := c.Complete(context.Background(), Completion{Prompt: "x"})
	require.NoError(t, err)
}

func TestChatCompleterRetriesWithBody(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("attempt %d: empty or invalid body: %v", atomic.LoadInt32(&calls)+1, err)
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{}"}}]}`)
	}))
	defer ts.Close()

	c := &ChatCompleter{BaseURL: ts.URL, MaxRetries: 1, Client: ts.Client()}
	_, err := c.Complete(context.Background(), Completion{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestChatCompleterErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		errMsg string
	}{
		{"bad request", http.StatusBadRequest, `{"error":"bad model"}`, "returned 400"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"garbage", http.StatusOK, `not json`, "decoding chat response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			c := &ChatCompleter{BaseURL: ts.URL, Client: ts.Client()}
			_, err := c.Complete(context.Background(), Completion{Prompt: "x"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestClaudeCompleter(t *testing.T) {
	var got claudeRequest
	var key, version string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("x-api-key")
		version = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"content":[{"type":"thinking","text":"..."},{"type":"text","text":"`+"```json\\n{\\\"pdf_url\\\": null}\\n```"+`"}]}`)
	}))
	defer ts.Close()
	old := claudeAPIURL
	claudeAPIURL = ts.URL
	defer func() { claudeAPIURL = old }()

	c := &ClaudeCompleter{APIKey: "sk-ant", Model: "claude-test", Client: ts.Client()}
	out, err := c.Complete(context.Background(), Completion{Prompt: "find", Temperature: 0.2})
	require.NoError(t, err)

	assert.Equal(t, `{"pdf_url": null}`, out)
	assert.Equal(t, "sk-ant", key)
	assert.Equal(t, "2023-06-01", version)
	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, 0.2, got.Temperature)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "find", got.Messages[0].Content)
}

func TestClaudeCompleterNoText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[]}`)
	}))
	defer ts.Close()
	old := claudeAPIURL
	claudeAPIURL = ts.URL
	defer func() { claudeAPIURL = old }()

	c := &ClaudeCompleter{Client: ts.Client()}
	_, err := c.Complete(context.Background(), Completion{Prompt: "x"})
	assert.ErrorContains(t, err, "no text content")
}

func TestStripFences(t *testing.T) {
	tests := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripFences(tt.in))
	}
}
