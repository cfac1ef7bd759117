package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		http.DefaultTransport.(*http.Transport).CloseIdleConnections()
	})
	return srv
}

func TestOllamaEmbedder(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    []float32
		wantErr string
	}{
		{"ok", http.StatusOK, `{"embedding": [0.5, -1, 2]}`, []float32{0.5, -1, 2}, ""},
		{"server error", http.StatusInternalServerError, `{}`, nil, "Ollama returned status 500"},
		{"empty vector", http.StatusOK, `{"embedding": []}`, nil, "empty embedding"},
		{"bad json", http.StatusOK, `not json`, nil, "decoding response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ollamaEmbedRequest
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/embeddings", r.URL.Path)
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			vec, err := NewOllamaEmbedder(srv.URL+"/", "").Embed(context.Background(), "Avoid SELECT *")
			assert.Equal(t, "all-minilm", got.Model)
			assert.Equal(t, "Avoid SELECT *", got.Prompt)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, vec)
		})
	}
}

func TestOpenAILLM(t *testing.T) {
	var req struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/serving-endpoints/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer dapi-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "1", "object": "chat.completion", "choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"issues_found\": 0, \"issues\": []}"}, "finish_reason": "stop"}]}`))
	})

	llm, err := NewOpenAILLM("dapi-test", srv.URL+"/serving-endpoints/", "databricks-claude-sonnet-4")
	require.NoError(t, err)
	reply, err := llm.GenerateResponse(context.Background(), Prompt{System: "be terse", User: "review this", Temperature: 0.75})
	require.NoError(t, err)

	assert.Equal(t, `{"issues_found": 0, "issues": []}`, reply)
	assert.Equal(t, "databricks-claude-sonnet-4", req.Model)
	assert.Equal(t, float32(0.75), req.Temperature)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "review this", req.Messages[1].Content)
}

func TestOpenAILLM_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"ip acl", http.StatusForbidden, `{"error": {"message": "Source IP address is blocked by Databricks IP ACL", "type": "forbidden"}}`, models.ErrAccessDenied},
		{"server error", http.StatusInternalServerError, `{"error": {"message": "upstream failed", "type": "server_error"}}`, models.ErrLLMUnavailable},
		{"no choices", http.StatusOK, `{"id": "1", "choices": []}`, models.ErrMalformedOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			llm, err := NewOpenAILLM("tok", srv.URL, "m")
			require.NoError(t, err)
			_, err = llm.GenerateResponse(context.Background(), Prompt{User: "hi"})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestNewOpenAILLM_Validation(t *testing.T) {
	_, err := NewOpenAILLM("", "", "m")
	assert.Error(t, err)
	_, err = NewOpenAILLM("tok", "", "")
	assert.Error(t, err)
}
