package openaicompat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magiconsole/magi"
	"github.com/magiconsole/magi/provider/openaicompat"
)

func testRequest() magi.ProviderRequest {
	return magi.ProviderRequest{
		Auth:  magi.Auth{APIKey: "q-key"},
		Model: "llama-3.3-70b-versatile",
		Messages: []magi.Message{
			{Role: magi.RoleSystem, Content: "be terse"},
			{Role: magi.RoleUser, Content: "hello"},
		},
		Temperature: magi.Float64Ptr(0.6),
		MaxTokens:   magi.IntPtr(400),
	}
}

func TestChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer q-key", r.Header.Get("Authorization"))

		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama-3.3-70b-versatile", body.Model)
		assert.Equal(t, 0.6, body.Temperature)
		assert.Equal(t, 400, body.MaxTokens)
		if assert.Len(t, body.Messages, 2) {
			assert.Equal(t, "system", body.Messages[0].Role)
		}

		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "[MAGI]: Online."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 4, "total_tokens": 13}
		}`))
	}))
	defer srv.Close()

	p := openaicompat.New("groq", srv.URL)
	assert.Equal(t, "groq", p.Name())

	resp, err := p.ChatCompletion(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "[MAGI]: Online.", resp.Content)
	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, int64(13), resp.Usage.TotalTokens)
}

func TestChatCompletion_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := openaicompat.New("groq", srv.URL).ChatCompletion(context.Background(), testRequest())
	assert.ErrorIs(t, err, magi.ErrEmptyResponse)
}

func TestChatCompletion_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, magi.ErrRateLimited},
		{http.StatusUnauthorized, magi.ErrAuthFailed},
		{http.StatusBadRequest, magi.ErrInvalidRequest},
		{http.StatusBadGateway, magi.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := openaicompat.New("groq", srv.URL).ChatCompletion(context.Background(), testRequest())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, "groq", openaicompat.NewGroq().Name())
	assert.Equal(t, "openai", openaicompat.NewOpenAI().Name())
}
