package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magiconsole/magi"
	"github.com/magiconsole/magi/provider/gemini"
)

func testRequest() magi.ProviderRequest {
	return magi.ProviderRequest{
		Auth:  magi.Auth{APIKey: "g-key"},
		Model: "gemini-2.0-flash-lite",
		Messages: []magi.Message{
			{Role: magi.RoleSystem, Content: "be terse"},
			{Role: magi.RoleUser, Content: "hello"},
			{Role: magi.RoleAssistant, Content: "[MAGI]: hi"},
			{Role: magi.RoleUser, Content: "again"},
		},
		Temperature: magi.Float64Ptr(0.2),
	}
}

func TestChatCompletion(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash-lite:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "[MAGI]: "}, {"text": "Online."}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 11, "candidatesTokenCount": 3, "totalTokenCount": 14},
			"modelVersion": "gemini-2.0-flash-lite-001",
			"responseId": "resp-1"
		}`))
	}))
	defer srv.Close()

	p := gemini.New(gemini.WithBaseURL(srv.URL + "/"))
	resp, err := p.ChatCompletion(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "[MAGI]: Online.", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "gemini-2.0-flash-lite-001", resp.Model)
	assert.Equal(t, "resp-1", resp.ID)
	assert.Equal(t, int64(14), resp.Usage.TotalTokens)

	sys := body["systemInstruction"].(map[string]any)
	assert.Equal(t, "be terse", sys["parts"].([]any)[0].(map[string]any)["text"])

	contents := body["contents"].([]any)
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].(map[string]any)["role"])
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])

	cfg := body["generationConfig"].(map[string]any)
	assert.Equal(t, 0.2, cfg["temperature"])
}

func TestChatCompletion_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	_, err := gemini.New(gemini.WithBaseURL(srv.URL)).ChatCompletion(context.Background(), testRequest())
	assert.ErrorIs(t, err, magi.ErrEmptyResponse)
}

func TestChatCompletion_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, magi.ErrRateLimited},
		{http.StatusUnauthorized, magi.ErrAuthFailed},
		{http.StatusForbidden, magi.ErrAuthFailed},
		{http.StatusBadRequest, magi.ErrInvalidRequest},
		{http.StatusNotFound, magi.ErrInvalidRequest},
		{http.StatusServiceUnavailable, magi.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"message": "nope"}}`))
			}))
			defer srv.Close()

			_, err := gemini.New(gemini.WithBaseURL(srv.URL)).ChatCompletion(context.Background(), testRequest())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestChatCompletion_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := gemini.New(gemini.WithBaseURL(url)).ChatCompletion(context.Background(), testRequest())
	assert.ErrorIs(t, err, magi.ErrProviderUnavailable)
}
