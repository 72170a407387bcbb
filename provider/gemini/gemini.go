// Package gemini adapts the Google Generative Language API to magi.Provider.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/magiconsole/magi"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is the model used when a request leaves Model empty.
	DefaultModel = "gemini-2.0-flash-lite"
)

// Provider is the Gemini API adapter.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

var _ magi.Provider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL sets a custom base URL.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a new Gemini provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "gemini" }

type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
		TotalTokenCount      int64 `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
	ResponseID   string `json:"responseId"`
}

func (p *Provider) ChatCompletion(ctx context.Context, req magi.ProviderRequest) (magi.ProviderResponse, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, url.PathEscape(model))

	jsonBody, err := json.Marshal(buildRequest(req))
	if err != nil {
		return magi.ProviderResponse{}, fmt.Errorf("magi: marshal gemini request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return magi.ProviderResponse{}, fmt.Errorf("magi: create gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", req.Auth.APIKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return magi.ProviderResponse{}, fmt.Errorf("%w: %v", magi.ErrProviderUnavailable, err)
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return magi.ProviderResponse{}, err
	}

	var resp generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return magi.ProviderResponse{}, fmt.Errorf("%w: decode gemini response: %v", magi.ErrProviderUnavailable, err)
	}

	if len(resp.Candidates) == 0 {
		return magi.ProviderResponse{}, magi.ErrEmptyResponse
	}

	var text strings.Builder
	for _, pt := range resp.Candidates[0].Content.Parts {
		text.WriteString(pt.Text)
	}

	respModel := resp.ModelVersion
	if respModel == "" {
		respModel = model
	}

	return magi.ProviderResponse{
		ID:           resp.ResponseID,
		Content:      text.String(),
		FinishReason: strings.ToLower(resp.Candidates[0].FinishReason),
		Model:        respModel,
		Usage: magi.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

// buildRequest moves system messages into systemInstruction; Gemini
// rejects a "system" role inside contents.
func buildRequest(req magi.ProviderRequest) generateRequest {
	var gr generateRequest
	var system []part

	for _, m := range req.Messages {
		switch m.Role {
		case magi.RoleSystem:
			system = append(system, part{Text: m.Content})
		case magi.RoleAssistant:
			gr.Contents = append(gr.Contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			gr.Contents = append(gr.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}

	if len(system) > 0 {
		gr.SystemInstruction = &content{Parts: system}
	}

	if req.Temperature != nil || req.MaxTokens != nil || req.TopP != nil || len(req.Stop) > 0 {
		gr.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
			TopP:            req.TopP,
			StopSequences:   req.Stop,
		}
	}

	return gr
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return magi.ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return magi.ErrAuthFailed
	case http.StatusBadRequest, http.StatusNotFound:
		return fmt.Errorf("%w: %s", magi.ErrInvalidRequest, string(body))
	default:
		return fmt.Errorf("%w: status %d", magi.ErrProviderUnavailable, resp.StatusCode)
	}
}
