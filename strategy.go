package magi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultProviderTimeout bounds a single provider attempt.
const DefaultProviderTimeout = 10 * time.Second

// Prompt is what a strategy receives for one turn.
type Prompt struct {
	Query       Query
	Instruction string
}

// Completion is a successful strategy result.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// Strategy is one link of the response chain.
type Strategy interface {
	// Source identifies the strategy in replies, logs and metrics.
	Source() Source

	// Name returns the backing provider name (e.g. "gemini").
	Name() string

	// Enabled reports whether the credentials/configuration it needs are present.
	Enabled() bool

	// Attempt produces a reply or an error. It must honour ctx.
	Attempt(ctx context.Context, p Prompt) (Completion, error)
}

// ProviderStrategy sends the prompt to an external generative provider.
type ProviderStrategy struct {
	source   Source
	provider Provider
	auth     Auth
	model    string
	timeout  time.Duration

	temperature *float64
	maxTokens   *int
}

var _ Strategy = (*ProviderStrategy)(nil)

// ProviderOption configures a ProviderStrategy.
type ProviderOption func(*ProviderStrategy)

// WithTimeout bounds each attempt. Zero keeps DefaultProviderTimeout.
func WithTimeout(d time.Duration) ProviderOption {
	return func(s *ProviderStrategy) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ProviderOption {
	return func(s *ProviderStrategy) { s.temperature = Float64Ptr(t) }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ProviderOption {
	return func(s *ProviderStrategy) { s.maxTokens = IntPtr(n) }
}

// NewProviderStrategy wraps a provider adapter as a chain link.
func NewProviderStrategy(src Source, p Provider, auth Auth, model string, opts ...ProviderOption) *ProviderStrategy {
	s := &ProviderStrategy{
		source:   src,
		provider: p,
		auth:     auth,
		model:    model,
		timeout:  DefaultProviderTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ProviderStrategy) Source() Source { return s.source }

func (s *ProviderStrategy) Name() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// Enabled is false when no API key is configured.
func (s *ProviderStrategy) Enabled() bool {
	return s.provider != nil && strings.TrimSpace(s.auth.APIKey) != ""
}

// Attempt calls the provider under the strategy timeout.
func (s *ProviderStrategy) Attempt(ctx context.Context, p Prompt) (c Completion, err error) {
	if !s.Enabled() {
		return Completion{}, ErrStrategyDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in %s adapter: %v", ErrProviderUnavailable, s.provider.Name(), r)
		}
	}()

	resp, err := s.provider.ChatCompletion(ctx, ProviderRequest{
		Auth:  s.auth,
		Model: s.model,
		Messages: []Message{
			{Role: RoleSystem, Content: p.Instruction},
			{Role: RoleUser, Content: p.Query.Text},
		},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Completion{}, fmt.Errorf("%w: %s after %s", ErrProviderTimeout, s.Name(), s.timeout)
		}
		if ctx.Err() != nil {
			return Completion{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
		}
		return Completion{}, err
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return Completion{}, ErrEmptyResponse
	}

	model := resp.Model
	if model == "" {
		model = s.model
	}
	return Completion{Text: text, Model: model, Usage: resp.Usage}, nil
}
