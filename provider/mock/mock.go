// Package mock provides a scriptable magi.Provider for tests and local runs.
package mock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/magiconsole/magi"
)

// Provider is a mock generative provider.
type Provider struct {
	name         string
	content      string
	latency      time.Duration
	failAfter    int
	callCount    atomic.Int64
	staticErr    error
	usage        magi.Usage
	responseFunc func(magi.ProviderRequest) (magi.ProviderResponse, error)
	lastRequest  atomic.Pointer[magi.ProviderRequest]
}

var _ magi.Provider = (*Provider)(nil)

// Option configures a mock Provider.
type Option func(*Provider)

// New creates a mock provider with the given options.
func New(opts ...Option) *Provider {
	p := &Provider{
		name:    "mock",
		content: "[MAGI]: Hello from mock provider",
		usage: magi.Usage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithName sets the provider name.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithContent sets the reply text.
func WithContent(s string) Option {
	return func(p *Provider) { p.content = s }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(p *Provider) { p.latency = d }
}

// WithFailAfter makes the provider fail after N successful calls.
func WithFailAfter(n int) Option {
	return func(p *Provider) { p.failAfter = n }
}

// WithError makes the provider always return this error.
func WithError(err error) Option {
	return func(p *Provider) { p.staticErr = err }
}

// WithUsage sets the usage returned by the mock.
func WithUsage(u magi.Usage) Option {
	return func(p *Provider) { p.usage = u }
}

// WithResponseFunc sets a custom response function.
func WithResponseFunc(fn func(magi.ProviderRequest) (magi.ProviderResponse, error)) Option {
	return func(p *Provider) { p.responseFunc = fn }
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) ChatCompletion(ctx context.Context, req magi.ProviderRequest) (magi.ProviderResponse, error) {
	p.lastRequest.Store(&req)

	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return magi.ProviderResponse{}, ctx.Err()
		}
	}

	count := p.callCount.Add(1)

	if p.staticErr != nil {
		return magi.ProviderResponse{}, p.staticErr
	}

	if p.failAfter > 0 && int(count) > p.failAfter {
		return magi.ProviderResponse{}, magi.ErrProviderUnavailable
	}

	if p.responseFunc != nil {
		return p.responseFunc(req)
	}

	return magi.ProviderResponse{
		ID:           "mock-response-id",
		Content:      p.content,
		FinishReason: "stop",
		Usage:        p.usage,
		Model:        req.Model,
	}, nil
}

// CallCount returns the number of calls made to the provider.
func (p *Provider) CallCount() int64 { return p.callCount.Load() }

// LastRequest returns the most recent request, if any.
func (p *Provider) LastRequest() (magi.ProviderRequest, bool) {
	r := p.lastRequest.Load()
	if r == nil {
		return magi.ProviderRequest{}, false
	}
	return *r, true
}
