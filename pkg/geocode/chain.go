package geocode

import (
	"context"

	"go.uber.org/zap"

	"github.com/hududed/bayanlab/internal/resilience"
)

// Chain tries providers in order until one returns a match. Each provider
// call is retried with bounded backoff on transient failures; a provider
// that keeps failing or returns no match hands off to the next one. When
// every provider is exhausted the chain reports an unmatched result rather
// than an error, so a record can proceed through the pipeline without
// coordinates.
type Chain struct {
	providers []Provider
	retry     resilience.RetryConfig
}

// ChainOption configures the chain.
type ChainOption func(*Chain)

// WithRetry overrides the per-provider retry configuration.
func WithRetry(cfg resilience.RetryConfig) ChainOption {
	return func(c *Chain) { c.retry = cfg }
}

// NewChain creates a provider chain tried in the given order.
func NewChain(providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		providers: providers,
		retry: resilience.RetryConfig{
			MaxAttempts: 3,
			OnRetry:     resilience.RetryLogger("geocode", "resolve"),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve implements Resolver by walking the provider chain.
func (c *Chain) Resolve(ctx context.Context, addr AddressInput) (*Result, error) {
	if addr.Empty() {
		return &Result{Matched: false, Source: "chain"}, nil
	}

	for _, p := range c.providers {
		if !p.Available() {
			continue
		}

		result, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Result, error) {
			return p.Resolve(ctx, addr)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Debug("geocode: provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if result != nil && result.Matched {
			return result, nil
		}
	}

	return &Result{Matched: false, Source: "chain"}, nil
}
