package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedEmbedder throttles calls to an Embedder with a token bucket.
type rateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

var _ Embedder = (*rateLimitedEmbedder)(nil)

// WithRateLimiting wraps next so that calls never exceed rps requests per second.
// A non-positive rps returns next unchanged.
func WithRateLimiting(next Embedder, rps float64, burst int) Embedder {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedEmbedder{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// EmbedText waits for a token then delegates.
func (r *rateLimitedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.EmbedText(ctx, text)
}

// EmbedTexts waits for a token then delegates.
func (r *rateLimitedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.EmbedTexts(ctx, texts)
}
