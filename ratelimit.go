package corpus

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedEmbedding wraps an EmbeddingProvider with proactive rate
// limiting. Calls block until the token bucket allows them to proceed.
//
// The limiter is one global bucket: when several ingestion workers share the
// same wrapped provider (or the same *rate.Limiter via SharedLimiter), they
// share one budget rather than each getting their own.
type rateLimitedEmbedding struct {
	inner   EmbeddingProvider
	limiter *rate.Limiter
	perText bool
}

// RateLimitOption configures a rateLimitedEmbedding.
type RateLimitOption func(*rateLimitedEmbedding)

// RequestsPerMinute caps provider calls per minute (burst of 1 by default).
func RequestsPerMinute(n int) RateLimitOption {
	return func(r *rateLimitedEmbedding) {
		r.limiter = rate.NewLimiter(rate.Limit(float64(n)/60.0), 1)
	}
}

// Burst sets the bucket burst size. Apply after RequestsPerMinute.
func Burst(n int) RateLimitOption {
	return func(r *rateLimitedEmbedding) {
		if r.limiter != nil {
			r.limiter.SetBurst(n)
		}
	}
}

// SharedLimiter injects an externally-owned limiter so multiple provider
// instances draw from the same global budget.
func SharedLimiter(l *rate.Limiter) RateLimitOption {
	return func(r *rateLimitedEmbedding) { r.limiter = l }
}

// PerText charges one token per input text instead of one per call, for
// providers whose quota is expressed in texts rather than requests.
func PerText() RateLimitOption {
	return func(r *rateLimitedEmbedding) { r.perText = true }
}

// WithEmbeddingRateLimit wraps p with token-bucket rate limiting. Compose
// with other wrappers:
//
//	emb = corpus.WithEmbeddingRateLimit(emb, corpus.RequestsPerMinute(120))
//	emb = corpus.WithEmbeddingRateLimit(corpus.WithEmbeddingRetry(emb), corpus.SharedLimiter(bucket))
func WithEmbeddingRateLimit(p EmbeddingProvider, opts ...RateLimitOption) EmbeddingProvider {
	r := &rateLimitedEmbedding{inner: p}
	for _, opt := range opts {
		opt(r)
	}
	if r.limiter == nil {
		r.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return r
}

func (r *rateLimitedEmbedding) Name() string    { return r.inner.Name() }
func (r *rateLimitedEmbedding) Model() string   { return r.inner.Model() }
func (r *rateLimitedEmbedding) Dimensions() int { return r.inner.Dimensions() }

func (r *rateLimitedEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	n := 1
	if r.perText {
		n = len(texts)
		if n < 1 {
			n = 1
		}
		if burst := r.limiter.Burst(); r.limiter.Limit() != rate.Inf && n > burst {
			n = burst // a single oversized batch must not deadlock the bucket
		}
	}
	if err := r.limiter.WaitN(ctx, n); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

// compile-time check
var _ EmbeddingProvider = (*rateLimitedEmbedding)(nil)
