package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"optionsproxy/internal/provider"
	"optionsproxy/internal/upstream"
)

// Limited wraps a provider and paces outgoing fetches with a token bucket.
// Callers wait for a token or return early when their context ends.
type Limited struct {
	P       provider.Provider
	Limiter *rate.Limiter
}

// New allows rps fetches per second with the given burst. rps <= 0 disables
// pacing.
func New(p provider.Provider, rps float64, burst int) *Limited {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &Limited{P: p, Limiter: rate.NewLimiter(limit, burst)}
}

func (l *Limited) Name() string { return l.P.Name() }

func (l *Limited) Fetch(ctx context.Context, q provider.Query) (*provider.Result, error) {
	if l.Limiter != nil {
		if err := l.Limiter.Wait(ctx); err != nil {
			return nil, &upstream.TransportError{Op: "wait for " + l.P.Name() + " rate limit", Err: err}
		}
	}
	return l.P.Fetch(ctx, q)
}
