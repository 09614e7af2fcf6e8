package providers

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimited wraps a Provider with a requests-per-minute throttle.
// Every Chat/ChatStream call waits for a token before hitting the API,
// so parallel sub-agents and teammates share one budget.
type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

// RateLimited caps p at rpm requests per minute. rpm <= 0 returns p as is.
func RateLimited(p Provider, rpm int) Provider {
	if rpm <= 0 {
		return p
	}
	return &rateLimited{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
	}
}

func (r *rateLimited) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Provider.Chat(ctx, req)
}

func (r *rateLimited) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Provider.ChatStream(ctx, req, onChunk)
}
