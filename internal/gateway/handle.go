package gateway

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Handle wraps a provider with its token bucket and circuit breaker.
type Handle struct {
	provider Provider
	limiter  *rate.Limiter
	breaker  *Breaker
	maxWait  time.Duration
}

// NewHandle builds a handle. rps <= 0 disables rate limiting.
func NewHandle(p Provider, rps float64, burst int, breaker *Breaker, maxWait time.Duration) *Handle {
	h := &Handle{provider: p, breaker: breaker, maxWait: maxWait}
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return h
}

func (h *Handle) Name() string { return h.provider.Name() }

// Ready is false while the breaker is open.
func (h *Handle) Ready() bool { return h.breaker == nil || h.breaker.Ready() }

// Send waits for a rate-limit token, then calls the provider through the
// breaker.
func (h *Handle) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if h.limiter != nil {
		wctx := ctx
		if h.maxWait > 0 {
			var cancel context.CancelFunc
			wctx, cancel = context.WithTimeout(ctx, h.maxWait)
			defer cancel()
		}
		if err := h.limiter.Wait(wctx); err != nil {
			return SendResult{}, &SendError{Kind: ErrUnavailable, Code: "RATE_LIMITED", Message: "gateway throughput limit", Err: err}
		}
	}

	if h.breaker == nil {
		return h.provider.Send(ctx, req)
	}
	return h.breaker.Execute(func() (SendResult, error) {
		return h.provider.Send(ctx, req)
	})
}
