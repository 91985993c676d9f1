package gateway

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/metrics"
)

// Breaker guards one gateway. Permanent errors (bad recipient, rejected
// sender id) do not count towards tripping it.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewBreaker(name string, failThreshold int, openFor time.Duration, log *zap.Logger) *Breaker {
	if failThreshold <= 0 {
		failThreshold = 3
	}
	if openFor <= 0 {
		openFor = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	threshold := uint32(failThreshold)

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || KindOf(err) == ErrPermanent
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn("gateway breaker state changed",
				zap.String("gateway", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() (SendResult, error)) (SendResult, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return SendResult{}, &SendError{Kind: ErrUnavailable, Code: "CIRCUIT_OPEN", Message: "circuit breaker open", Err: err}
	}
	res, _ := out.(SendResult)
	return res, err
}

// Ready reports whether a call would be let through.
func (b *Breaker) Ready() bool { return b.cb.State() != gobreaker.StateOpen }

func (b *Breaker) State() string { return b.cb.State().String() }
