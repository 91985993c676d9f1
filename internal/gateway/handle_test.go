package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider returns queued errors in order, then succeeds.
type stubProvider struct {
	name    string
	mu      sync.Mutex
	errs    []error
	calls   int
	balance *float64
	balErr  error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return SendResult{}, err
	}
	return SendResult{MessageID: s.name + "-id"}, nil
}

func (s *stubProvider) Balance(ctx context.Context) (*float64, error) { return s.balance, s.balErr }

func (s *stubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestBreakerOpensOnTransientFailures(t *testing.T) {
	transient := &SendError{Kind: ErrTransient, Message: "503"}
	p := &stubProvider{name: "a", errs: []error{transient, transient, transient}}
	h := NewHandle(p, 0, 0, NewBreaker("a", 3, time.Minute, nil), 0)

	for i := 0; i < 3; i++ {
		_, err := h.Send(context.Background(), SendRequest{To: "+1"})
		assert.Equal(t, ErrTransient, KindOf(err))
	}
	assert.False(t, h.Ready())

	_, err := h.Send(context.Background(), SendRequest{To: "+1"})
	require.Error(t, err)
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "CIRCUIT_OPEN", se.Code)
	assert.Equal(t, 3, p.Calls())
}

func TestBreakerIgnoresPermanentFailures(t *testing.T) {
	perm := &SendError{Kind: ErrPermanent, Message: "bad number"}
	p := &stubProvider{name: "a", errs: []error{perm, perm, perm, perm}}
	h := NewHandle(p, 0, 0, NewBreaker("a", 2, time.Minute, nil), 0)

	for i := 0; i < 4; i++ {
		_, err := h.Send(context.Background(), SendRequest{To: "+1"})
		assert.Equal(t, ErrPermanent, KindOf(err))
	}
	assert.True(t, h.Ready())

	res, err := h.Send(context.Background(), SendRequest{To: "+1"})
	require.NoError(t, err)
	assert.Equal(t, "a-id", res.MessageID)
}

func TestHandleRateLimitWait(t *testing.T) {
	p := &stubProvider{name: "a"}
	h := NewHandle(p, 1, 1, nil, 10*time.Millisecond)

	_, err := h.Send(context.Background(), SendRequest{To: "+1"})
	require.NoError(t, err)

	_, err = h.Send(context.Background(), SendRequest{To: "+1"})
	require.Error(t, err)
	var se *SendError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrUnavailable, se.Kind)
	assert.Equal(t, "RATE_LIMITED", se.Code)
	assert.Equal(t, 1, p.Calls())
}
