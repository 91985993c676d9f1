package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angosms/sms-gateway/internal/config"
	"github.com/angosms/sms-gateway/internal/gateway"
	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/segment"
)

type fakeSender struct {
	name  string
	err   error
	panic bool
	block bool

	mu    sync.Mutex
	calls []gateway.SendRequest
}

func (f *fakeSender) Send(ctx context.Context, req gateway.SendRequest) (gateway.SendResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.panic {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return gateway.SendResult{}, &gateway.SendError{Kind: gateway.ErrTransient, Err: ctx.Err()}
	}
	if f.err != nil {
		return gateway.SendResult{}, f.err
	}
	return gateway.SendResult{MessageID: f.name + "-msg"}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSet map[string]*fakeSender

func (s fakeSet) Active(ctx context.Context, name string) (gateway.Sender, bool) {
	f, ok := s[name]
	if !ok {
		return nil, false
	}
	return f, true
}

type staticRules struct {
	rules []model.RoutingRule
	err   error
	calls int
}

func (s *staticRules) ListRoutingRules(ctx context.Context) ([]model.RoutingRule, error) {
	s.calls++
	return s.rules, s.err
}

var transient = &gateway.SendError{Kind: gateway.ErrTransient, Message: "503 from provider", HTTPStatus: 503}

func newDispatcher(set fakeSet, rules ...model.RoutingRule) *Dispatcher {
	rt := NewRouteTable(&staticRules{rules: rules}, config.RoutePair{Primary: "routee", Fallback: "bulksms"}, time.Minute, nil)
	return New(set, rt, Options{SendTimeout: 50 * time.Millisecond})
}

var aoRule = model.RoutingRule{CountryCode: "AO", PrimaryGateway: "bulkgate", FallbackGateway: "bulksms"}

func TestDispatchPrimarySuccess(t *testing.T) {
	set := fakeSet{"bulkgate": {name: "bulkgate"}, "bulksms": {name: "bulksms"}}
	d := newDispatcher(set, aoRule)

	res := d.Dispatch(context.Background(), NewMessage("Olá mundo", 0), "KWANZA", "+244923456789", "acc-1")
	require.True(t, res.Success)
	assert.Equal(t, "AO", res.Country)
	assert.Equal(t, "bulkgate", res.Gateway)
	assert.Equal(t, "bulkgate-msg", res.MessageID)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, int64(1), res.Cost)
	require.Len(t, res.Attempts, 1)
	assert.True(t, res.Attempts[0].Success)
	assert.Equal(t, 0, set["bulksms"].count())

	req := set["bulkgate"].calls[0]
	assert.Equal(t, "KWANZA", req.From)
	assert.True(t, req.Unicode)
}

func TestDispatchFallback(t *testing.T) {
	set := fakeSet{"bulkgate": {name: "bulkgate", err: transient}, "bulksms": {name: "bulksms"}}
	d := newDispatcher(set, aoRule)

	msg := NewMessage(strings.Repeat("a", 200), 0)
	res := d.Dispatch(context.Background(), msg, "KWANZA", "+244923456789", "acc-1")
	require.True(t, res.Success)
	assert.Equal(t, "bulksms", res.Gateway)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, int64(2), res.Cost)
	require.Len(t, res.Attempts, 2)
	assert.False(t, res.Attempts[0].Success)
	assert.Equal(t, string(gateway.ErrTransient), res.Attempts[0].ErrorKind)
	assert.Contains(t, res.Attempts[0].Error, "503")
	assert.True(t, res.Attempts[1].Success)
}

func TestDispatchPermanentErrorStillFallsThrough(t *testing.T) {
	perm := &gateway.SendError{Kind: gateway.ErrPermanent, Message: "sender id rejected"}
	set := fakeSet{"bulkgate": {name: "bulkgate", err: perm}, "bulksms": {name: "bulksms"}}
	res := newDispatcher(set, aoRule).Dispatch(context.Background(), NewMessage("hi", 0), "KWANZA", "+244923456789", "acc-1")
	assert.True(t, res.Success)
	assert.True(t, res.FallbackUsed)
}

func TestDispatchAllFailed(t *testing.T) {
	set := fakeSet{"bulkgate": {name: "bulkgate", err: transient}, "bulksms": {name: "bulksms", err: transient}}
	res := newDispatcher(set, aoRule).Dispatch(context.Background(), NewMessage("hi", 0), "KWANZA", "+244923456789", "acc-1")
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrCodeAllGatewaysFailed, res.ErrorCode)
	assert.Equal(t, int64(0), res.Cost)
	assert.Len(t, res.Attempts, 2)
	assert.Equal(t, 1, set["bulkgate"].count(), "no same-gateway retry")
	assert.Contains(t, res.LastError(), "503")
}

func TestDispatchNoGateway(t *testing.T) {
	set := fakeSet{"routee": {name: "routee"}}
	res := newDispatcher(set, aoRule).Dispatch(context.Background(), NewMessage("hi", 0), "KWANZA", "+244923456789", "acc-1")
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrCodeNoGateway, res.ErrorCode)
	assert.Empty(t, res.Attempts)
	assert.Equal(t, int64(0), res.Cost)
}

func TestDispatchDefaultRouteForUnknownCountry(t *testing.T) {
	set := fakeSet{"routee": {name: "routee"}, "bulksms": {name: "bulksms"}, "bulkgate": {name: "bulkgate"}}
	d := newDispatcher(set, aoRule)

	res := d.Dispatch(context.Background(), NewMessage("hi", 0), "KWANZA", "+351912345678", "acc-1")
	require.True(t, res.Success)
	assert.Equal(t, "PT", res.Country)
	assert.Equal(t, "routee", res.Gateway)

	res = d.Dispatch(context.Background(), NewMessage("hi", 0), "KWANZA", "+999123", "acc-1")
	assert.Equal(t, model.CountryUnknown, res.Country)
	assert.Equal(t, "routee", res.Gateway)
}

func TestDispatchSameGatewayTwiceIsTriedOnce(t *testing.T) {
	set := fakeSet{"bulkgate": {name: "bulkgate", err: transient}}
	rule := model.RoutingRule{CountryCode: "AO", PrimaryGateway: "bulkgate", FallbackGateway: "bulkgate"}
	res := newDispatcher(set, rule).Dispatch(context.Background(), NewMessage("hi", 0), "KWANZA", "+244923456789", "acc-1")
	assert.Equal(t, model.ErrCodeAllGatewaysFailed, res.ErrorCode)
	assert.Len(t, res.Attempts, 1)
}

func TestDispatchRecoversPanic(t *testing.T) {
	set := fakeSet{"bulkgate": {name: "bulkgate", panic: true}, "bulksms": {name: "bulksms"}}
	res := newDispatcher(set, aoRule).Dispatch(context.Background(), NewMessage("hi", 0), "KWANZA", "+244923456789", "acc-1")
	require.True(t, res.Success)
	assert.Equal(t, "bulksms", res.Gateway)
	assert.Contains(t, res.Attempts[0].Error, model.ErrCodeDispatch)
	assert.Equal(t, string(gateway.ErrInternal), res.Attempts[0].ErrorKind)
}

func TestDispatchUnexpectedErrorIsDispatchError(t *testing.T) {
	set := fakeSet{"bulkgate": {name: "bulkgate", err: errors.New("nil map")}, "bulksms": {name: "bulksms", err: transient}}
	res := newDispatcher(set, aoRule).Dispatch(context.Background(), NewMessage("hi", 0), "KWANZA", "+244923456789", "acc-1")
	assert.False(t, res.Success)
	assert.Contains(t, res.Attempts[0].Error, model.ErrCodeDispatch)
}

func TestDispatchPerAttemptTimeout(t *testing.T) {
	set := fakeSet{"bulkgate": {name: "bulkgate", block: true}, "bulksms": {name: "bulksms"}}
	res := newDispatcher(set, aoRule).Dispatch(context.Background(), NewMessage("hi", 0), "KWANZA", "+244923456789", "acc-1")
	require.True(t, res.Success)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, string(gateway.ErrTransient), res.Attempts[0].ErrorKind)
}

func TestDispatchCancelledBeforeAttempt(t *testing.T) {
	set := fakeSet{"bulkgate": {name: "bulkgate"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := newDispatcher(set, aoRule).Dispatch(ctx, NewMessage("hi", 0), "KWANZA", "+244923456789", "acc-1")
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrCodeCancelled, res.ErrorCode)
	assert.Equal(t, 0, set["bulkgate"].count())
}

func TestRoute(t *testing.T) {
	set := fakeSet{"bulkgate": {name: "bulkgate"}}
	country, names := newDispatcher(set, aoRule).Route(context.Background(), "+244923456789")
	assert.Equal(t, "AO", country)
	assert.Equal(t, []string{"bulkgate"}, names)
}

func TestNewMessage(t *testing.T) {
	m := NewMessage("€", 0)
	assert.Equal(t, segment.GSM7, m.Info.Encoding)
	assert.Equal(t, 2, m.Info.Characters)
}
