// Package dispatcher routes one message to one recipient over the gateway
// pair configured for the recipient's country.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/gateway"
	"github.com/angosms/sms-gateway/internal/metrics"
	"github.com/angosms/sms-gateway/internal/model"
	"github.com/angosms/sms-gateway/internal/phone"
	"github.com/angosms/sms-gateway/internal/segment"
)

// GatewaySet resolves a gateway name to a sender when it is active and
// configured. Implemented by gateway.Registry.
type GatewaySet interface {
	Active(ctx context.Context, name string) (gateway.Sender, bool)
}

// Message is a body already checked by the segment calculator.
type Message struct {
	Body string
	Info segment.Info
}

type Options struct {
	SendTimeout       time.Duration // per attempt, default 8s
	CreditsPerSegment int64         // default 1
	Log               *zap.Logger
}

type Dispatcher struct {
	gateways          GatewaySet
	routes            *RouteTable
	sendTimeout       time.Duration
	creditsPerSegment int64
	log               *zap.Logger
	now               func() time.Time
}

func New(gateways GatewaySet, routes *RouteTable, opts Options) *Dispatcher {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 8 * time.Second
	}
	if opts.CreditsPerSegment <= 0 {
		opts.CreditsPerSegment = 1
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Dispatcher{
		gateways:          gateways,
		routes:            routes,
		sendTimeout:       opts.SendTimeout,
		creditsPerSegment: opts.CreditsPerSegment,
		log:               opts.Log,
		now:               time.Now,
	}
}

type candidate struct {
	name   string
	sender gateway.Sender
}

// Route returns the active gateways that would be tried for to, in order.
func (d *Dispatcher) Route(ctx context.Context, to string) (string, []string) {
	country := phone.CountryOf(to)
	cands := d.candidates(ctx, country)
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.name
	}
	return country, names
}

func (d *Dispatcher) candidates(ctx context.Context, country string) []candidate {
	rule := d.routes.Lookup(ctx, country)
	var out []candidate
	for _, name := range rule.Ordered() {
		if s, ok := d.gateways.Active(ctx, name); ok {
			out = append(out, candidate{name: name, sender: s})
		}
	}
	return out
}

// Dispatch sends msg to one E.164 recipient, trying the country's primary
// then fallback gateway once each. It always returns a terminal result and
// never an error.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message, senderID, to, accountID string) model.DispatchResult {
	start := d.now()
	country := phone.CountryOf(to)
	res := model.DispatchResult{
		Recipient: to,
		Country:   country,
		Segments:  msg.Info.Segments,
		Attempts:  []model.DispatchAttempt{},
	}
	defer func() {
		metrics.DispatchDuration.Observe(d.now().Sub(start).Seconds())
		gw := res.Gateway
		status := string(model.SmsSent)
		if !res.Success {
			gw, status = "none", string(model.SmsFailed)
		}
		metrics.MessagesTotal.WithLabelValues(status, gw).Inc()
	}()

	cands := d.candidates(ctx, country)
	if len(cands) == 0 {
		res.ErrorCode = model.ErrCodeNoGateway
		d.log.Warn("no gateway available",
			zap.String("country", country),
			zap.String("account_id", accountID))
		return res
	}

	req := gateway.SendRequest{
		To:      to,
		From:    senderID,
		Body:    msg.Body,
		Unicode: msg.Info.Encoding == segment.UCS2,
	}
	for i, c := range cands {
		if ctx.Err() != nil {
			break
		}
		at := d.now()
		sent, err := d.attempt(ctx, c.sender, req)
		a := model.DispatchAttempt{
			Gateway:    c.name,
			At:         at.UTC(),
			Success:    err == nil,
			DurationMs: d.now().Sub(at).Milliseconds(),
		}
		if err != nil {
			kind := gateway.KindOf(err)
			a.ErrorKind = string(kind)
			a.Error = err.Error()
			var se *gateway.SendError
			if !errors.As(err, &se) || se.Code == model.ErrCodeDispatch {
				a.Error = model.ErrCodeDispatch + ": " + err.Error()
			}
			metrics.AttemptsTotal.WithLabelValues(c.name, string(kind)).Inc()
			d.log.Warn("gateway attempt failed",
				zap.String("gateway", c.name),
				zap.String("country", country),
				zap.String("kind", string(kind)),
				zap.Error(err))
			res.Attempts = append(res.Attempts, a)
			continue
		}

		metrics.AttemptsTotal.WithLabelValues(c.name, "ok").Inc()
		res.Attempts = append(res.Attempts, a)
		res.Success = true
		res.Gateway = c.name
		res.MessageID = sent.MessageID
		res.FallbackUsed = i > 0
		res.Cost = int64(msg.Info.Segments) * d.creditsPerSegment
		if res.FallbackUsed {
			metrics.FallbackTotal.WithLabelValues(country).Inc()
		}
		return res
	}

	if len(res.Attempts) == 0 {
		res.ErrorCode = model.ErrCodeCancelled
		return res
	}
	res.ErrorCode = model.ErrCodeAllGatewaysFailed
	return res
}

// attempt runs one send with its own deadline and turns a panic into an
// internal error.
func (d *Dispatcher) attempt(ctx context.Context, s gateway.Sender, req gateway.SendRequest) (res gateway.SendResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &gateway.SendError{Kind: gateway.ErrInternal, Code: model.ErrCodeDispatch, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	actx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return s.Send(actx, req)
}
