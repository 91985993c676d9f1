// Package gateway adapts SMS provider APIs to one send/probe contract and
// keeps the registry of configured gateways.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

type SendRequest struct {
	To      string // E.164
	From    string // resolved sender id
	Body    string
	Unicode bool // body needs UCS-2
}

type SendResult struct {
	MessageID string
	Cost      *float64 // provider-reported cost, when returned
}

// Sender is the capability the dispatcher needs from a gateway.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// Provider is implemented by each gateway adapter.
type Provider interface {
	Sender
	Name() string
	// Balance queries the provider's account balance. A nil balance with a nil
	// error means the provider is reachable but does not report one.
	Balance(ctx context.Context) (*float64, error)
}

type ErrorKind string

const (
	ErrTransient   ErrorKind = "transient"   // timeout, 5xx, throttled
	ErrPermanent   ErrorKind = "permanent"   // rejected recipient or sender id
	ErrAuth        ErrorKind = "auth"        // bad credentials
	ErrUnavailable ErrorKind = "unavailable" // circuit open or local rate limit
	ErrInternal    ErrorKind = "internal"    // malformed response, unexpected failure
)

// SendError is the normalized failure returned by adapters.
type SendError struct {
	Kind       ErrorKind
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *SendError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s: %s (code=%s status=%d)", e.Kind, msg, e.Code, e.HTTPStatus)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code=%s)", e.Kind, msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *SendError) Unwrap() error { return e.Err }

// KindOf classifies any error returned from a provider call.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *SendError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTransient
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTransient
	}
	return ErrInternal
}

// kindForStatus maps an HTTP status to an error kind.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return ErrTransient
	case status >= 500:
		return ErrTransient
	default:
		return ErrPermanent
	}
}

func transportError(err error) *SendError {
	kind := ErrInternal
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = ErrTransient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		kind = ErrTransient
	}
	return &SendError{Kind: kind, Code: "TRANSPORT", Err: err}
}

// doJSON performs an HTTP request and returns status and body. Transport
// failures come back as *SendError.
func doJSON(ctx context.Context, client *http.Client, method, url string, body any, decorate func(*http.Request)) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, &SendError{Kind: ErrInternal, Code: "ENCODE", Err: err}
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, nil, &SendError{Kind: ErrInternal, Code: "REQUEST", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if decorate != nil {
		decorate(req)
	}

	res, err := client.Do(req)
	if err != nil {
		return 0, nil, transportError(err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return res.StatusCode, nil, transportError(err)
	}
	return res.StatusCode, b, nil
}

func malformed(provider string, err error) *SendError {
	return &SendError{Kind: ErrInternal, Code: "MALFORMED_RESPONSE", Message: provider + ": malformed response", Err: err}
}

func floatPtr(f float64) *float64 { return &f }
