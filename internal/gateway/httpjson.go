package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider posts {to, from, body, unicode} to a generic JSON endpoint and
// expects {message_id, cost}. It fronts in-house or aggregator gateways that
// speak the platform's own contract.
type HTTPProvider struct {
	name        string
	baseURL     string
	sendPath    string
	balancePath string
	token       string
	client      *http.Client
}

func NewHTTPProvider(name, baseURL, sendPath, balancePath, token string, timeout time.Duration) *HTTPProvider {
	if sendPath == "" {
		sendPath = "/send"
	}
	return &HTTPProvider{
		name:        name,
		baseURL:     strings.TrimRight(baseURL, "/"),
		sendPath:    sendPath,
		balancePath: balancePath,
		token:       token,
		client:      &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) auth(r *http.Request) {
	if p.token != "" {
		r.Header.Set("Authorization", "Bearer "+p.token)
	}
}

func (p *HTTPProvider) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	payload := map[string]any{"to": req.To, "from": req.From, "body": req.Body, "unicode": req.Unicode}
	status, body, err := doJSON(ctx, p.client, http.MethodPost, p.baseURL+p.sendPath, payload, p.auth)
	if err != nil {
		return SendResult{}, err
	}

	var out struct {
		MessageID string   `json:"message_id"`
		Cost      *float64 `json:"cost"`
		Error     string   `json:"error"`
	}
	_ = json.Unmarshal(body, &out)

	if status/100 != 2 {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(status)
		}
		return SendResult{}, &SendError{Kind: kindForStatus(status), Message: msg, HTTPStatus: status}
	}
	if out.MessageID == "" {
		return SendResult{}, malformed(p.name, nil)
	}
	return SendResult{MessageID: out.MessageID, Cost: out.Cost}, nil
}

func (p *HTTPProvider) Balance(ctx context.Context) (*float64, error) {
	path := p.balancePath
	if path == "" {
		path = "/health"
	}
	status, body, err := doJSON(ctx, p.client, http.MethodGet, p.baseURL+path, nil, p.auth)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, &SendError{Kind: kindForStatus(status), Message: "status request failed", HTTPStatus: status}
	}
	var out struct {
		Balance *float64 `json:"balance"`
	}
	_ = json.Unmarshal(body, &out)
	return out.Balance, nil
}
