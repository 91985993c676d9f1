package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Routee authenticates with OAuth2 client credentials and caches the access
// token until shortly before it expires.
type Routee struct {
	name      string
	baseURL   string
	authURL   string
	appID     string
	appSecret string
	client    *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewRoutee(name, baseURL, authURL, appID, appSecret string, timeout time.Duration) *Routee {
	if baseURL == "" {
		baseURL = "https://connect.routee.net"
	}
	if authURL == "" {
		authURL = "https://auth.routee.net/oauth/token"
	}
	return &Routee{
		name:      name,
		baseURL:   strings.TrimRight(baseURL, "/"),
		authURL:   authURL,
		appID:     appID,
		appSecret: appSecret,
		client:    &http.Client{Timeout: timeout},
		now:       time.Now,
	}
}

func (p *Routee) Name() string { return p.name }

func (p *Routee) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.expiresAt) {
		return p.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &SendError{Kind: ErrInternal, Code: "REQUEST", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.appID, p.appSecret)

	res, err := p.client.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))

	if res.StatusCode/100 != 2 {
		kind := kindForStatus(res.StatusCode)
		if res.StatusCode == http.StatusBadRequest {
			kind = ErrAuth
		}
		return "", &SendError{Kind: kind, Code: "TOKEN", Message: "token request rejected", HTTPStatus: res.StatusCode}
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.AccessToken == "" {
		return "", malformed(p.name, err)
	}

	ttl := time.Duration(out.ExpiresIn) * time.Second
	if ttl > 2*time.Minute {
		ttl -= time.Minute
	}
	p.token = out.AccessToken
	p.expiresAt = p.now().Add(ttl)
	return p.token, nil
}

func (p *Routee) invalidate() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}

func (p *Routee) call(ctx context.Context, method, path string, body any) (int, []byte, error) {
	tok, err := p.accessToken(ctx)
	if err != nil {
		return 0, nil, err
	}
	status, b, err := doJSON(ctx, p.client, method, p.baseURL+path, body, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})
	if err == nil && status == http.StatusUnauthorized {
		p.invalidate()
	}
	return status, b, err
}

type routeeError struct {
	Code             string `json:"code"`
	DeveloperMessage string `json:"developerMessage"`
}

func (p *Routee) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	payload := map[string]string{"body": req.Body, "to": req.To, "from": req.From}
	status, body, err := p.call(ctx, http.MethodPost, "/sms", payload)
	if err != nil {
		return SendResult{}, err
	}
	if status/100 != 2 {
		var re routeeError
		_ = json.Unmarshal(body, &re)
		msg := re.DeveloperMessage
		if msg == "" {
			msg = http.StatusText(status)
		}
		return SendResult{}, &SendError{Kind: kindForStatus(status), Code: re.Code, Message: msg, HTTPStatus: status}
	}

	var out struct {
		TrackingID string `json:"trackingId"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return SendResult{}, malformed(p.name, err)
	}
	if out.TrackingID == "" {
		return SendResult{}, malformed(p.name, nil)
	}
	if strings.EqualFold(out.Status, "Failed") || strings.EqualFold(out.Status, "Undelivered") {
		return SendResult{}, &SendError{Kind: ErrPermanent, Code: out.Status, Message: "message rejected", HTTPStatus: status}
	}
	return SendResult{MessageID: out.TrackingID}, nil
}

func (p *Routee) Balance(ctx context.Context) (*float64, error) {
	status, body, err := p.call(ctx, http.MethodGet, "/accounts/me/balance", nil)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, &SendError{Kind: kindForStatus(status), Message: "balance request failed", HTTPStatus: status}
	}
	var out struct {
		Balance *float64 `json:"balance"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, malformed(p.name, err)
	}
	return out.Balance, nil
}
