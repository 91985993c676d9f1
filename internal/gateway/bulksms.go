package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// BulkSMS talks to the BulkSMS JSON REST API (v1) using basic auth.
type BulkSMS struct {
	name     string
	baseURL  string
	username string
	password string
	client   *http.Client
}

func NewBulkSMS(name, baseURL, username, password string, timeout time.Duration) *BulkSMS {
	if baseURL == "" {
		baseURL = "https://api.bulksms.com/v1"
	}
	return &BulkSMS{
		name:     name,
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *BulkSMS) Name() string { return p.name }

type bulkSMSMessage struct {
	To       string `json:"to"`
	From     string `json:"from,omitempty"`
	Body     string `json:"body"`
	Encoding string `json:"encoding,omitempty"`
}

type bulkSMSSubmission struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	CreditCost float64 `json:"creditCost"`
	Status     struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"status"`
}

type bulkSMSProblem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func (p *BulkSMS) auth(r *http.Request) { r.SetBasicAuth(p.username, p.password) }

func (p *BulkSMS) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	msg := bulkSMSMessage{To: req.To, From: req.From, Body: req.Body}
	if req.Unicode {
		msg.Encoding = "UNICODE"
	}

	status, body, err := doJSON(ctx, p.client, http.MethodPost, p.baseURL+"/messages", []bulkSMSMessage{msg}, p.auth)
	if err != nil {
		return SendResult{}, err
	}
	if status/100 != 2 {
		var prob bulkSMSProblem
		_ = json.Unmarshal(body, &prob)
		detail := prob.Detail
		if detail == "" {
			detail = prob.Title
		}
		if detail == "" {
			detail = http.StatusText(status)
		}
		return SendResult{}, &SendError{Kind: kindForStatus(status), Code: prob.Type, Message: detail, HTTPStatus: status}
	}

	var subs []bulkSMSSubmission
	if err := json.Unmarshal(body, &subs); err != nil {
		return SendResult{}, malformed(p.name, err)
	}
	if len(subs) == 0 || subs[0].ID == "" {
		return SendResult{}, malformed(p.name, nil)
	}
	s := subs[0]
	if strings.EqualFold(s.Status.Type, "FAILED") {
		return SendResult{}, &SendError{Kind: ErrPermanent, Code: s.Status.ID, Message: "submission failed", HTTPStatus: status}
	}
	return SendResult{MessageID: s.ID, Cost: floatPtr(s.CreditCost)}, nil
}

func (p *BulkSMS) Balance(ctx context.Context) (*float64, error) {
	status, body, err := doJSON(ctx, p.client, http.MethodGet, p.baseURL+"/profile", nil, p.auth)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, &SendError{Kind: kindForStatus(status), Message: "profile request failed", HTTPStatus: status}
	}
	var out struct {
		Credits struct {
			Balance *float64 `json:"balance"`
		} `json:"credits"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, malformed(p.name, err)
	}
	return out.Credits.Balance, nil
}
