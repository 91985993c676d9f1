package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// BulkGate uses the BulkGate Simple API with an application id/token pair.
type BulkGate struct {
	name    string
	baseURL string
	appID   string
	token   string
	client  *http.Client
}

func NewBulkGate(name, baseURL, appID, token string, timeout time.Duration) *BulkGate {
	if baseURL == "" {
		baseURL = "https://portal.bulkgate.com/api/1.0"
	}
	return &BulkGate{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *BulkGate) Name() string { return p.name }

type bulkGateSend struct {
	ApplicationID    string `json:"application_id"`
	ApplicationToken string `json:"application_token"`
	Number           string `json:"number"`
	Text             string `json:"text"`
	Unicode          bool   `json:"unicode"`
	SenderID         string `json:"sender_id"`
	SenderIDValue    string `json:"sender_id_value,omitempty"`
}

type bulkGateResponse struct {
	Data *struct {
		Status string   `json:"status"`
		SmsID  string   `json:"sms_id"`
		Price  *float64 `json:"price"`
		Credit *float64 `json:"credit"`
	} `json:"data"`
	Error string `json:"error"`
	Code  int    `json:"code"`
	Type  string `json:"type"`
}

func (p *BulkGate) errorFrom(status int, r bulkGateResponse) *SendError {
	code := r.Code
	if code == 0 {
		code = status
	}
	msg := r.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	kind := kindForStatus(code)
	if r.Type == "invalid_phone_number" || r.Type == "invalid_sender" {
		kind = ErrPermanent
	}
	return &SendError{Kind: kind, Code: r.Type, Message: msg, HTTPStatus: status}
}

func (p *BulkGate) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	payload := bulkGateSend{
		ApplicationID:    p.appID,
		ApplicationToken: p.token,
		Number:           strings.TrimPrefix(req.To, "+"),
		Text:             req.Body,
		Unicode:          req.Unicode,
		SenderID:         "gText",
		SenderIDValue:    req.From,
	}
	status, body, err := doJSON(ctx, p.client, http.MethodPost, p.baseURL+"/simple/transactional", payload, nil)
	if err != nil {
		return SendResult{}, err
	}

	var out bulkGateResponse
	if jerr := json.Unmarshal(body, &out); jerr != nil && status/100 == 2 {
		return SendResult{}, malformed(p.name, jerr)
	}
	if status/100 != 2 || out.Error != "" || out.Data == nil {
		return SendResult{}, p.errorFrom(status, out)
	}
	if out.Data.SmsID == "" {
		return SendResult{}, malformed(p.name, nil)
	}
	if out.Data.Status != "" && out.Data.Status != "accepted" && out.Data.Status != "scheduled" {
		return SendResult{}, &SendError{Kind: ErrPermanent, Code: out.Data.Status, Message: "message not accepted", HTTPStatus: status}
	}
	return SendResult{MessageID: out.Data.SmsID, Cost: out.Data.Price}, nil
}

func (p *BulkGate) Balance(ctx context.Context) (*float64, error) {
	payload := map[string]string{"application_id": p.appID, "application_token": p.token}
	status, body, err := doJSON(ctx, p.client, http.MethodPost, p.baseURL+"/simple/info", payload, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data *struct {
			Credit *float64 `json:"credit"`
		} `json:"data"`
		Error string `json:"error"`
		Code  int    `json:"code"`
		Type  string `json:"type"`
	}
	if jerr := json.Unmarshal(body, &out); jerr != nil && status/100 == 2 {
		return nil, malformed(p.name, jerr)
	}
	if status/100 != 2 || out.Error != "" || out.Data == nil {
		return nil, p.errorFrom(status, bulkGateResponse{Error: out.Error, Code: out.Code, Type: out.Type})
	}
	return out.Data.Credit, nil
}
