package model

import "time"

// Failure codes carried on DispatchResult.ErrorCode.
const (
	ErrCodeNoGateway          = "NO_GATEWAY_AVAILABLE"
	ErrCodeAllGatewaysFailed  = "ALL_GATEWAYS_FAILED"
	ErrCodeDispatch           = "DISPATCH_ERROR"
	ErrCodeInsufficientCredit = "INSUFFICIENT_CREDITS"
	ErrCodeCancelled          = "CANCELLED"
	ErrCodeMessageTooLong     = "MESSAGE_TOO_LONG"
)

type DispatchAttempt struct {
	Gateway    string    `json:"gateway"`
	At         time.Time `json:"at"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// DispatchResult is the terminal outcome for one recipient.
type DispatchResult struct {
	Recipient    string            `json:"recipient"`
	Country      string            `json:"country"`
	Success      bool              `json:"success"`
	Gateway      string            `json:"gateway,omitempty"`
	MessageID    string            `json:"message_id,omitempty"`
	FallbackUsed bool              `json:"fallback_used"`
	Segments     int               `json:"segments"`
	Cost         int64             `json:"cost"`
	ErrorCode    string            `json:"error_code,omitempty"`
	Attempts     []DispatchAttempt `json:"attempts"`
}

// LastError returns the error of the final attempt, if any.
func (r DispatchResult) LastError() string {
	if len(r.Attempts) == 0 {
		return r.ErrorCode
	}
	return r.Attempts[len(r.Attempts)-1].Error
}
