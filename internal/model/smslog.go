package model

import "time"

type SmsStatus string

const (
	SmsSent      SmsStatus = "sent"
	SmsDelivered SmsStatus = "delivered"
	SmsFailed    SmsStatus = "failed"
)

func (s SmsStatus) String() string {
	return string(s)
}

func (s SmsStatus) Valid() bool {
	return s == SmsSent || s == SmsDelivered || s == SmsFailed
}

// CanTransition reports whether a delivery callback may move a log row from s
// to next. Only sent rows are updated.
func (s SmsStatus) CanTransition(next SmsStatus) bool {
	return s == SmsSent && (next == SmsDelivered || next == SmsFailed)
}

// SmsLog is one row per recipient send.
type SmsLog struct {
	ID                string     `db:"id"                  json:"id"`
	AccountID         int64      `db:"account_id"          json:"account_id"`
	JobID             *string    `db:"job_id"              json:"job_id,omitempty"`
	Phone             string     `db:"phone"               json:"phone"`
	Message           string     `db:"message"             json:"message"`
	SenderID          string     `db:"sender_id"           json:"sender_id"`
	Status            SmsStatus  `db:"status"              json:"status"`
	Gateway           string     `db:"gateway"             json:"gateway"`
	CountryCode       string     `db:"country_code"        json:"country_code"`
	FallbackAttempted bool       `db:"fallback_attempted"  json:"fallback_attempted"`
	Segments          int        `db:"segments"            json:"segments"`
	Cost              int64      `db:"cost"                json:"cost"`
	GatewayMessageID  string     `db:"gateway_message_id"  json:"gateway_message_id"`
	ErrorCode         string     `db:"error_code"          json:"error_code,omitempty"`
	Attempts          []byte     `db:"attempts"            json:"-"`
	CreatedAt         time.Time  `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"          json:"updated_at"`
	DeliveredAt       *time.Time `db:"delivered_at"        json:"delivered_at,omitempty"`
}
