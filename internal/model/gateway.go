package model

import "time"

type GatewayStatus string

const (
	GatewayConnected    GatewayStatus = "connected"
	GatewayError        GatewayStatus = "error"
	GatewayDisconnected GatewayStatus = "disconnected"
)

func (s GatewayStatus) String() string { return string(s) }

// Gateway is one configured SMS provider integration. Rows are never deleted,
// only deactivated.
type Gateway struct {
	Name           string        `db:"name"          json:"name"`
	DisplayName    string        `db:"display_name"  json:"display_name"`
	Kind           string        `db:"kind"          json:"kind"` // bulksms|bulkgate|routee|http
	IsActive       bool          `db:"is_active"     json:"is_active"`
	IsPrimary      bool          `db:"is_primary"    json:"is_primary"`
	Endpoint       string        `db:"endpoint"      json:"endpoint"`
	AuthType       string        `db:"auth_type"     json:"auth_type"` // basic|token|oauth2
	CredentialsRef string        `db:"credentials_ref" json:"credentials_ref"`
	Status         GatewayStatus `db:"status"        json:"status"`
	Balance        *float64      `db:"balance"       json:"balance,omitempty"`
	ResponseTimeMs *int64        `db:"response_time_ms" json:"response_time_ms,omitempty"`
	LastError      *string       `db:"last_error"    json:"last_error,omitempty"`
	CheckedAt      *time.Time    `db:"checked_at"    json:"checked_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at"    json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"    json:"updated_at"`

	// Configured is true when a provider adapter with credentials exists for
	// this gateway. It is not persisted.
	Configured bool `db:"-" json:"configured"`
}

// GatewayProbe is the persisted outcome of a status probe.
type GatewayProbe struct {
	Name           string
	Status         GatewayStatus
	Balance        *float64
	ResponseTimeMs int64
	Error          string
	CheckedAt      time.Time
}
