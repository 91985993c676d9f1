package model

import "time"

const CountryUnknown = "UNKNOWN"

// RoutingRule maps a country (ISO 3166 alpha-2, or UNKNOWN) to an ordered
// gateway pair.
type RoutingRule struct {
	CountryCode     string    `db:"country_code"     json:"country_code"`
	PrimaryGateway  string    `db:"primary_gateway"  json:"primary_gateway"`
	FallbackGateway string    `db:"fallback_gateway" json:"fallback_gateway"`
	UpdatedAt       time.Time `db:"updated_at"       json:"updated_at"`
}

// Ordered returns the gateway names to try, primary first, without blanks or
// duplicates.
func (r RoutingRule) Ordered() []string {
	out := make([]string, 0, 2)
	if r.PrimaryGateway != "" {
		out = append(out, r.PrimaryGateway)
	}
	if r.FallbackGateway != "" && r.FallbackGateway != r.PrimaryGateway {
		out = append(out, r.FallbackGateway)
	}
	return out
}
