package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		hint     string
		ok       bool
		e164     string
		operator string
		reason   Reason
	}{
		{name: "bare angolan national", raw: "923456789", ok: true, e164: "+244923456789", operator: OperatorUnitel},
		{name: "with plus and separators", raw: "+244 (912) 345-678", ok: true, e164: "+244912345678", operator: OperatorMovicel},
		{name: "country code without plus", raw: "244951234567", ok: true, e164: "+244951234567", operator: OperatorAfricell},
		{name: "international 00 prefix", raw: "00244993456789", ok: true, e164: "+244993456789", operator: OperatorMovicel},
		{name: "trunk zero dropped", raw: "0923456789", ok: true, e164: "+244923456789", operator: OperatorUnitel},
		{name: "unknown operator prefix", raw: "244999999999", reason: ReasonPrefix},
		{name: "national not starting with nine", raw: "823456789", reason: ReasonPrefix},
		{name: "empty", raw: "   ", reason: ReasonEmpty},
		{name: "letters", raw: "92345abc9", reason: ReasonFormat},
		{name: "unknown calling code", raw: "+999123456789", reason: ReasonFormat},
		{name: "too short", raw: "92345", reason: ReasonLength},
		{name: "too short with code", raw: "+24492345", reason: ReasonLength},
		{name: "portugal", raw: "+351912345678", ok: true, e164: "+351912345678", operator: OperatorUnknown},
		{name: "portuguese national with hint", raw: "912345678", hint: "PT", ok: true, e164: "+351912345678", operator: OperatorUnknown},
		{name: "us without plus", raw: "12025550123", ok: true, e164: "+12025550123", operator: OperatorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw, tt.hint)
			assert.Equal(t, tt.ok, got.OK)
			if tt.ok {
				assert.Equal(t, tt.e164, got.E164)
				assert.Equal(t, tt.operator, got.Operator)
				assert.Empty(t, got.Reason)
			} else {
				assert.Equal(t, tt.reason, got.Reason)
				assert.Empty(t, got.E164)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"923456789", "+244 912 345 678", "00244951234567", "0923456789", "+351912345678", "12025550123"}
	for _, in := range inputs {
		first := Normalize(in, "")
		require.True(t, first.OK, in)
		assert.Equal(t, first, Normalize(first.E164, ""), in)
		assert.Equal(t, first, Normalize(first.E164, "PT"), in)
	}
}

func TestCountryOf(t *testing.T) {
	assert.Equal(t, "AO", CountryOf("+244923456789"))
	assert.Equal(t, "CD", CountryOf("+243812345678"))
	assert.Equal(t, "PT", CountryOf("+351912345678"))
	assert.Equal(t, "US", CountryOf("+12025550123"))
	assert.Equal(t, "UNKNOWN", CountryOf("+999123"))
	assert.Equal(t, "UNKNOWN", CountryOf(""))
}

func TestValidateBatch(t *testing.T) {
	rep := ValidateBatch([]string{
		"923456789",
		"+244923456789", // duplicate after normalization
		"912345678",
		"244999999999",
		"",
		"951234567",
	}, "")

	require.Len(t, rep.Valid, 3)
	assert.Equal(t, 1, rep.Duplicates)
	assert.Equal(t, []Invalid{
		{Input: "244999999999", Reason: ReasonPrefix},
		{Input: "", Reason: ReasonEmpty},
	}, rep.Invalid)
	assert.Equal(t, map[string]int{OperatorUnitel: 1, OperatorMovicel: 1, OperatorAfricell: 1}, rep.Operators)
	assert.Equal(t, []string{"+244923456789", "+244912345678", "+244951234567"}, rep.E164s())
}
