// Package phone validates raw phone input and converts it to E.164.
package phone

import (
	"strings"

	"github.com/angosms/sms-gateway/internal/model"
)

type Reason string

const (
	ReasonEmpty  Reason = "empty_input"
	ReasonLength Reason = "invalid_length"
	ReasonPrefix Reason = "invalid_prefix"
	ReasonFormat Reason = "invalid_format"
)

type Result struct {
	OK       bool   `json:"ok"`
	E164     string `json:"e164,omitempty"`
	Country  string `json:"country,omitempty"`
	Operator string `json:"operator,omitempty"`
	Reason   Reason `json:"reason,omitempty"`
}

func fail(r Reason) Result { return Result{Reason: r} }

var stripper = strings.NewReplacer(" ", "", "\t", "", "-", "", "(", "", ")", "", ".", "")

// Normalize converts raw input into E.164. Bare national numbers are read
// against the hinted country (ISO code, empty means Angola).
func Normalize(raw, hint string) Result {
	s := stripper.Replace(strings.TrimSpace(raw))
	if s == "" {
		return fail(ReasonEmpty)
	}

	international := false
	switch {
	case strings.HasPrefix(s, "+"):
		international = true
		s = s[1:]
	case strings.HasPrefix(s, "00"):
		international = true
		s = s[2:]
	}
	if s == "" || !allDigits(s) {
		return fail(ReasonFormat)
	}

	if international {
		c, ok := matchCallingCode(s)
		if !ok {
			return fail(ReasonFormat)
		}
		return validate(c, s[len(c.CallingCode):])
	}

	h, ok := Lookup(hint)
	if !ok {
		h = countries[DefaultCountry]
	}

	switch {
	case strings.HasPrefix(s, h.CallingCode) && h.fitsLength(len(s)-len(h.CallingCode)):
		return validate(h, s[len(h.CallingCode):])
	case h.Trunk != "" && strings.HasPrefix(s, h.Trunk) && h.fitsLength(len(s)-len(h.Trunk)):
		return validate(h, s[len(h.Trunk):])
	case h.fitsLength(len(s)):
		return validate(h, s)
	}

	if c, ok := matchCallingCode(s); ok && c.fitsLength(len(s)-len(c.CallingCode)) {
		return validate(c, s[len(c.CallingCode):])
	}
	return fail(ReasonLength)
}

func validate(c Country, national string) Result {
	if !c.fitsLength(len(national)) {
		return fail(ReasonLength)
	}
	if c.Leading != "" && !strings.ContainsRune(c.Leading, rune(national[0])) {
		return fail(ReasonPrefix)
	}
	op, ok := c.Operator(national)
	if !ok {
		return fail(ReasonPrefix)
	}
	return Result{
		OK:       true,
		E164:     "+" + c.CallingCode + national,
		Country:  c.ISO,
		Operator: op,
	}
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CountryOf returns the ISO code of an E.164 number by longest calling-code
// prefix, or model.CountryUnknown.
func CountryOf(e164 string) string {
	c, ok := matchCallingCode(strings.TrimPrefix(e164, "+"))
	if !ok {
		return model.CountryUnknown
	}
	return c.ISO
}

type Invalid struct {
	Input  string `json:"input"`
	Reason Reason `json:"reason"`
}

// BatchReport partitions a recipient list.
type BatchReport struct {
	Valid      []Result       `json:"valid"`
	Invalid    []Invalid      `json:"invalid"`
	Duplicates int            `json:"duplicates"`
	Operators  map[string]int `json:"operators"`
}

// ValidateBatch normalizes every input, keeping the first occurrence of each
// number. Failures do not stop the batch.
func ValidateBatch(raws []string, hint string) BatchReport {
	rep := BatchReport{
		Valid:     make([]Result, 0, len(raws)),
		Operators: make(map[string]int),
	}
	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		res := Normalize(raw, hint)
		if !res.OK {
			rep.Invalid = append(rep.Invalid, Invalid{Input: raw, Reason: res.Reason})
			continue
		}
		if _, dup := seen[res.E164]; dup {
			rep.Duplicates++
			continue
		}
		seen[res.E164] = struct{}{}
		rep.Valid = append(rep.Valid, res)
		rep.Operators[res.Operator]++
	}
	return rep
}

// E164s returns the normalized numbers of the valid bucket.
func (r BatchReport) E164s() []string {
	out := make([]string, len(r.Valid))
	for i, v := range r.Valid {
		out[i] = v.E164
	}
	return out
}
