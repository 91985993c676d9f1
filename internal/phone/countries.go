package phone

import (
	"sort"
	"strconv"
)

const (
	OperatorUnitel   = "UNITEL"
	OperatorMovicel  = "MOVICEL"
	OperatorAfricell = "AFRICELL"
	OperatorUnknown  = "UNKNOWN"
)

// Country describes the subscriber-number rules of a supported country.
type Country struct {
	ISO         string
	CallingCode string
	MinLen      int
	MaxLen      int
	Leading     string // allowed first digits of the national number; empty = any
	Trunk       string // national trunk prefix dropped from bare input

	// operators maps a 3-digit national prefix to an operator. A nil map means
	// no operator allow-list is enforced.
	operators map[string]string
}

func (c Country) fitsLength(n int) bool { return n >= c.MinLen && n <= c.MaxLen }

// Operator returns the operator owning the national number's prefix.
func (c Country) Operator(national string) (string, bool) {
	if c.operators == nil {
		return OperatorUnknown, true
	}
	if len(national) < 3 {
		return "", false
	}
	op, ok := c.operators[national[:3]]
	return op, ok
}

const DefaultCountry = "AO"

var countries = map[string]Country{
	"AO": {ISO: "AO", CallingCode: "244", MinLen: 9, MaxLen: 9, Leading: "9", Trunk: "0", operators: angolaOperators()},
	"PT": {ISO: "PT", CallingCode: "351", MinLen: 9, MaxLen: 9, Leading: "9"},
	"BR": {ISO: "BR", CallingCode: "55", MinLen: 10, MaxLen: 11},
	"MZ": {ISO: "MZ", CallingCode: "258", MinLen: 9, MaxLen: 9, Leading: "8"},
	"NA": {ISO: "NA", CallingCode: "264", MinLen: 9, MaxLen: 9, Leading: "8"},
	"ZA": {ISO: "ZA", CallingCode: "27", MinLen: 9, MaxLen: 9, Trunk: "0"},
	"CD": {ISO: "CD", CallingCode: "243", MinLen: 9, MaxLen: 9, Trunk: "0"},
	"US": {ISO: "US", CallingCode: "1", MinLen: 10, MaxLen: 10},
}

// byCallingCode lists countries with the longest calling code first.
var byCallingCode = func() []Country {
	out := make([]Country, 0, len(countries))
	for _, c := range countries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].CallingCode) != len(out[j].CallingCode) {
			return len(out[i].CallingCode) > len(out[j].CallingCode)
		}
		return out[i].CallingCode < out[j].CallingCode
	})
	return out
}()

func angolaOperators() map[string]string {
	m := make(map[string]string, 64)
	add := func(op string, from, to int) {
		for p := from; p <= to; p++ {
			m[strconv.Itoa(p)] = op
		}
	}
	add(OperatorMovicel, 911, 919)
	add(OperatorUnitel, 921, 929)
	add(OperatorUnitel, 931, 939)
	add(OperatorUnitel, 941, 949)
	add(OperatorAfricell, 951, 959)
	add(OperatorMovicel, 991, 997)
	return m
}

// Lookup returns the country registered under an ISO code.
func Lookup(iso string) (Country, bool) {
	c, ok := countries[iso]
	return c, ok
}

// matchCallingCode finds the country whose calling code is the longest prefix
// of digits.
func matchCallingCode(digits string) (Country, bool) {
	for _, c := range byCallingCode {
		if len(digits) >= len(c.CallingCode) && digits[:len(c.CallingCode)] == c.CallingCode {
			return c, true
		}
	}
	return Country{}, false
}
