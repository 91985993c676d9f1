// Package segment computes SMS encoding and segment counts.
package segment

import "unicode/utf16"

type Encoding string

const (
	GSM7 Encoding = "GSM7"
	UCS2 Encoding = "UCS2"
)

const (
	DefaultMaxSegments = 10

	gsm7Single = 160
	gsm7Multi  = 153
	ucs2Single = 70
	ucs2Multi  = 67
)

type Info struct {
	Encoding      Encoding `json:"encoding"`
	Segments      int      `json:"segments"`
	Characters    int      `json:"characters_used"`
	MaxCharacters int      `json:"max_characters"`
	IsValid       bool     `json:"is_valid"`
}

// Calculate classifies text and counts its segments. Messages above
// maxSegments (DefaultMaxSegments when <= 0) are reported with IsValid=false
// and must be rejected by the caller, never truncated.
func Calculate(text string, maxSegments int) Info {
	if maxSegments <= 0 {
		maxSegments = DefaultMaxSegments
	}

	info := Info{Encoding: GSM7}
	single, multi := gsm7Single, gsm7Multi
	n, ok := gsm7Length(text)
	if !ok {
		info.Encoding = UCS2
		single, multi = ucs2Single, ucs2Multi
		n = ucs2Length(text)
	}
	info.Characters = n

	switch {
	case n == 0:
		info.Segments = 0
	case n <= single:
		info.Segments = 1
	default:
		info.Segments = (n + multi - 1) / multi
	}

	if info.Segments <= 1 {
		info.MaxCharacters = single
	} else {
		info.MaxCharacters = info.Segments * multi
	}
	info.IsValid = info.Segments > 0 && info.Segments <= maxSegments
	return info
}

func ucs2Length(text string) int {
	n := 0
	for _, r := range text {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// Cost is the credit price of sending info to the given number of recipients.
func Cost(info Info, recipients int, creditsPerSegment int64) int64 {
	if creditsPerSegment <= 0 {
		creditsPerSegment = 1
	}
	return int64(info.Segments) * int64(recipients) * creditsPerSegment
}
