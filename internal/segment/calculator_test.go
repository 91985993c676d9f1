package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		encoding Encoding
		segments int
		chars    int
		maxChars int
		valid    bool
	}{
		{name: "empty", text: "", encoding: GSM7, segments: 0, chars: 0, maxChars: 160, valid: false},
		{name: "single gsm7", text: "Ola Luanda", encoding: GSM7, segments: 1, chars: 10, maxChars: 160, valid: true},
		{name: "160 gsm7", text: strings.Repeat("a", 160), encoding: GSM7, segments: 1, chars: 160, maxChars: 160, valid: true},
		{name: "161 gsm7", text: strings.Repeat("a", 161), encoding: GSM7, segments: 2, chars: 161, maxChars: 306, valid: true},
		{name: "306 gsm7", text: strings.Repeat("a", 306), encoding: GSM7, segments: 2, chars: 306, maxChars: 306, valid: true},
		{name: "307 gsm7", text: strings.Repeat("a", 307), encoding: GSM7, segments: 3, chars: 307, maxChars: 459, valid: true},
		{name: "extension chars count twice", text: strings.Repeat("a", 158) + "€", encoding: GSM7, segments: 1, chars: 160, maxChars: 160, valid: true},
		{name: "extension pushes to two", text: strings.Repeat("a", 159) + "{", encoding: GSM7, segments: 2, chars: 161, maxChars: 306, valid: true},
		{name: "accented gsm7", text: "café à Luanda", encoding: GSM7, segments: 1, chars: 13, maxChars: 160, valid: true},
		{name: "emoji forces ucs2", text: "café ☕", encoding: UCS2, segments: 1, chars: 6, maxChars: 70, valid: true},
		{name: "70 ucs2", text: strings.Repeat("ã", 70), encoding: UCS2, segments: 1, chars: 70, maxChars: 70, valid: true},
		{name: "71 ucs2", text: strings.Repeat("ã", 71), encoding: UCS2, segments: 2, chars: 71, maxChars: 134, valid: true},
		{name: "astral rune counts two units", text: "😀", encoding: UCS2, segments: 1, chars: 2, maxChars: 70, valid: true},
		{name: "over cap", text: strings.Repeat("a", 153*10+1), encoding: GSM7, segments: 11, chars: 1531, maxChars: 1683, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.text, 0)
			assert.Equal(t, tt.encoding, got.Encoding)
			assert.Equal(t, tt.segments, got.Segments)
			assert.Equal(t, tt.chars, got.Characters)
			assert.Equal(t, tt.maxChars, got.MaxCharacters)
			assert.Equal(t, tt.valid, got.IsValid)
		})
	}
}

func TestCalculateCustomCap(t *testing.T) {
	got := Calculate(strings.Repeat("a", 400), 2)
	assert.Equal(t, 3, got.Segments)
	assert.False(t, got.IsValid)
}

func TestSegmentsMonotonic(t *testing.T) {
	for _, ch := range []string{"a", "ã"} {
		prev := 0
		for n := 1; n <= 1600; n++ {
			got := Calculate(strings.Repeat(ch, n), 0)
			assert.GreaterOrEqual(t, got.Segments, prev, "n=%d", n)
			prev = got.Segments
		}
	}
}

func TestCost(t *testing.T) {
	info := Calculate(strings.Repeat("a", 161), 0)
	assert.Equal(t, int64(10), Cost(info, 5, 1))
	assert.Equal(t, int64(20), Cost(info, 5, 2))
	assert.Equal(t, int64(10), Cost(info, 5, 0))
}
