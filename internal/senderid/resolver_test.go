package senderid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolve(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r, err := NewResolver("KwanzaSMS", []string{"smsao", " OldBrand "}, zap.New(core))
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "KWANZASMS"},
		{name: "blank", input: "   ", want: "KWANZASMS"},
		{name: "deprecated any case", input: "SmsAo", want: "KWANZASMS"},
		{name: "deprecated trimmed", input: "oldbrand", want: "KWANZASMS"},
		{name: "too long", input: "ABCDEFGHIJKL", want: "KWANZASMS"},
		{name: "symbols", input: "Loja-Nova", want: "KWANZASMS"},
		{name: "valid uppercased", input: " lojanova ", want: "LOJANOVA"},
		{name: "eleven chars", input: "abcdefghijk", want: "ABCDEFGHIJK"},
		{name: "digits", input: "923", want: "923"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.input))
		})
	}

	// deprecated x2, too long, symbols
	assert.Equal(t, 4, logs.Len())
	assert.Equal(t, ReasonDeprecated, logs.All()[0].ContextMap()["reason"])
}

func TestNewResolverRejectsBadDefault(t *testing.T) {
	_, err := NewResolver("not valid!", nil, nil)
	assert.Error(t, err)

	r, err := NewResolver("kwanza", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "KWANZA", r.Default())
}
