package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDIsMonotonic(t *testing.T) {
	prev := NewID()
	for i := 0; i < 1000; i++ {
		next := NewID()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestNewPrefixedID(t *testing.T) {
	id := NewPrefixedID("job")
	assert.True(t, strings.HasPrefix(id, "job_"))
	assert.Len(t, id, 4+26)
}
