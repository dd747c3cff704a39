package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountEmpty(t *testing.T) {
	assert.Equal(t, 0, Count(""))
}

func TestCountIsPositiveAndStable(t *testing.T) {
	text := "SSH Brute Force detected from IP 45.12.34.7"
	first := Count(text)
	assert.Positive(t, first)
	assert.Equal(t, first, Count(text))
	assert.Less(t, first, len(text))
}

func TestCountGrowsWithText(t *testing.T) {
	short := Count("alert")
	long := Count("alert alert alert alert alert alert alert alert")
	assert.Greater(t, long, short)
}

func TestForModel(t *testing.T) {
	assert.Same(t, o200k, ForModel("gpt-4o-mini"))
	assert.Same(t, cl100k, ForModel("gemini-2.0-flash"))
}
