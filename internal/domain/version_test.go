package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAttempt_Retry тестирует лимит повторных попыток.
func TestAttempt_Retry(t *testing.T) {
	var a Attempt

	assert.True(t, a.CanRetry())
	assert.False(t, a.DidRetry())
	assert.Equal(t, "REF-100", a.Reference("REF-100"))

	a = a.Next()
	assert.False(t, a.CanRetry())
	assert.True(t, a.DidRetry())
	assert.Equal(t, "REF-100R", a.Reference("REF-100"))
}

// TestVersion_Next тестирует инкремент версии.
func TestVersion_Next(t *testing.T) {
	var v Version
	assert.Equal(t, Version(1), v.Next())
	assert.Equal(t, Version(2), v.Next().Next())
}
