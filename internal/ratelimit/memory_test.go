package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryLimiter_AllowsUpToLimit(t *testing.T) {
	l := NewMemoryLimiter()

	for i := 0; i < 3; i++ {
		result := l.Check("ip-1", 3, time.Minute)
		assert.True(t, result.Allowed)
	}

	result := l.Check("ip-1", 3, time.Minute)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestMemoryLimiter_SeparateKeysIndependent(t *testing.T) {
	l := NewMemoryLimiter()

	l.Check("ip-1", 1, time.Minute)
	result := l.Check("ip-2", 1, time.Minute)

	assert.True(t, result.Allowed)
}

func TestMemoryLimiter_WindowExpiryResetsCount(t *testing.T) {
	l := NewMemoryLimiter()

	result := l.Check("ip-1", 1, 10*time.Millisecond)
	assert.True(t, result.Allowed)

	time.Sleep(20 * time.Millisecond)

	result = l.Check("ip-1", 1, 10*time.Millisecond)
	assert.True(t, result.Allowed)
}

func TestMemoryLimiter_CleanupStaleRemovesOldEntries(t *testing.T) {
	l := NewMemoryLimiter()
	l.Check("ip-1", 5, 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	l.CleanupStale(10 * time.Millisecond)

	_, ok := l.entries.Load("ip-1")
	assert.False(t, ok)
}
