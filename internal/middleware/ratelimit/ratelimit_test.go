package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAllowWithinLimit(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 5, Logger: zap.NewNop()})
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, rl.allow("student-1"))
	}
}

func TestDeniesWhenExhausted(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 3, Logger: zap.NewNop()})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		rl.allow("student-1")
	}
	assert.False(t, rl.allow("student-1"))
}

func TestKeysAreIndependent(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1, Logger: zap.NewNop()})
	defer rl.Stop()

	assert.True(t, rl.allow("student-1"))
	assert.False(t, rl.allow("student-1"))
	assert.True(t, rl.allow("student-2"))
}

func TestRefill(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 2, WindowDuration: 20 * time.Millisecond, Logger: zap.NewNop()})
	defer rl.Stop()

	assert.True(t, rl.allow("student-1"))
	assert.True(t, rl.allow("student-1"))
	assert.False(t, rl.allow("student-1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.allow("student-1"))
}
