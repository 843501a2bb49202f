package echoapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_allow(t *testing.T) {
	t.Run("limited per key", func(t *testing.T) {
		rl := newRateLimiter(2, time.Minute)
		assert.True(t, rl.allow("10.0.0.1"))
		assert.True(t, rl.allow("10.0.0.1"))
		assert.False(t, rl.allow("10.0.0.1"))
		assert.True(t, rl.allow("10.0.0.2"))
	})

	t.Run("window expires", func(t *testing.T) {
		rl := newRateLimiter(1, 20*time.Millisecond)
		assert.True(t, rl.allow("10.0.0.1"))
		assert.False(t, rl.allow("10.0.0.1"))
		time.Sleep(30 * time.Millisecond)
		assert.True(t, rl.allow("10.0.0.1"))
	})

	t.Run("disabled", func(t *testing.T) {
		rl := newRateLimiter(0, time.Minute)
		for i := 0; i < 10; i++ {
			assert.True(t, rl.allow("10.0.0.1"))
		}
	})
}
