// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatLimiter(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	newLimiter := func(burst int, rate float64) (*ChatLimiter, *time.Time) {
		l := NewChatLimiter(burst, rate)
		current := now
		l.now = func() time.Time { return current }
		return l, &current
	}

	t.Run("burst then limited", func(t *testing.T) {
		l, _ := newLimiter(3, 1.0)
		for i := 0; i < 3; i++ {
			ok, _ := l.Allow("c1")
			require.True(t, ok, "burst message %d", i)
		}
		ok, cooldown := l.Allow("c1")
		assert.False(t, ok)
		assert.Positive(t, cooldown)
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		l, current := newLimiter(1, 2.0)
		ok, _ := l.Allow("c1")
		require.True(t, ok)
		ok, _ = l.Allow("c1")
		require.False(t, ok)

		*current = current.Add(time.Second)
		ok, _ = l.Allow("c1")
		assert.True(t, ok)
	})

	t.Run("characters are limited independently", func(t *testing.T) {
		l, _ := newLimiter(1, 1.0)
		ok, _ := l.Allow("c1")
		require.True(t, ok)
		ok, _ = l.Allow("c1")
		require.False(t, ok)
		ok, _ = l.Allow("c2")
		assert.True(t, ok)
	})

	t.Run("cleanup drops idle buckets", func(t *testing.T) {
		l, current := newLimiter(1, 1.0)
		l.Allow("c1")
		*current = current.Add(2 * time.Hour)
		l.Cleanup(time.Hour)
		assert.Empty(t, l.buckets)
	})

	t.Run("zero config falls back to defaults", func(t *testing.T) {
		l := NewChatLimiter(0, 0)
		assert.Equal(t, DefaultChatBurst, l.burst)
		assert.Equal(t, DefaultChatRate, l.rate)
	})
}
