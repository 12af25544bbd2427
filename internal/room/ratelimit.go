// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package room

import (
	"sync"
	"time"

	"github.com/vestiary/vestiary/internal/state"
)

// Chat flood limits.
const (
	// DefaultChatBurst is how many messages a character can send in a
	// burst before limiting kicks in.
	DefaultChatBurst = 10

	// DefaultChatRate is the sustained messages per second allowed.
	DefaultChatRate = 2.0

	// chatBucketMaxAge is how long an idle bucket is kept before the
	// room sweep drops it.
	chatBucketMaxAge = time.Hour
)

// chatBucket tracks one character's token bucket.
type chatBucket struct {
	tokens    float64
	lastCheck time.Time
}

// ChatLimiter rate-limits chat per character using a token bucket.
// It is safe for concurrent use. Stale buckets are dropped by the
// room's cleanup sweep via Cleanup.
type ChatLimiter struct {
	mu      sync.Mutex
	buckets map[state.CharacterID]*chatBucket
	burst   int
	rate    float64
	now     func() time.Time
}

// NewChatLimiter builds a limiter. Non-positive burst or rate fall
// back to the defaults.
func NewChatLimiter(burst int, rate float64) *ChatLimiter {
	if burst <= 0 {
		burst = DefaultChatBurst
	}
	if rate <= 0 {
		rate = DefaultChatRate
	}
	return &ChatLimiter{
		buckets: make(map[state.CharacterID]*chatBucket),
		burst:   burst,
		rate:    rate,
		now:     time.Now,
	}
}

// Allow consumes one token for the character if available. When the
// bucket is empty it reports the cooldown until the next token.
func (l *ChatLimiter) Allow(id state.CharacterID) (allowed bool, cooldownMs int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket, ok := l.buckets[id]
	if !ok {
		bucket = &chatBucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[id] = bucket
	}

	elapsed := now.Sub(bucket.lastCheck).Seconds()
	bucket.tokens += elapsed * l.rate
	if bucket.tokens > float64(l.burst) {
		bucket.tokens = float64(l.burst)
	}
	bucket.lastCheck = now

	if bucket.tokens >= 1.0 {
		bucket.tokens -= 1.0
		return true, 0
	}
	deficit := 1.0 - bucket.tokens
	return false, int64(deficit / l.rate * 1000)
}

// Cleanup drops buckets idle for longer than maxAge.
func (l *ChatLimiter) Cleanup(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	threshold := l.now().Add(-maxAge)
	for id, bucket := range l.buckets {
		if bucket.lastCheck.Before(threshold) {
			delete(l.buckets, id)
		}
	}
}
