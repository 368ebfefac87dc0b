package service

import (
	"math"
	"sync"
	"time"
)

// tokenBucket is a non-blocking token bucket. Take either consumes a
// token or reports how long until one becomes available.
type tokenBucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastTime time.Time
}

func newTokenBucket(burst int, ratePerMinute float64, now time.Time) *tokenBucket {
	if burst <= 0 {
		burst = 5
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 20
	}
	return &tokenBucket{
		tokens:   float64(burst),
		max:      float64(burst),
		rate:     ratePerMinute / 60.0,
		lastTime: now,
	}
}

// take refills based on elapsed time, then either consumes one token or
// returns the wait until the next token, rounded up to a whole second
// so callers never see a zero retry-after.
func (b *tokenBucket) take(now time.Time) (bool, time.Duration) {
	elapsed := now.Sub(b.lastTime).Seconds()
	b.tokens += elapsed * b.rate
	if b.tokens > b.max {
		b.tokens = b.max
	}
	b.lastTime = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true, 0
	}

	waitSec := (1.0 - b.tokens) / b.rate
	retryAfter := time.Duration(math.Ceil(waitSec)) * time.Second
	return false, retryAfter
}

// ChatRateLimiter keeps one token bucket per chat. Bucket state is
// chat-scoped mutable state, serialized under one mutex; contention is
// negligible at chat-message rates.
type ChatRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	burst   int
	perMin  float64
	nowFn   func() time.Time
}

// NewChatRateLimiter creates a limiter with the given burst size and
// refill rate (tokens per minute).
func NewChatRateLimiter(burst int, perMin float64) *ChatRateLimiter {
	return &ChatRateLimiter{
		buckets: make(map[string]*tokenBucket),
		burst:   burst,
		perMin:  perMin,
		nowFn:   time.Now,
	}
}

// Allow consumes one token for the chat. On exhaustion it returns false
// and the computed retry-after duration.
func (l *ChatRateLimiter) Allow(chatID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	b, ok := l.buckets[chatID]
	if !ok {
		b = newTokenBucket(l.burst, l.perMin, now)
		l.buckets[chatID] = b
	}
	return b.take(now)
}

// setClock overrides the clock for tests.
func (l *ChatRateLimiter) setClock(fn func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nowFn = fn
}
