package service

import (
	"testing"
	"time"
)

func TestChatRateLimiterBurst(t *testing.T) {
	limiter := NewChatRateLimiter(3, 60)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.setClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		ok, _ := limiter.Allow("chat-1")
		if !ok {
			t.Fatalf("message %d within burst was limited", i+1)
		}
	}

	ok, retryAfter := limiter.Allow("chat-1")
	if ok {
		t.Fatal("message beyond burst was allowed")
	}
	if retryAfter <= 0 {
		t.Fatalf("retry-after = %v, want positive", retryAfter)
	}
	if retryAfter%time.Second != 0 {
		t.Fatalf("retry-after = %v, want whole seconds", retryAfter)
	}
}

func TestChatRateLimiterRefill(t *testing.T) {
	limiter := NewChatRateLimiter(1, 60) // one token per second
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.setClock(func() time.Time { return now })

	if ok, _ := limiter.Allow("chat-1"); !ok {
		t.Fatal("first message was limited")
	}
	if ok, _ := limiter.Allow("chat-1"); ok {
		t.Fatal("second immediate message was allowed")
	}

	now = now.Add(2 * time.Second)
	if ok, _ := limiter.Allow("chat-1"); !ok {
		t.Fatal("message after refill was limited")
	}
}

func TestChatRateLimiterIsolatesChats(t *testing.T) {
	limiter := NewChatRateLimiter(1, 60)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.setClock(func() time.Time { return now })

	if ok, _ := limiter.Allow("chat-1"); !ok {
		t.Fatal("chat-1 first message was limited")
	}
	if ok, _ := limiter.Allow("chat-1"); ok {
		t.Fatal("chat-1 second message was allowed")
	}
	// Another chat has its own bucket.
	if ok, _ := limiter.Allow("chat-2"); !ok {
		t.Fatal("chat-2 was limited by chat-1's bucket")
	}
}
