package webui

import (
	"testing"
	"time"
)

func TestRateLimiter_BurstThenThrottle(t *testing.T) {
	l := NewRateLimiter(1, 2, time.Hour)

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow("s1"); !ok {
			t.Fatalf("request %d within burst denied", i+1)
		}
	}
	ok, retry := l.Allow("s1")
	if ok {
		t.Fatal("request beyond burst allowed")
	}
	if retry <= 0 || retry > time.Minute {
		t.Errorf("retryAfter = %v", retry)
	}
	if got := retryAfterSeconds(retry); got < 1 || got > 60 {
		t.Errorf("retryAfterSeconds() = %d", got)
	}

	if ok, _ := l.Allow("s2"); !ok {
		t.Error("another key shares the first key's budget")
	}
	if l.Count() != 2 {
		t.Errorf("Count() = %d, want 2", l.Count())
	}
}

func TestRateLimiter_DeniedRequestsDoNotConsume(t *testing.T) {
	l := NewRateLimiter(600, 1, time.Hour) // one token every 100ms
	if ok, _ := l.Allow("k"); !ok {
		t.Fatal("first request denied")
	}
	for i := 0; i < 5; i++ {
		l.Allow("k")
	}
	time.Sleep(150 * time.Millisecond)
	if ok, _ := l.Allow("k"); !ok {
		t.Error("denied requests pushed the next token further out")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(0, 0, 0)
	for i := 0; i < 100; i++ {
		if ok, _ := l.Allow("k"); !ok {
			t.Fatal("disabled limiter denied a request")
		}
	}
	if l.Count() != 0 {
		t.Errorf("disabled limiter tracked %d keys", l.Count())
	}
}
