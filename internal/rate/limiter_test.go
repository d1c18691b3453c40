package rate

import (
	"testing"
	"time"
)

func TestTryAcquireWindowCap(t *testing.T) {
	l := NewWindowLimiter(100, 60*time.Minute)
	now := time.Unix(1700000000, 0)
	l.clock = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		if !l.TryAcquire("conn-1") {
			t.Fatalf("call %d rejected, want admitted", i+1)
		}
	}
	if l.TryAcquire("conn-1") {
		t.Fatalf("101st call admitted, want rejected")
	}
	// rejection must not consume anything
	if got := l.windows["conn-1"].count; got != 100 {
		t.Fatalf("count after rejection = %d, want 100", got)
	}
}

func TestTryAcquireWindowReset(t *testing.T) {
	l := NewWindowLimiter(2, time.Minute)
	now := time.Unix(1700000000, 0)
	l.clock = func() time.Time { return now }

	l.TryAcquire("conn-1")
	l.TryAcquire("conn-1")
	if l.TryAcquire("conn-1") {
		t.Fatalf("third call within window admitted, want rejected")
	}

	now = now.Add(time.Minute + time.Second)
	if !l.TryAcquire("conn-1") {
		t.Fatalf("call after window expiry rejected, want admitted")
	}
	w := l.windows["conn-1"]
	if w.count != 1 {
		t.Fatalf("count after reset = %d, want 1", w.count)
	}
	if !w.windowStart.Equal(now) {
		t.Fatalf("windowStart after reset = %v, want %v", w.windowStart, now)
	}
}

func TestTryAcquireIsolatesConnections(t *testing.T) {
	l := NewWindowLimiter(1, time.Minute)
	now := time.Unix(1700000000, 0)
	l.clock = func() time.Time { return now }

	if !l.TryAcquire("conn-1") {
		t.Fatalf("conn-1 rejected")
	}
	if !l.TryAcquire("conn-2") {
		t.Fatalf("conn-2 rejected after conn-1 filled its own window")
	}
	if l.TryAcquire("conn-1") {
		t.Fatalf("conn-1 second call admitted, want rejected")
	}
}

func TestNewWindowLimiterDefaults(t *testing.T) {
	l := NewWindowLimiter(0, 0)
	if l.maxRequests != DefaultMaxRequests {
		t.Fatalf("maxRequests = %d, want %d", l.maxRequests, DefaultMaxRequests)
	}
	if l.windowLen != DefaultWindow {
		t.Fatalf("windowLen = %v, want %v", l.windowLen, DefaultWindow)
	}
}
