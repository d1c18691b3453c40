package rate

import (
	"sync"
	"time"
)

// Limiter gates send attempts so one connection cannot flood the Gmail API.
type Limiter interface {
	TryAcquire(connectionID string) bool
}

// Defaults match Gmail's per-user sending guidance: 100 sends per hour.
const (
	DefaultMaxRequests = 100
	DefaultWindow      = time.Hour
)

type window struct {
	count       int
	windowStart time.Time
}

// WindowLimiter is a fixed-window counter keyed by connection id. State
// lives only in process memory; with multiple instances the limit is
// per-process, not global. Expired windows reset lazily on the next
// request, so an idle connection keeps its (small) entry around.
type WindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	maxRequests int
	windowLen   time.Duration
	clock       func() time.Time
}

// NewWindowLimiter returns a limiter admitting at most maxRequests per
// connection within each windowLen interval.
func NewWindowLimiter(maxRequests int, windowLen time.Duration) *WindowLimiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if windowLen <= 0 {
		windowLen = DefaultWindow
	}
	return &WindowLimiter{
		windows:     make(map[string]*window),
		maxRequests: maxRequests,
		windowLen:   windowLen,
		clock:       time.Now,
	}
}

// TryAcquire records one send attempt for the connection and reports
// whether it is admitted. A rejection mutates nothing.
func (l *WindowLimiter) TryAcquire(connectionID string) bool {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[connectionID]
	if !ok || now.Sub(w.windowStart) > l.windowLen {
		l.windows[connectionID] = &window{count: 1, windowStart: now}
		return true
	}
	if w.count >= l.maxRequests {
		return false
	}
	w.count++
	return true
}

var _ Limiter = (*WindowLimiter)(nil)
