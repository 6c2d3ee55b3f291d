package ratelimit

import (
	"sync"
	"time"
)

// Class separates read and write budgets.
type Class string

const (
	ClassRead  Class = "read"
	ClassWrite Class = "write"
)

// Window is the fixed counting window.
const Window = 60 * time.Second

// Budgets per window.
const (
	ReadIPLimit     = 120
	ReadTokenLimit  = 600
	WriteIPLimit    = 30
	WriteTokenLimit = 120
)

// Decision is the outcome of one limiter check, carrying everything the
// HTTP layer needs for X-RateLimit-* headers.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

type counter struct {
	windowStart time.Time
	count       int
}

// Limiter tracks fixed-window counters per key. It is the only shared
// mutable state in the server process.
type Limiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{
		counters: map[string]*counter{},
		now:      time.Now,
	}
}

// limitFor returns the per-window budget for a key class.
func limitFor(class Class, token bool) int {
	switch {
	case class == ClassWrite && token:
		return WriteTokenLimit
	case class == ClassWrite:
		return WriteIPLimit
	case token:
		return ReadTokenLimit
	default:
		return ReadIPLimit
	}
}

// peek rolls the window for one key if needed and reports its decision
// without consuming a unit.
func (l *Limiter) peek(key string, limit int) Decision {
	now := l.now()

	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowStart) >= Window {
		c = &counter{windowStart: now}
		l.counters[key] = c
	}
	reset := c.windowStart.Add(Window)

	if c.count >= limit {
		retry := reset.Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Allowed: false, Limit: limit, Remaining: 0, Reset: reset, RetryAfter: retry}
	}
	return Decision{Allowed: true, Limit: limit, Remaining: limit - c.count, Reset: reset}
}

// consume spends one unit from a key that peek already allowed.
func (l *Limiter) consume(key string, limit int) Decision {
	c := l.counters[key]
	c.count++
	return Decision{Allowed: true, Limit: limit, Remaining: limit - c.count, Reset: c.windowStart.Add(Window)}
}

// Check applies both the per-IP and, when a token hash is present, the
// per-token budget. The returned decision is the more restrictive of the
// two; if either denies, the request is denied and neither counter is
// consumed.
func (l *Limiter) Check(class Class, ip, tokenHash string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.reap()

	ipKey := "ip:" + string(class) + ":" + ip
	ipLimit := limitFor(class, false)
	ipDecision := l.peek(ipKey, ipLimit)
	if tokenHash == "" {
		if !ipDecision.Allowed {
			return ipDecision
		}
		return l.consume(ipKey, ipLimit)
	}

	tokenKey := "token:" + string(class) + ":" + tokenHash
	tokenLimit := limitFor(class, true)
	tokenDecision := l.peek(tokenKey, tokenLimit)

	if !ipDecision.Allowed {
		return ipDecision
	}
	if !tokenDecision.Allowed {
		return tokenDecision
	}
	ipDecision = l.consume(ipKey, ipLimit)
	tokenDecision = l.consume(tokenKey, tokenLimit)
	if tokenDecision.Remaining < ipDecision.Remaining {
		return tokenDecision
	}
	return ipDecision
}

// reap lazily drops counters whose window expired more than a window ago.
func (l *Limiter) reap() {
	now := l.now()
	for key, c := range l.counters {
		if now.Sub(c.windowStart) >= 2*Window {
			delete(l.counters, key)
		}
	}
}
