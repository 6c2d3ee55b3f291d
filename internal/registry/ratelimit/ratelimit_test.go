package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(start time.Time) (*Limiter, *time.Time) {
	clock := start
	l := New()
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestCheck_RemainingCountsDown(t *testing.T) {
	l, _ := newTestLimiter(time.Unix(1000, 0))

	for i := 1; i <= WriteIPLimit; i++ {
		d := l.Check(ClassWrite, "1.2.3.4", "")
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, WriteIPLimit-i, d.Remaining)
	}

	d := l.Check(ClassWrite, "1.2.3.4", "")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.GreaterOrEqual(t, d.RetryAfter, time.Second)
	assert.LessOrEqual(t, d.RetryAfter, Window)
}

func TestCheck_WindowResets(t *testing.T) {
	l, clock := newTestLimiter(time.Unix(1000, 0))

	for i := 0; i < WriteIPLimit; i++ {
		l.Check(ClassWrite, "1.2.3.4", "")
	}
	assert.False(t, l.Check(ClassWrite, "1.2.3.4", "").Allowed)

	*clock = clock.Add(Window)
	d := l.Check(ClassWrite, "1.2.3.4", "")
	assert.True(t, d.Allowed)
	assert.Equal(t, WriteIPLimit-1, d.Remaining)
}

func TestCheck_TokenRaisesBudget(t *testing.T) {
	l, _ := newTestLimiter(time.Unix(1000, 0))

	// With a token the IP budget still applies; the IP counter denies first.
	var denied bool
	for i := 0; i < WriteIPLimit+1; i++ {
		d := l.Check(ClassWrite, "1.2.3.4", "tokhash")
		if !d.Allowed {
			denied = true
			break
		}
	}
	assert.True(t, denied)
}

func TestCheck_DeniedRequestsDoNotConsumeTokenBudget(t *testing.T) {
	l, _ := newTestLimiter(time.Unix(1000, 0))

	// Exhaust the IP budget, then keep hitting the limit.
	for i := 0; i < WriteIPLimit; i++ {
		require.True(t, l.Check(ClassWrite, "1.2.3.4", "tokhash").Allowed)
	}
	for i := 0; i < 10; i++ {
		assert.False(t, l.Check(ClassWrite, "1.2.3.4", "tokhash").Allowed)
	}

	// Only the allowed requests spent token budget.
	assert.Equal(t, WriteIPLimit, l.counters["token:write:tokhash"].count)

	// The same token from another IP still has the rest of its budget.
	d := l.Check(ClassWrite, "5.6.7.8", "tokhash")
	require.True(t, d.Allowed)
	assert.Equal(t, WriteIPLimit+1, l.counters["token:write:tokhash"].count)
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Unix(1000, 0))

	for i := 0; i < WriteIPLimit; i++ {
		l.Check(ClassWrite, "1.1.1.1", "")
	}
	assert.False(t, l.Check(ClassWrite, "1.1.1.1", "").Allowed)
	assert.True(t, l.Check(ClassWrite, "2.2.2.2", "").Allowed)
	assert.True(t, l.Check(ClassRead, "1.1.1.1", "").Allowed)
}

func TestReap(t *testing.T) {
	l, clock := newTestLimiter(time.Unix(1000, 0))

	for i := 0; i < 10; i++ {
		l.Check(ClassRead, fmt.Sprintf("10.0.0.%d", i), "")
	}
	require.NotEmpty(t, l.counters)

	*clock = clock.Add(3 * Window)
	l.Check(ClassRead, "10.0.0.99", "")
	assert.Len(t, l.counters, 1)
}
