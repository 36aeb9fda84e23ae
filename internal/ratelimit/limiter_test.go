// internal/ratelimit/limiter_test.go
package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"book-availability/internal/common/logger"
)

// ==========================
// Helpers
// ==========================

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis, *clock) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := &clock{t: time.UnixMilli(1_700_000_000_000)}
	l := NewLimiter(rdb, Config{Limit: limit, Window: window}, logger.NewTestLogger(t))
	l.now = clk.now
	return l, mr, clk
}

// ==========================
// Sliding window
// ==========================

func TestCheck_AdmitsUpToLimit(t *testing.T) {
	l, _, clk := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		d := l.Check(ctx, "1.2.3.4")
		require.True(t, d.Allowed)
		assert.Equal(t, want, d.Remaining)
		clk.advance(time.Second)
	}

	d := l.Check(ctx, "1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.UnixMilli(1_700_000_000_000).Add(time.Minute), d.ResetAt,
		"reset is when the oldest entry leaves the window")
}

func TestCheck_RejectedRequestsAreNotRecorded(t *testing.T) {
	l, mr, clk := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	l.Check(ctx, "ip")
	l.Check(ctx, "ip")
	for i := 0; i < 5; i++ {
		clk.advance(time.Second)
		assert.False(t, l.Check(ctx, "ip").Allowed)
	}

	members, err := mr.ZMembers(l.Key("ip"))
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestCheck_WindowSlides(t *testing.T) {
	l, _, clk := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	l.Check(ctx, "ip")
	clk.advance(30 * time.Second)
	l.Check(ctx, "ip")
	assert.False(t, l.Check(ctx, "ip").Allowed)

	clk.advance(30*time.Second + time.Millisecond)
	d := l.Check(ctx, "ip")
	assert.True(t, d.Allowed, "first entry has left the window")
	assert.Equal(t, 0, d.Remaining)
}

func TestCheck_IdentifiersAreIndependent(t *testing.T) {
	l, _, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	assert.True(t, l.Check(ctx, "a").Allowed)
	assert.False(t, l.Check(ctx, "a").Allowed)
	assert.True(t, l.Check(ctx, "b").Allowed)
}

func TestCheck_SameMillisecondRequestsAreDistinct(t *testing.T) {
	l, mr, _ := newTestLimiter(t, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		l.Check(ctx, "ip")
	}
	members, err := mr.ZMembers(l.Key("ip"))
	require.NoError(t, err)
	assert.Len(t, members, 4)
}

func TestCheck_KeyExpires(t *testing.T) {
	l, mr, _ := newTestLimiter(t, 10, time.Minute)

	l.Check(context.Background(), "ip")

	assert.Equal(t, "ratelimit:ip:ip", l.Key("ip"))
	assert.Equal(t, time.Minute, mr.TTL(l.Key("ip")))
}

func TestCheck_FailOpen(t *testing.T) {
	l, mr, clk := newTestLimiter(t, 1, time.Minute)
	mr.SetError("LOADING server is loading")

	d := l.Check(context.Background(), "ip")

	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, clk.t, d.ResetAt)
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(nil, Config{}, logger.NewNoOpLogger())
	assert.Equal(t, DefaultLimit, l.config.Limit)
	assert.Equal(t, DefaultWindow, l.config.Window)
	assert.Equal(t, "ratelimit:ip:x", l.Key("x"))
}

// ==========================
// Client identifier
// ==========================

func TestClientIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": " 10.0.0.1 , 172.16.0.1"}, "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.2"}, "10.0.0.2"},
		{"forwarded wins", map[string]string{"X-Forwarded-For": "10.0.0.1", "X-Real-IP": "10.0.0.2"}, "10.0.0.1"},
		{"empty forwarded entry", map[string]string{"X-Forwarded-For": ",10.0.0.3", "X-Real-IP": "10.0.0.2"}, "10.0.0.2"},
		{"none", nil, Anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/search", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIdentifier(r))
		})
	}
}
