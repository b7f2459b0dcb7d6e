package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, d time.Duration) (*Limiter, *time.Time) {
	t.Helper()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	l := &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: d,
		stop:     make(chan struct{}),
		now:      func() time.Time { return now },
	}
	return l, &now
}

func TestLimiter_AllowWithinWindow(t *testing.T) {
	l, now := newTestLimiter(t, 2, time.Minute)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")
	assert.Equal(t, 0, l.Remaining("a"))
	assert.Equal(t, time.Minute, l.RetryAfter("a"))

	*now = now.Add(time.Minute)
	assert.True(t, l.Allow("a"), "window expired")
	assert.Equal(t, 1, l.Remaining("a"))
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(t, 1, time.Hour)

	require.True(t, l.Allow("k"))
	require.False(t, l.Allow("k"))
	l.Reset("k")
	assert.True(t, l.Allow("k"))
}

func TestLimiter_StopTwice(t *testing.T) {
	l := New(1, time.Second)
	l.Stop()
	l.Stop()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.1.1.1:5", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": " 10.0.0.9 "}, "1.1.1.1:5", "10.0.0.9"},
		{"remote with port", nil, "192.168.1.4:4444", "192.168.1.4"},
		{"remote without port", nil, "192.168.1.4", "192.168.1.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestMiddleware_Returns429(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 10*time.Second)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest("POST", "/api/uploads", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest("POST", "/api/uploads", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "10", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "resource-exhausted")
}

func TestMemoryCooldown(t *testing.T) {
	c := NewMemoryCooldown(time.Hour)
	defer c.Stop()
	ctx := context.Background()

	ok, err := c.Acquire(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Acquire(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Acquire(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, ok)
}
