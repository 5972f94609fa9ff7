package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int) (*Limiter, *clock) {
	c := &clock{t: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	l := NewLimiter(Config{RequestsPerWindow: limit, Window: time.Minute})
	l.now = c.now
	return l, c
}

func TestLimiter_FixedWindow(t *testing.T) {
	l, c := newTestLimiter(3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("1.2.3.4"), "request %d", i+1)
	}
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"), "clients are independent")

	// Rejected requests inside the window do not push it forward.
	c.advance(59 * time.Second)
	assert.False(t, l.Allow("1.2.3.4"))
	c.advance(time.Second)
	assert.True(t, l.Allow("1.2.3.4"))
}

func TestLimiter_Defaults(t *testing.T) {
	l := NewLimiter(Config{})
	assert.Equal(t, 30, l.limit)
	assert.Equal(t, 60, l.RetryAfter())
}

func TestLimiter_CleanExpired(t *testing.T) {
	l, c := newTestLimiter(1)
	l.Allow("a")
	c.advance(30 * time.Second)
	l.Allow("b")
	assert.Equal(t, 2, l.ActiveClients())

	c.advance(30 * time.Second)
	assert.Equal(t, 1, l.CleanExpired())
	assert.Equal(t, 1, l.ActiveClients())
}

func TestLimiter_Middleware(t *testing.T) {
	l, _ := newTestLimiter(1)
	h := l.Middleware(func(r *http.Request) string { return "client" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestLimiter_MiddlewareCustomRejection(t *testing.T) {
	l, _ := newTestLimiter(1)
	called := false
	h := l.Middleware(func(r *http.Request) string { return "client" }, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.NotFoundHandler())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
