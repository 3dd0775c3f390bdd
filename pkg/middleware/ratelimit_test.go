package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

func serve(h http.Handler, remote, forwarded string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = remote
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestThrottleRejectsAfterBurst(t *testing.T) {
	th := NewThrottle(ThrottleConfig{Burst: 2, RefillPerSecond: 0.01, IdleTTL: time.Minute}, logger.NewNopLogger())
	defer th.Stop()

	h := th.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	assert.Equal(t, http.StatusNoContent, serve(h, "10.0.0.1:5000", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(h, "10.0.0.1:5001", "").Code)

	rec := serve(h, "10.0.0.1:5002", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Too many attempts")

	assert.Equal(t, http.StatusNoContent, serve(h, "10.0.0.2:5000", "").Code)
}

func TestThrottleForwardedFor(t *testing.T) {
	th := NewThrottle(ThrottleConfig{Burst: 1, RefillPerSecond: 0.01, TrustForwardedFor: true}, logger.NewNopLogger())
	defer th.Stop()

	h := th.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.9:1", "203.0.113.5, 10.0.0.9").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.9:2", "203.0.113.5").Code)
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.9:3", "203.0.113.6").Code)
}

func TestRetryAfterRoundsUp(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 2, retryAfterSeconds(1500*time.Millisecond))
}
