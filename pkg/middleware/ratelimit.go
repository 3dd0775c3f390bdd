package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
	"github.com/vaidashi/getmethis-dashboard/pkg/ratelimit"
)

// ThrottleConfig configures a Throttle
type ThrottleConfig struct {
	Burst             float64
	RefillPerSecond   float64
	IdleTTL           time.Duration
	TrustForwardedFor bool
}

// Throttle limits requests per client address. The dashboard puts it in
// front of the login routes only.
type Throttle struct {
	limiter           *ratelimit.KeyedLimiter
	logger            logger.Logger
	trustForwardedFor bool
}

// NewThrottle creates a Throttle. Call Stop on shutdown.
func NewThrottle(cfg ThrottleConfig, logger logger.Logger) *Throttle {
	return &Throttle{
		limiter:           ratelimit.NewKeyedLimiter(cfg.Burst, cfg.RefillPerSecond, cfg.IdleTTL),
		logger:            logger,
		trustForwardedFor: cfg.TrustForwardedFor,
	}
}

// Middleware rejects clients that ran out of tokens with 429
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := t.clientIP(r)

		if ok, wait := t.limiter.Allow(ip); !ok {
			t.logger.Warn("Rate limit exceeded", "method", r.Method, "path", r.URL.Path, "ip", ip)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"error":   "Too many attempts. Please try again later.",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Stop ends the limiter's background sweep
func (t *Throttle) Stop() {
	t.limiter.Stop()
}

func (t *Throttle) clientIP(r *http.Request) string {
	if t.trustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
