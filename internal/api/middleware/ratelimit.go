package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courierchat/courier/internal/metrics"
	"github.com/courierchat/courier/internal/store"
)

// RateLimit defines limits for an endpoint pattern.
type RateLimit struct {
	Requests int64
	Window   time.Duration
}

// RateLimiter implements fixed-window rate limiting backed by Redis.
// With no Redis configured it passes everything through.
type RateLimiter struct {
	redis  *store.RedisStore
	limits map[string]RateLimit
	logger zerolog.Logger
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(redis *store.RedisStore, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redis,
		logger: logger,
		limits: map[string]RateLimit{
			"GET /ws":        {30, time.Minute},
			"GET /messages/": {120, time.Minute},
			"GET /people":    {60, time.Minute},
			"GET /profile":   {120, time.Minute},
		},
	}
}

// Middleware enforces the configured limits, keyed by client IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		endpoint, limit, ok := rl.matchLimit(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		count, err := rl.redis.IncrRateLimit(r.Context(), endpoint, clientIP(r), limit.Window)
		if err != nil {
			// Redis trouble must not take the relay down with it.
			rl.logger.Warn().Err(err).Msg("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		if count > limit.Requests {
			metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
			w.Header().Set("Retry-After", "60")
			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// matchLimit finds the limit covering a request, longest prefix wins.
func (rl *RateLimiter) matchLimit(r *http.Request) (string, RateLimit, bool) {
	var (
		bestKey    string
		best       RateLimit
		bestPrefix = -1
	)
	for key, limit := range rl.limits {
		method, prefix, ok := strings.Cut(key, " ")
		if !ok || method != r.Method {
			continue
		}
		if !strings.HasPrefix(r.URL.Path, prefix) {
			continue
		}
		if len(prefix) > bestPrefix {
			bestKey, best, bestPrefix = key, limit, len(prefix)
		}
	}
	return bestKey, best, bestPrefix >= 0
}

// clientIP extracts the client IP, set earlier by chi's RealIP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
