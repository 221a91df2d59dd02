package middleware

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/aidgrid/platform/internal/errors"
	"github.com/aidgrid/platform/pkg/logger"
)

// RateLimiter applies a per-caller token bucket. Authenticated callers are
// keyed by user ID, anonymous callers by remote address.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	logger   *logger.Logger
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(requestsPerSecond, burst int, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 20
	}
	if burst <= 0 {
		burst = requestsPerSecond * 2
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		logger:   log,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := GetUserID(r.Context())
		if key == "" {
			key = r.RemoteAddr
		}

		if !rl.getLimiter(key).Allow() {
			rl.logger.WithField("key", key).Warn("rate limit exceeded")
			svcErr := errors.Conflict("Too many requests")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"` + svcErr.Message + `"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
