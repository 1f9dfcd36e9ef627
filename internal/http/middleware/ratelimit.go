package middleware

import (
	"net/http"
	"sync"
	"time"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleEviction  = 10 * time.Minute
)

// RateLimiter throttles the visitor-facing booking and payment endpoints per
// client. Each client holds a token bucket refilled at a fixed rate, so a
// burst of wizard steps passes while sustained hammering of POST /bookings or
// POST /payment-intents is rejected.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*bucket
	perSecond float64
	burst     float64

	now func() time.Time
}

type bucket struct {
	tokens   float64
	refilled time.Time
}

// take credits the bucket for the time elapsed since the last request, then
// spends one token if any remain.
func (b *bucket) take(now time.Time, perSecond, burst float64) bool {
	b.tokens += now.Sub(b.refilled).Seconds() * perSecond
	if b.tokens > burst {
		b.tokens = burst
	}
	b.refilled = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// NewRateLimiter creates a limiter allowing perSecond sustained requests with
// the given burst per client. Idle clients are evicted in the background so
// the bucket map does not grow without bound.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients:   make(map[string]*bucket),
		perSecond: perSecond,
		burst:     float64(burst),
		now:       time.Now,
	}
	go rl.sweep()
	return rl
}

// Allow reports whether a request from the client is within the limit.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.clients[client]
	if !ok {
		b = &bucket{tokens: rl.burst, refilled: now}
		rl.clients[client] = b
	}
	return b.take(now, rl.perSecond, rl.burst)
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := rl.now().Add(-limiterIdleEviction)
		for client, b := range rl.clients {
			if b.refilled.Before(cutoff) {
				delete(rl.clients, client)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit rejects requests over the configured per-client rate with
// 429 Too Many Requests.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(perSecond, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies the requester. X-Real-Ip is set by chi's RealIP
// middleware from forwarding headers; the socket address is the fallback.
func clientKey(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
