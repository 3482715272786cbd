package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig is a token bucket shared by all requests from one IP.
type RateLimiterConfig struct {
	RequestsPerSecond rate.Limit
	BurstSize         int
}

// PerMinute converts a per-minute budget to a RateLimiterConfig.
func PerMinute(requests, burst int) RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: rate.Limit(float64(requests) / 60),
		BurstSize:         max(burst, 1),
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter tracks one limiter per client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	config   RateLimiterConfig
	now      func() time.Time
}

// NewIPRateLimiter creates an empty per-IP limiter.
func NewIPRateLimiter(config RateLimiterConfig) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		config:   config,
		now:      time.Now,
	}
}

// Allow consumes a token for ip.
func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.config.RequestsPerSecond, rl.config.BurstSize)}
		rl.visitors[ip] = v
	}
	v.lastSeen = rl.now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

// Cleanup drops limiters for IPs idle longer than maxIdle.
func (rl *IPRateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	removed := 0
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

// CleanupLoop runs Cleanup every interval until stop is closed.
func (rl *IPRateLimiter) CleanupLoop(stop <-chan struct{}, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := rl.Cleanup(maxIdle); n > 0 {
				slog.Debug("ratelimit: evicted idle clients", "count", n)
			}
		}
	}
}

// Middleware rejects requests over the limit with 429. The client IP is
// RemoteAddr, which TrustedRealIP has already rewritten for trusted proxies.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := "60"
	if rl.config.RequestsPerSecond > 0 {
		retryAfter = strconv.Itoa(max(1, int(math.Round(1/float64(rl.config.RequestsPerSecond)))))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.Allow(ip) {
			slog.Warn("ratelimit: request rejected",
				"path", r.URL.Path,
				"method", r.Method,
				"ip", ip,
			)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded","message":"Too many requests","action":"Please wait a moment before trying again","code":"RATE001"}` + "\n"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
