/*
Package limiter provides keyed token-bucket rate limiting.

Each key (a client IP address or a connection identifier) gets its own rate.Limiter.
A background goroutine drops limiters whose bucket has refilled, so idle keys do not
accumulate.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"roomchat/internal/pkg/errs"
	"roomchat/internal/pkg/logx"
	"roomchat/internal/pkg/resp"
)

// DefaultCleanupInterval is how often idle limiters are dropped.
const DefaultCleanupInterval = 3 * time.Minute

// KeyedLimiter implements a concurrency-safe rate limiter keyed by an arbitrary string.
type KeyedLimiter struct {
	// mu protects the limits map.
	mu sync.RWMutex

	// limits maps a key to its *rate.Limiter.
	limits map[string]*rate.Limiter

	// r is the number of events allowed per second for each key.
	r rate.Limit

	// b is the burst size (token bucket size) for each key.
	b int

	// stop ends the cleanup goroutine.
	stop chan struct{}

	// stopOnce guards stop against double close.
	stopOnce sync.Once
}

// NewKeyedLimiter creates a KeyedLimiter with rate r and burst b and starts its cleanup loop.
func NewKeyedLimiter(r rate.Limit, b int, cleanupInterval time.Duration) *KeyedLimiter {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	l := &KeyedLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
		stop:   make(chan struct{}),
	}

	go l.cleanUp(cleanupInterval)

	return l
}

// GetLimiter returns the limiter for key, creating it on first use.
// Creation uses double-checked locking.
func (l *KeyedLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limits[key]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		limiter, exists = l.limits[key]
		if !exists {
			limiter = rate.NewLimiter(l.r, l.b)
			l.limits[key] = limiter
		}
		l.mu.Unlock()
	}

	return limiter
}

// Allow reports whether one event for key may happen now.
func (l *KeyedLimiter) Allow(key string) bool {
	return l.GetLimiter(key).Allow()
}

// Forget drops the limiter for key.
func (l *KeyedLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.limits, key)
	l.mu.Unlock()
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limits)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *KeyedLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// cleanUp periodically removes limiters whose token bucket is full again.
func (l *KeyedLimiter) cleanUp(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			count := 0
			for key, limiter := range l.limits {
				if limiter.TokensAt(now) >= float64(limiter.Burst()) {
					delete(l.limits, key)
					count++
				}
			}
			remaining := len(l.limits)
			l.mu.Unlock()

			logx.Logger().Debug().
				Int("removed", count).
				Int("remaining", remaining).
				Msg("Rate limiter cleanup finished.")
		}
	}
}

// ClientIP extracts the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	if ip == "" {
		ip = "unknown_ip"
	}
	return ip
}

// Middleware rejects requests over the per-IP limit with 429 Too Many Requests.
func (l *KeyedLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)

		if !l.Allow(ip) {
			logx.Warn("Request rejected: rate limit exceeded.", "remote_ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
