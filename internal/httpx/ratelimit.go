package httpx

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// 上傳這類重操作做簡單的 per-key 限流。key 用 uid，沒有就退回來源 IP。
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
	seen     map[string]time.Time
}

func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		limiters: map[string]*rate.Limiter{},
		seen:     map[string]time.Time{},
		r:        rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rl.r, rl.burst)
		rl.limiters[key] = lim
	}
	rl.seen[key] = time.Now()

	// 偶爾清掉久未出現的 key，map 不會無限長
	if len(rl.limiters) > 1024 {
		cutoff := time.Now().Add(-10 * time.Minute)
		for k, t := range rl.seen {
			if t.Before(cutoff) {
				delete(rl.limiters, k)
				delete(rl.seen, k)
			}
		}
	}
	return lim.Allow()
}

func WithRateLimit(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := currentSession(r).UID
		if key == "" {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			key = "ip:" + host
		}
		if !rl.allow(key) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}
