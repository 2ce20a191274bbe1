package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// LimiterPool hands out one token bucket per key. Buckets idle for longer
// than the sweep window are dropped by Run.
type LimiterPool struct {
	limiters sync.Map // key -> *pooledLimiter
	rps      float64
	burst    int
}

type pooledLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

func NewLimiterPool(rps float64, burst int) *LimiterPool {
	return &LimiterPool{rps: rps, burst: burst}
}

func (p *LimiterPool) Get(key string) *rate.Limiter {
	v, ok := p.limiters.Load(key)
	if !ok {
		v, _ = p.limiters.LoadOrStore(key, &pooledLimiter{limiter: rate.NewLimiter(rate.Limit(p.rps), p.burst)})
	}
	pl := v.(*pooledLimiter)
	pl.lastSeen.Store(time.Now().UnixNano())
	return pl.limiter
}

// Sweep drops buckets not used since cutoff and returns how many went.
func (p *LimiterPool) Sweep(cutoff time.Time) int {
	n := 0
	p.limiters.Range(func(key, v any) bool {
		if v.(*pooledLimiter).lastSeen.Load() < cutoff.UnixNano() {
			p.limiters.Delete(key)
			n++
		}
		return true
	})
	return n
}

// Run sweeps buckets idle for longer than idle every interval until ctx ends.
func (p *LimiterPool) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := p.Sweep(now.Add(-idle)); n > 0 {
				slog.Debug("dropped idle rate limiters", "count", n)
			}
		}
	}
}

// RateLimit rejects requests beyond the per-client-IP budget with a JSON 429.
// The key is r.RemoteAddr, so proxy headers only count when a trusted
// RealIP rewrite ran first.
func RateLimit(pool *LimiterPool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pool.Get(clientIP(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"error":   "rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
