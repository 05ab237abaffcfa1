package middleware

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/darkden-lab/pgbrowser/internal/httputil"
)

// ipLimiter holds a rate limiter and the last time it was used, in unix nanoseconds.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// rateLimiterStore manages per-IP rate limiters with periodic eviction.
type rateLimiterStore struct {
	limiters sync.Map
	rps      float64
	burst    int
	idle     time.Duration
}

func newRateLimiterStore(rps float64, burst int) *rateLimiterStore {
	s := &rateLimiterStore{
		rps:   rps,
		burst: burst,
		idle:  3 * time.Minute,
	}
	go s.cleanup(time.Minute)
	return s
}

func (s *rateLimiterStore) getLimiter(ip string) *rate.Limiter {
	now := time.Now().UnixNano()

	v, ok := s.limiters.Load(ip)
	if !ok {
		entry := &ipLimiter{limiter: rate.NewLimiter(rate.Limit(s.rps), s.burst)}
		v, _ = s.limiters.LoadOrStore(ip, entry)
	}
	entry := v.(*ipLimiter)
	entry.lastSeen.Store(now)
	return entry.limiter
}

func (s *rateLimiterStore) evict(now time.Time) {
	s.limiters.Range(func(key, value any) bool {
		entry := value.(*ipLimiter)
		if now.Sub(time.Unix(0, entry.lastSeen.Load())) > s.idle {
			s.limiters.Delete(key)
		}
		return true
	})
}

func (s *rateLimiterStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for now := range ticker.C {
		s.evict(now)
	}
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is not
// trusted since any client can set it.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// RateLimit enforces a per-IP token bucket of rps requests per second with
// the given burst. Each call creates an independent set of limiters, so the
// recovery forms can be limited more strictly than the rest of the app.
func RateLimit(rps float64, burst int) mux.MiddlewareFunc {
	store := newRateLimiterStore(rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !store.getLimiter(clientIP(r)).Allow() {
				httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
