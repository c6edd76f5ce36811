package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/inkpost/inkpost/internal/cache"
	"github.com/inkpost/inkpost/internal/metrics"
)

// loginScope namespaces login buckets in the shared limiter store.
const loginScope = "login"

// maxLocalBuckets bounds the in-process fallback limiter's memory.
const maxLocalBuckets = 10000

// IPRateLimiter takes one token from the bucket for ip within scope.
type IPRateLimiter interface {
	CheckIPRateLimit(ctx context.Context, scope, ip string, ratePerSecond float64, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for the login rate limiter.
type RateLimitConfig struct {
	Logger   *slog.Logger
	Limiter  IPRateLimiter
	Recorder metrics.Recorder
	Enabled  bool
	RPS      float64 // tokens refilled per second
	Burst    int
}

// RateLimitLogin limits login attempts per client IP. Buckets live in Redis
// so limits hold across replicas; when Redis errors the middleware degrades
// to a per-process limiter instead of failing open.
func RateLimitLogin(cfg RateLimitConfig) func(http.Handler) http.Handler {
	fallback := newLocalLimiter(cfg.RPS, cfg.Burst)
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)

			var result *cache.RateLimitResult
			var err error
			if cfg.Limiter != nil {
				result, err = cfg.Limiter.CheckIPRateLimit(r.Context(), loginScope, ip, cfg.RPS, cfg.Burst)
			}
			if cfg.Limiter == nil || err != nil {
				if err != nil {
					cfg.Logger.Warn("rate limit store unavailable, using local limiter",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
				result = fallback.check(ip)
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

			if !result.Allowed {
				recorder.IncLoginRateLimited()
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("type", loginScope),
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", retryAfterSeconds(result.RetryAfter)),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(result.RetryAfter), 10))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many login attempts")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds up so clients never retry early.
func retryAfterSeconds(d time.Duration) int64 {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// localLimiter is a keyed token bucket used when Redis is unreachable.
type localLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

func newLocalLimiter(rps float64, burst int) *localLimiter {
	if burst < 1 {
		burst = 1
	}
	return &localLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *localLimiter) check(ip string) *cache.RateLimitResult {
	l.mu.Lock()
	lim, ok := l.buckets[ip]
	if !ok {
		if len(l.buckets) >= maxLocalBuckets {
			l.buckets = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.buckets[ip] = lim
	}
	l.mu.Unlock()

	now := time.Now()
	res := lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return &cache.RateLimitResult{Allowed: false, RetryAfter: delay}
	}
	return &cache.RateLimitResult{
		Allowed:   true,
		Remaining: int64(math.Max(0, math.Floor(lim.TokensAt(now)))),
	}
}

// getClientIP returns the client address without port. chi's RealIP
// middleware has already rewritten RemoteAddr from X-Forwarded-For or
// X-Real-IP when the server sits behind a proxy.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
