package app

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caravan-llm/caravan/internal/config"
	"github.com/caravan-llm/caravan/internal/logger"
	"github.com/caravan-llm/caravan/internal/util"
)

// RateLimiter keeps a token bucket per client IP. Buckets refill
// continuously at the configured per-minute rate and are dropped after ten
// minutes of inactivity.
type RateLimiter struct {
	perIPRequestsPerMinute int
	burstSize              int
	trustProxyHeaders      bool
	logger                 *logger.StyledLogger

	ipBuckets     sync.Map
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

type ipBucket struct {
	tokens     int64
	lastRefill int64
	lastAccess int64
}

type RateLimitResult struct {
	Allowed    bool
	RetryAfter int
	Limit      int
	Remaining  int
	ResetTime  time.Time
}

func NewRateLimiter(limits config.ServerRateLimits, logger *logger.StyledLogger) *RateLimiter {
	rl := &RateLimiter{
		perIPRequestsPerMinute: limits.PerIPRequestsPerMinute,
		burstSize:              limits.BurstSize,
		trustProxyHeaders:      limits.TrustProxyHeaders,
		logger:                 logger,
		stopCleanup:            make(chan struct{}),
	}

	if limits.CleanupInterval > 0 {
		rl.cleanupTicker = time.NewTicker(limits.CleanupInterval)
		go rl.cleanupRoutine()
	}

	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		if rl.cleanupTicker != nil {
			rl.cleanupTicker.Stop()
		}
		close(rl.stopCleanup)
	})
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := util.GetClientIP(r, rl.trustProxyHeaders)

			result := rl.checkRateLimit(clientIP, rl.perIPRequestsPerMinute)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))

				rl.logger.Warn("Rate limit exceeded",
					"client_ip", clientIP,
					"method", r.Method,
					"path", r.URL.Path,
					"limit", result.Limit,
					"retry_after", result.RetryAfter)

				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) checkRateLimit(clientIP string, limit int) RateLimitResult {
	now := time.Now()
	nowNano := now.UnixNano()

	if limit <= 0 {
		return RateLimitResult{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetTime: now.Add(time.Minute),
		}
	}

	// Use the smaller of limit or burstSize for initial tokens
	initialTokens := int64(min(limit, rl.burstSize))

	value, _ := rl.ipBuckets.LoadOrStore(clientIP, &ipBucket{
		tokens:     initialTokens,
		lastRefill: nowNano,
		lastAccess: nowNano,
	})

	bucket := value.(*ipBucket)

	// Always refill before checking
	rl.refillIPTokens(bucket, limit, nowNano)

	// Try to consume a token
	for {
		tokens := atomic.LoadInt64(&bucket.tokens)
		if tokens <= 0 {
			// Calculate retry after based on token refill rate
			tokensPerSecond := float64(limit) / 60.0
			retryAfter := int(1.0 / tokensPerSecond)
			if retryAfter < 1 {
				retryAfter = 1
			}

			return RateLimitResult{
				Allowed:    false,
				RetryAfter: retryAfter,
				Limit:      limit,
				Remaining:  0,
				ResetTime:  now.Add(time.Minute),
			}
		}

		if atomic.CompareAndSwapInt64(&bucket.tokens, tokens, tokens-1) {
			atomic.StoreInt64(&bucket.lastAccess, nowNano)

			remaining := int(tokens - 1)
			if remaining < 0 {
				remaining = 0
			}

			return RateLimitResult{
				Allowed:   true,
				Limit:     limit,
				Remaining: remaining,
				ResetTime: now.Add(time.Minute),
			}
		}
	}
}

func (rl *RateLimiter) refillIPTokens(bucket *ipBucket, limit int, nowNano int64) {
	lastRefill := atomic.LoadInt64(&bucket.lastRefill)
	elapsed := nowNano - lastRefill

	// Only refill if at least 1 second has passed
	if elapsed < 1e9 {
		return
	}

	if !atomic.CompareAndSwapInt64(&bucket.lastRefill, lastRefill, nowNano) {
		return
	}

	tokensToAdd := elapsed * int64(limit) / (60 * 1e9)
	if tokensToAdd > 0 {
		for {
			currentTokens := atomic.LoadInt64(&bucket.tokens)
			newTokens := currentTokens + tokensToAdd
			maxTokens := int64(rl.burstSize)

			if newTokens > maxTokens {
				newTokens = maxTokens
			}

			if atomic.CompareAndSwapInt64(&bucket.tokens, currentTokens, newTokens) {
				break
			}
		}
	}
}

func (rl *RateLimiter) cleanupRoutine() {
	for {
		select {
		case <-rl.stopCleanup:
			return
		case <-rl.cleanupTicker.C:
			rl.cleanupOldBuckets()
		}
	}
}

func (rl *RateLimiter) cleanupOldBuckets() {
	cutoff := time.Now().Add(-10 * time.Minute).UnixNano()

	rl.ipBuckets.Range(func(key, value interface{}) bool {
		bucket := value.(*ipBucket)
		lastAccess := atomic.LoadInt64(&bucket.lastAccess)

		if lastAccess < cutoff {
			rl.ipBuckets.Delete(key)
		}
		return true
	})
}
