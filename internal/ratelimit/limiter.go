package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/monitoring"
)

const keyPrefix = "ratelimit:"

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin int // requests per minute per client IP; 0 disables limiting
	Burst         int // extra requests a quiet client may send at once
	IdleTTL       time.Duration
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin: 120,
		Burst:         20,
		IdleTTL:       time.Hour,
	}
}

// Rate is a number of requests per period.
type Rate struct {
	Limit  int
	Period time.Duration
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type localLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests through Redis when it is available and an
// in-memory token bucket per key otherwise.
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics

	fallbackLimiters map[string]*localLimiter
	fallbackMutex    sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter. A nil or disabled redisClient means
// in-memory limiting only.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	if redisClient == nil {
		redisClient = &RedisClient{}
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = time.Hour
	}
	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		fallbackLimiters: make(map[string]*localLimiter),
		stop:             make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Info("Using in-memory rate limiting")
	}

	go rl.cleanupLoop()
	return rl
}

// AllowIP checks the per-minute limit of one client address.
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, "ip:"+ip, Rate{Limit: rl.config.IPLimitPerMin, Period: time.Minute})
}

// Allow consumes one request from key's budget.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit Rate) (*Result, error) {
	if limit.Limit <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d per %s", limit.Limit, limit.Period)
	}
	key = keyPrefix + key

	if rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, limit)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitError()
		}
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, limit), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Limit,
		Burst:  limit.Limit + rl.config.Burst,
		Period: limit.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}, nil
}

// allowFallback runs a token bucket refilling limit tokens per period with
// room for limit+Burst.
func (rl *RateLimiter) allowFallback(key string, limit Rate) *Result {
	now := time.Now()
	burst := limit.Limit + rl.config.Burst

	rl.fallbackMutex.Lock()
	entry, ok := rl.fallbackLimiters[key]
	if !ok {
		entry = &localLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(limit.Limit)/limit.Period.Seconds()), burst),
		}
		rl.fallbackLimiters[key] = entry
	}
	entry.lastSeen = now
	rl.fallbackMutex.Unlock()

	result := &Result{Limit: limit.Limit}
	r := entry.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		result.RetryAfter = delay
		result.ResetAt = now.Add(delay)
		return result
	}

	result.Allowed = true
	tokens := entry.limiter.TokensAt(now)
	if tokens > 0 {
		result.Remaining = int(tokens)
	}
	missing := float64(burst) - tokens
	result.ResetAt = now.Add(time.Duration(missing / float64(entry.limiter.Limit()) * float64(time.Second)))
	return result
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.IdleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			if n := rl.evictIdle(now); n > 0 {
				slog.Debug("Evicted idle rate limiters", "count", n)
			}
		}
	}
}

// evictIdle drops in-memory buckets not used within IdleTTL.
func (rl *RateLimiter) evictIdle(now time.Time) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	n := 0
	for key, entry := range rl.fallbackLimiters {
		if now.Sub(entry.lastSeen) > rl.config.IdleTTL {
			delete(rl.fallbackLimiters, key)
			n++
		}
	}
	return n
}

// Close stops background cleanup.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_limiters": fallbackCount,
		"ip_limit_per_min":  rl.config.IPLimitPerMin,
	}
	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}
	return stats
}
