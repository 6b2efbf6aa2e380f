package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
)

// InvalidateIP clears the budget of one client address.
func (rl *RateLimiter) InvalidateIP(ctx context.Context, ip string) error {
	return rl.invalidate(ctx, keyPrefix+"ip:"+ip)
}

// InvalidateAll clears every budget.
func (rl *RateLimiter) InvalidateAll(ctx context.Context) error {
	return rl.invalidate(ctx, keyPrefix+"*")
}

func (rl *RateLimiter) invalidate(ctx context.Context, pattern string) error {
	rl.fallbackMutex.Lock()
	n := 0
	for key := range rl.fallbackLimiters {
		if matches(pattern, key) {
			delete(rl.fallbackLimiters, key)
			n++
		}
	}
	rl.fallbackMutex.Unlock()
	slog.Info("Invalidated in-memory rate limits", "pattern", pattern, "count", n)

	if rl.redisLimiter == nil {
		return nil
	}
	return rl.deleteByPattern(ctx, pattern)
}

// matches supports exact keys and a single trailing '*'.
func matches(pattern, key string) bool {
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		return len(key) >= n-1 && key[:n-1] == pattern[:n-1]
	}
	return pattern == key
}

// deleteByPattern deletes all Redis keys matching a pattern
func (rl *RateLimiter) deleteByPattern(ctx context.Context, pattern string) error {
	client := rl.redisClient.GetClient()
	// redis_rate stores its state under its own prefix
	pattern = "rate:" + pattern

	var cursor uint64
	deleted := 0
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			n, err := client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	slog.Info("Deleted rate limit keys by pattern", "pattern", pattern, "count", deleted)
	return nil
}
