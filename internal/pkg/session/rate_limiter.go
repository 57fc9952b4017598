// internal/pkg/session/rate_limiter.go
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	client      redis.Cmdable
	maxAttempts int64
	window      time.Duration
}

func NewRateLimiter(client redis.Cmdable, maxAttempts int64, window time.Duration) *RateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RateLimiter{client: client, maxAttempts: maxAttempts, window: window}
}

// CheckLoginAttempt counts an attempt and reports whether it is allowed.
func (r *RateLimiter) CheckLoginAttempt(ctx context.Context, ip, email string) (bool, int64, error) {
	key := r.loginKey(ip, email)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment login attempt: %w", err)
	}

	// Set expiration on first attempt. A counter without a TTL would lock the
	// pair out for good, so it is dropped when the expiry cannot be set.
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			r.client.Del(ctx, key)
			return false, 0, fmt.Errorf("failed to set login attempt window: %w", err)
		}
	}

	remaining := r.maxAttempts - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= r.maxAttempts, remaining, nil
}

// ResetLoginAttempts resets the login attempt counter
func (r *RateLimiter) ResetLoginAttempts(ctx context.Context, ip, email string) error {
	return r.client.Del(ctx, r.loginKey(ip, email)).Err()
}

func (r *RateLimiter) loginKey(ip, email string) string {
	return fmt.Sprintf("ratelimit:login:%s:%s", ip, strings.ToLower(email))
}
