package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"glxy/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window limiter on Redis INCR/EXPIRE shared by every
// instance. Without Redis, or when a Redis call fails, decisions fall back to
// an in-process token bucket.
type RateLimiter struct {
	redis *redis.Client
	local *localLimiter
	log   *slog.Logger
}

// NewRateLimiter accepts a nil client for single-instance deployments
func NewRateLimiter(client *redis.Client, log *slog.Logger) *RateLimiter {
	if log == nil {
		log = logger.Get()
	}
	return &RateLimiter{redis: client, local: newLocalLimiter(), log: log.With("component", "ratelimit")}
}

// PerIP limits requests per client IP.
// key format: rl:<name>:<window_seconds>:<ip>
func (rl *RateLimiter) PerIP(name string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		rl.handle(c, name, c.ClientIP(), maxRequests, window)
	}
}

// PerUser limits requests per authenticated user, so it must run after JWT.
// Used on endpoints that spend Stardust.
func (rl *RateLimiter) PerUser(name string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		rl.handle(c, name, "user:"+userID, maxRequests, window)
	}
}

func (rl *RateLimiter) handle(c *gin.Context, name, ident string, maxRequests int, window time.Duration) {
	if maxRequests <= 0 || window <= 0 {
		c.Next()
		return
	}

	count, allowed := rl.allow(c.Request.Context(), name, ident, maxRequests, window)
	c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
	if count > 0 {
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-count), 10))
	}

	endpoint := name + ":" + c.FullPath()
	if !allowed {
		RLBlocked.WithLabelValues(endpoint).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate limit exceeded",
			"retry_after": int(window.Seconds()),
		})
		return
	}

	RLRequests.WithLabelValues(endpoint).Inc()
	c.Next()
}

// allow returns the window count (0 when decided locally) and the verdict
func (rl *RateLimiter) allow(ctx context.Context, name, ident string, maxRequests int, window time.Duration) (int64, bool) {
	key := "rl:" + name + ":" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + ident

	if rl.redis != nil {
		val, err := rl.incr(ctx, key, window)
		if err == nil {
			return val, val <= int64(maxRequests)
		}
		RLFallbacks.Inc()
		rl.log.Warn("redis rate limit failed, deciding locally", "error", err)
	}

	return 0, rl.local.allow(key, maxRequests, window)
}

// incr bumps the window counter and makes sure the key expires. The TTL is
// checked on every hit so a key that lost its EXPIRE heals on the next
// request instead of blocking the caller for good.
func (rl *RateLimiter) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	if ttl.Val() < 0 {
		if err := rl.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return incr.Val(), nil
}
