package middleware

import (
	_ "embed"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"todo_app/internal/config"
	"todo_app/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

//go:embed rate_limiter.lua
var luaScript string

var tokenBucket = redis.NewScript(luaScript)

// now is replaced in tests.
var now = time.Now

// RateLimiterConfig holds rate limiter configuration
type RateLimiterConfig struct {
	Capacity   int     // Maximum number of tokens (max burst)
	RefillRate float64 // Tokens refilled per second
}

// DefaultRateLimiterConfig allows a burst of 10 and one request per second after that.
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Capacity:   10,
		RefillRate: 1.0,
	}
}

func NewRateLimiterConfig(cfg config.RateLimitConfig) *RateLimiterConfig {
	if cfg.Capacity <= 0 || cfg.RefillRate <= 0 {
		return DefaultRateLimiterConfig()
	}
	return &RateLimiterConfig{Capacity: cfg.Capacity, RefillRate: cfg.RefillRate}
}

// RateLimiterMiddleware implements a token bucket per route and client IP
// using Redis + Lua script. Redis failures let the request through.
func RateLimiterMiddleware(redisClient *redis.Client, config *RateLimiterConfig, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		key := ClientRateLimiterKey(endpoint, c.ClientIP())

		result, err := tokenBucket.Run(c.Request.Context(), redisClient, []string{key},
			config.Capacity,
			config.RefillRate,
			now().UnixMilli(),
		).Int64()
		if err != nil {
			logrus.WithError(err).Error("Failed to execute rate limiter Lua script")
			// Fail open: allow request if Redis fails
			c.Next()
			return
		}

		if result == 0 {
			retryAfter := int(math.Ceil(1.0 / config.RefillRate))
			metrics.RateLimitedTotal.WithLabelValues(endpoint).Inc()
			logrus.WithFields(logrus.Fields{
				"endpoint":  endpoint,
				"client_ip": c.ClientIP(),
			}).Warn("Rate limit exceeded")

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": fmt.Sprintf("%d seconds", retryAfter),
			})
			return
		}

		c.Next()
	}
}

// Build cache key for per-client rate limiting
func ClientRateLimiterKey(endpoint, clientIP string) string {
	return fmt.Sprintf("rate_limiter:%s:%s", endpoint, clientIP)
}
