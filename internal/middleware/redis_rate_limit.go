package middleware

import (
	"context"
	"time"

	"github.com/M365x55907051/juice-shop/internal/cache"
	"github.com/M365x55907051/juice-shop/internal/errors"
	"github.com/M365x55907051/juice-shop/internal/logger"
	"github.com/M365x55907051/juice-shop/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RedisRateLimitMiddleware creates a fixed-window rate limiter shared by all
// instances through Redis. When Redis errors the request is rejected with 503
// rather than let through unlimited.
func RedisRateLimitMiddleware(redisClient *cache.RedisClient, config RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientKey
	}

	return func(c *gin.Context) {
		key := "rate_limit:" + routeLabel(c) + ":" + config.KeyFunc(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, ttl, err := redisClient.IncrWithExpiry(ctx, key, config.Window)
		if err != nil {
			logger.Log.Error("Rate limit check failed, rejecting request",
				logger.WithIP(c.ClientIP()),
				zap.Error(err),
			)
			util.RespondWithAPIError(c, errors.ServiceUnavailable("rate limiter"))
			return
		}

		if count > int64(config.Limit) {
			retryAfter := int(ttl.Seconds()) + 1
			if ttl <= 0 {
				retryAfter = int(config.Window.Seconds())
			}
			rejectRateLimited(c, config.Limit, retryAfter)
			return
		}

		c.Next()
	}
}

// RateLimit picks the Redis limiter when a client is configured, else the
// in-memory one
func RateLimit(redisClient *cache.RedisClient, config RateLimitConfig) gin.HandlerFunc {
	if redisClient != nil {
		return RedisRateLimitMiddleware(redisClient, config)
	}
	return NewRateLimiter(config)
}
