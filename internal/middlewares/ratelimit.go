package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/squadup/squadup/utils/ratelimit"
)

// RateLimitMiddleware 按端点规则限流。限流 key 优先用认证后的 uid，
// 匿名请求退化为客户端 IP。
func RateLimitMiddleware(limiter ratelimit.Limiter, endpoint string, cfg *ratelimit.RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if uid, exists := c.Get("uid"); exists {
			key = uid.(string)
		}
		key = endpoint + ":" + key

		rule := ratelimit.GetRuleForEndpoint(endpoint, cfg)
		allowed, err := limiter.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			// fail-open 策略由 limiter 自身决定，这里仍然报错说明已选择 fail-closed
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rate limiter unavailable"})
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}

		c.Next()
	}
}
