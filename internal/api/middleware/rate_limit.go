package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MDx-Vision/nicehr-sub005/pkg/redis"
	"github.com/MDx-Vision/nicehr-sub005/pkg/response"
)

// RateLimit 基于 Redis 固定窗口的速率限制中间件
// 主要保护批次写路径（auto-assign/confirm 代价高）；rdb 为 nil 或不可用时降级放行，
// 限流失效不应阻断排班业务
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("sched:rl:%s:%s", c.ClientIP(), c.FullPath())
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
