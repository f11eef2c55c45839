package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/MDx-Vision/nicehr-sub005/pkg/response"
)

// MustGetUserID 提取认证中间件注入的 user_id，作为批次与审计的操作者标识。
// 缺失时写入 401 并返回 false，调用方应直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}
