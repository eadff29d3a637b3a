package middleware

import (
	"github.com/gin-gonic/gin"

	"magpie/internal/pkg/id"
)

// RequestID 请求ID中间件
// 客户端带 X-Request-ID 时透传，否则生成新的
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = id.New()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}
