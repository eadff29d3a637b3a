package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"magpie/internal/pkg/ctxutil"
	httpkg "magpie/internal/pkg/http"
	"magpie/internal/pkg/jwt"
)

// Auth JWT 认证中间件
// 从 Authorization header 中提取 Bearer token，用配置的密钥验证签名与过期时间，
// 验证通过后把调用方标识放进请求 context
func Auth(secret string) gin.HandlerFunc {
	tool := jwt.NewJWT(secret, 0)

	return func(c *gin.Context) {
		// 从 Header 获取 Token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized,
				httpkg.NewErrorResponse(40101, "Authorization required"))
			c.Abort()
			return
		}

		// 提取 Token（Bearer {token}）
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized,
				httpkg.NewErrorResponse(40101, "Invalid authorization header"))
			c.Abort()
			return
		}

		// 验证 Token
		claims, err := tool.ValidateToken(parts[1])
		if err != nil {
			code := 40102
			if errors.Is(err, jwt.ErrExpiredToken) {
				code = 40103
			}
			c.JSON(http.StatusUnauthorized,
				httpkg.NewErrorResponse(code, "Token invalid or expired", err.Error()))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(
			ctxutil.WithClient(c.Request.Context(), claims.Client))

		c.Next()
	}
}
