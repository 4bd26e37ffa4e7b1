package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"registry-console/internal/core/auth"
	resp "registry-console/internal/transport/http/response"
)

// 解析后的身份放进 gin 上下文的键
const (
	CtxUID      = "uid"
	CtxUsername = "username"
	CtxIsAdmin  = "isAdmin"
)

func AuthJWT(j *auth.JWTer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(resp.CodeUnauthorized, resp.Error(resp.CodeUnauthorized, "missing token"))
			return
		}
		claims, err := j.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(resp.CodeUnauthorized, resp.Error(resp.CodeUnauthorized, "invalid or expired token"))
			return
		}
		c.Set(CtxUID, claims.UID)
		c.Set(CtxUsername, claims.Username)
		c.Set(CtxIsAdmin, claims.IsAdmin)
		c.Next()
	}
}
