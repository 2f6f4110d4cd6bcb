package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ClaimsKey Gin 上下文中保存 Claims 的键
const ClaimsKey = "auth:claims"

func (a *jwtAuth) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := a.extractToken(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "UNAUTHORIZED"})
			return
		}
		claims, err := a.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "UNAUTHORIZED"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRoles 要求持有全部角色，须挂在 GinMiddleware 之后
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "UNAUTHORIZED"})
			return
		}
		for _, role := range roles {
			if !claims.HasRole(role) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "forbidden: missing role " + role,
					"code":  "FORBIDDEN",
				})
				return
			}
		}
		c.Next()
	}
}

// GetClaims 从 Gin 上下文取出 Claims
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
