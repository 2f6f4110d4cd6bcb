package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Claims JWT 载荷：标准声明加上调用方的角色
//
// Subject 通常是上报方的 Jenkins 实例名。
type Claims struct {
	jwt.RegisteredClaims

	Roles []string `json:"roles,omitempty"`
}

// HasRole 判断是否持有角色，RoleAdmin 视为持有全部角色
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Roles, role) || slices.Contains(c.Roles, RoleAdmin)
}
