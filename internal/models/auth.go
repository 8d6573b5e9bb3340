package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the authenticated account identity inside access tokens.
type JWTClaims struct {
	Username string  `json:"username"`
	Role     RoleTag `json:"role"`
	FullName string  `json:"full_name"`
	jwt.RegisteredClaims
}
