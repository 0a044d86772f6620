package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole enumerates roles carried by access tokens.
type UserRole string

// RoleAdmin is the coordinator managing enrollment windows and exports.
const RoleAdmin UserRole = "ADMIN"

// LoginRequest holds the coordinator credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued access token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
	jwt.RegisteredClaims
}
