package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims are the custom claims carried in an access token
type JWTClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenInfo is the validated identity extracted from an access token
type TokenInfo struct {
	UserID    uint
	Username  string
	IsAdmin   bool
	ExpiresAt time.Time
}

// LoginRequest represents the login request
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"operator"`
	Password string `json:"password" binding:"required" example:"secret"`
}

// AuthResponse represents the response to a successful login
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type" example:"Bearer"`
	ExpiresIn   int64        `json:"expires_in" example:"86400"`
	User        UserResponse `json:"user"`
}
