package dto

import (
	"time"

	"github.com/edusight/edusight-api/internal/models"
)

// LoginRequest carries credentials for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AccountSummary is the identity block returned alongside tokens.
type AccountSummary struct {
	Username string             `json:"username"`
	FullName string             `json:"full_name"`
	Email    string             `json:"email"`
	Role     models.RoleTag     `json:"role"`
	Scope    models.AccessScope `json:"scope"`
}

// LoginResponse is the successful login payload.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresIn   int64          `json:"expires_in"`
	IssuedAt    time.Time      `json:"issued_at"`
	Account     AccountSummary `json:"account"`
}
