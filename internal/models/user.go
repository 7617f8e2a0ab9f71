package models

import (
	"time"

	"github.com/neliaxa/backend/internal/authz"
)

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Role             authz.Role `json:"role"`
	TwoFactorSecret  string     `json:"-"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	CreatedAt        time.Time  `json:"createdAt"`
}
