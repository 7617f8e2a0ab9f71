package dto

import "github.com/neliaxa/backend/internal/models"

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries either a full session token or, when the account has
// a second factor enrolled, a short-lived challenge token and no session.
type LoginResponse struct {
	Token       string       `json:"token,omitempty"`
	Requires2FA bool         `json:"requires2fa,omitempty"`
	TempToken   string       `json:"tempToken,omitempty"`
	User        *models.User `json:"user,omitempty"`
}

type TwoFactorCodeRequest struct {
	Code string `json:"code"`
}

type TwoFactorSetupResponse struct {
	Secret        string `json:"secret"`
	EnrollmentURI string `json:"enrollmentUri"`
}

type TwoFactorStatusResponse struct {
	Enabled bool `json:"enabled"`
}

type MeResponse struct {
	User models.User `json:"user"`
}
