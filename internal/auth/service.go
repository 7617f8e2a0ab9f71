package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/neliaxa/backend/internal/authz"
	"github.com/neliaxa/backend/internal/models"
	"github.com/neliaxa/backend/internal/storage"
	"github.com/neliaxa/backend/internal/twofactor"
)

// ErrInvalidCredentials collapses "unknown email" and "wrong password" into
// one code so responses cannot be used to enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidCode indicates a second-factor code that did not verify.
var ErrInvalidCode = errors.New("invalid second-factor code")

// ErrAccountNotFound indicates the token's subject no longer resolves to an
// account, or the account has no enrolled secret.
var ErrAccountNotFound = errors.New("account not found")

// Service orchestrates login, the optional second-factor challenge, and
// enrollment. Token issuance is stateless; the only stores touched are the
// user records.
type Service struct {
	users  storage.UserStore
	tokens *TokenManager
	totp   *twofactor.Engine
}

// LoginResult is the outcome of a password check: either a full session
// token, or a challenge token with Requires2FA set and no session.
type LoginResult struct {
	User        models.User
	Token       string
	Requires2FA bool
}

// NewService wires the state machine to its collaborators.
func NewService(users storage.UserStore, tokens *TokenManager, totp *twofactor.Engine) *Service {
	return &Service{users: users, tokens: tokens, totp: totp}
}

// Register creates an account with the lowest-privilege role and logs it in.
func (s *Service) Register(ctx context.Context, email, password string) (models.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, models.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         authz.RoleUser,
	})
	if err != nil {
		return models.User{}, "", err
	}
	token, err := s.tokens.IssueSession(user)
	if err != nil {
		return models.User{}, "", fmt.Errorf("issue session token: %w", err)
	}
	return user, token, nil
}

// Login verifies the password and either completes authentication or opens a
// second-factor challenge.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if user.TwoFactorEnabled {
		token, err := s.tokens.IssueChallenge(user)
		if err != nil {
			return LoginResult{}, fmt.Errorf("issue challenge token: %w", err)
		}
		return LoginResult{User: user, Token: token, Requires2FA: true}, nil
	}

	token, err := s.tokens.IssueSession(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue session token: %w", err)
	}
	return LoginResult{User: user, Token: token}, nil
}

// VerifySecondFactor closes a pending challenge. The challenge token is
// single-use by construction: once a session token is returned, the challenge
// token is never accepted anywhere a session token is expected.
func (s *Service) VerifySecondFactor(ctx context.Context, challengeToken, code string) (models.User, string, error) {
	claims, err := s.tokens.ParseChallenge(challengeToken)
	if err != nil {
		return models.User{}, "", err
	}
	return s.CompleteSecondFactor(ctx, claims.UserID(), code)
}

// CompleteSecondFactor checks the code for an already-validated challenge
// subject and issues the session token.
func (s *Service) CompleteSecondFactor(ctx context.Context, userID int64, code string) (models.User, string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, "", ErrAccountNotFound
		}
		return models.User{}, "", err
	}
	if user.TwoFactorSecret == "" {
		return models.User{}, "", ErrAccountNotFound
	}
	if !s.totp.Verify(user.TwoFactorSecret, code) {
		return models.User{}, "", ErrInvalidCode
	}
	token, err := s.tokens.IssueSession(user)
	if err != nil {
		return models.User{}, "", fmt.Errorf("issue session token: %w", err)
	}
	return user, token, nil
}

// EnrollSecondFactor stores a fresh pending secret, overwriting any prior
// pending one, and returns the provisioning material. The enabled flag is
// untouched until ConfirmSecondFactor.
func (s *Service) EnrollSecondFactor(ctx context.Context, userID int64) (twofactor.Enrollment, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return twofactor.Enrollment{}, ErrAccountNotFound
		}
		return twofactor.Enrollment{}, err
	}
	enrollment, err := s.totp.GenerateSecret(user.Email)
	if err != nil {
		return twofactor.Enrollment{}, err
	}
	if err := s.users.SetTwoFactorSecret(ctx, userID, enrollment.Secret); err != nil {
		return twofactor.Enrollment{}, err
	}
	return enrollment, nil
}

// ConfirmSecondFactor verifies a code against the pending secret and flips
// the enabled flag. On a bad code the pending secret stays for retry.
func (s *Service) ConfirmSecondFactor(ctx context.Context, userID int64, code string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	if user.TwoFactorSecret == "" || !s.totp.Verify(user.TwoFactorSecret, code) {
		return ErrInvalidCode
	}
	return s.users.EnableTwoFactor(ctx, userID)
}

// DisableSecondFactor requires a valid current code as proof of possession
// before clearing the secret and flag together.
func (s *Service) DisableSecondFactor(ctx context.Context, userID int64, code string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	if user.TwoFactorSecret == "" || !s.totp.Verify(user.TwoFactorSecret, code) {
		return ErrInvalidCode
	}
	return s.users.DisableTwoFactor(ctx, userID)
}
