package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/neliaxa/backend/internal/authz"
	"github.com/neliaxa/backend/internal/models"
)

// ErrInvalidToken covers bad signatures, malformed tokens, and tokens of the
// wrong kind for the endpoint.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken indicates a structurally valid token past its expiry.
var ErrExpiredToken = errors.New("expired token")

// TokenKind discriminates the two token classes. A full session token and a
// pending-second-factor challenge token are never interchangeable; parsing
// enforces the kind in both directions.
type TokenKind string

const (
	// KindSession marks a token proving completed authentication.
	KindSession TokenKind = "session"
	// KindChallenge marks a token proving password success while the
	// second-factor code is still outstanding.
	KindChallenge TokenKind = "challenge"
)

// Claims is the payload carried by both token kinds.
type Claims struct {
	Email string     `json:"email"`
	Role  authz.Role `json:"role"`
	Kind  TokenKind  `json:"kind"`
	jwt.RegisteredClaims
}

// UserID returns the subject as the numeric account id.
func (c Claims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// TokenManager issues and validates signed JWTs. It holds the only shared
// state token handling needs (the signing key), injected at construction.
type TokenManager struct {
	secret       []byte
	issuer       string
	sessionTTL   time.Duration
	challengeTTL time.Duration
	now          func() time.Time
}

// NewTokenManager creates a manager with the provided secret, issuer, and
// per-kind lifetimes.
func NewTokenManager(secret, issuer string, sessionTTL, challengeTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:       []byte(secret),
		issuer:       issuer,
		sessionTTL:   sessionTTL,
		challengeTTL: challengeTTL,
		now:          time.Now,
	}
}

// IssueSession signs a full session token for the user.
func (t *TokenManager) IssueSession(user models.User) (string, error) {
	return t.issue(user, KindSession, t.sessionTTL)
}

// IssueChallenge signs a short-lived pending-second-factor token.
func (t *TokenManager) IssueChallenge(user models.User) (string, error) {
	return t.issue(user, KindChallenge, t.challengeTTL)
}

func (t *TokenManager) issue(user models.User, kind TokenKind, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ParseSession validates raw as a session token. Challenge tokens are
// rejected with ErrInvalidToken.
func (t *TokenManager) ParseSession(raw string) (Claims, error) {
	return t.parse(raw, KindSession)
}

// ParseChallenge validates raw as a pending-second-factor token. Session
// tokens are rejected with ErrInvalidToken.
func (t *TokenManager) ParseChallenge(raw string) (Claims, error) {
	return t.parse(raw, KindChallenge)
}

func (t *TokenManager) parse(raw string, want TokenKind) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	if !parsed.Valid || claims.Kind != want {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
