package twofactor

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Engine generates enrollment secrets and verifies time-based codes.
type Engine struct {
	issuer string
	skew   uint
	now    func() time.Time
}

// Enrollment is the material returned to a user setting up an authenticator.
type Enrollment struct {
	Secret        string
	EnrollmentURI string
}

// New creates an engine stamping the given issuer into provisioning URIs.
// skew is the number of adjacent 30-second steps accepted around the current
// one to absorb clock drift.
func New(issuer string, skew uint) *Engine {
	return &Engine{issuer: issuer, skew: skew, now: time.Now}
}

// GenerateSecret produces a fresh random secret and the otpauth:// URI an
// authenticator app scans.
func (e *Engine) GenerateSecret(account string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: account,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}
	return Enrollment{Secret: key.Secret(), EnrollmentURI: key.URL()}, nil
}

// Verify checks the submitted code against the secret for the current time
// step and the configured skew on either side.
func (e *Engine) Verify(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, e.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      e.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
