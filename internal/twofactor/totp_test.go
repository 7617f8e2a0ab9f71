package twofactor

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestGenerateSecret(t *testing.T) {
	engine := New("Neliaxa", 1)

	enrollment, err := engine.GenerateSecret("user@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, enrollment.Secret)
	assert.True(t, strings.HasPrefix(enrollment.EnrollmentURI, "otpauth://totp/"))
	assert.Contains(t, enrollment.EnrollmentURI, "Neliaxa")
	assert.Contains(t, enrollment.EnrollmentURI, "user%40example.com")

	second, err := engine.GenerateSecret("user@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, enrollment.Secret, second.Secret)
}

func TestVerifyCurrentStep(t *testing.T) {
	engine := New("Neliaxa", 1)
	enrollment, err := engine.GenerateSecret("user@example.com")
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	engine.now = func() time.Time { return now }

	assert.True(t, engine.Verify(enrollment.Secret, codeAt(t, enrollment.Secret, now)))
	assert.False(t, engine.Verify(enrollment.Secret, "000000"))
	assert.False(t, engine.Verify("", codeAt(t, enrollment.Secret, now)))
}

func TestVerifySkewWindow(t *testing.T) {
	engine := New("Neliaxa", 1)
	enrollment, err := engine.GenerateSecret("user@example.com")
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	engine.now = func() time.Time { return now }

	// One step behind and ahead are inside the tolerance window.
	assert.True(t, engine.Verify(enrollment.Secret, codeAt(t, enrollment.Secret, now.Add(-30*time.Second))))
	assert.True(t, engine.Verify(enrollment.Secret, codeAt(t, enrollment.Secret, now.Add(30*time.Second))))

	// Two steps out is not.
	assert.False(t, engine.Verify(enrollment.Secret, codeAt(t, enrollment.Secret, now.Add(-90*time.Second))))
	assert.False(t, engine.Verify(enrollment.Secret, codeAt(t, enrollment.Secret, now.Add(90*time.Second))))
}
