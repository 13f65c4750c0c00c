package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueThenVerifyReturnsClaims(t *testing.T) {
	svc := NewTokenService("test-secret", 30*time.Minute)

	token, exp, err := svc.Issue(Claims{UserID: 42, Username: "morgan"})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, exp.After(time.Now().UTC()))

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "morgan", claims.Username)
}

func TestVerifyExpiredToken(t *testing.T) {
	// A negative TTL produces a token whose expiry is already in the past.
	svc := NewTokenService("test-secret", -time.Minute)

	token, _, err := svc.Issue(Claims{UserID: 1, Username: "sam"})
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTamperedSignature(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, _, err := svc.Issue(Claims{UserID: 7, Username: "alex"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	// Flip one character in the middle of the signature segment.
	sig := []byte(parts[2])
	if sig[10] == 'x' {
		sig[10] = 'y'
	} else {
		sig[10] = 'x'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = svc.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour)
	verifier := NewTokenService("secret-b", time.Hour)

	token, _, err := issuer.Issue(Claims{UserID: 9, Username: "kim"})
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMalformedToken(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		_, err := svc.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", raw)
	}
}
