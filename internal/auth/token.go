// Package auth issues and verifies the signed access tokens that protect
// the API.  A token is an HS256 JWT carrying the user's id and username
// plus an absolute expiry; validity is computed from the token itself and
// nothing is persisted.  There is no revocation path: a leaked token stays
// valid until it expires.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every rejection: bad signature,
// malformed structure, or expiry at or before the current time.  Callers
// get no finer-grained reason by design.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity a verified token asserts.
type Claims struct {
	UserID   uint64
	Username string
}

// TokenService signs and verifies access tokens with a process-wide
// symmetric secret.  All timestamps use UTC; issue and verify share the
// same clock so there is no skew between the two paths.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService builds a TokenService.  ttl is the default lifetime
// applied by Issue.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for the given subject.  The expiry is the
// current UTC time plus the service TTL.  It returns the serialized token
// and its expiry.
func (s *TokenService) Issue(c Claims) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub":      c.UserID,
		"username": c.Username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses and validates a token string.  It returns the embedded
// claims on success and ErrInvalidToken on any failure.
func (s *TokenService) Verify(raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything but HMAC; an attacker must
		// not be able to downgrade the algorithm.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, ok := mc["sub"].(float64)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	username, ok := mc["username"].(string)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: uint64(sub), Username: username}, nil
}
