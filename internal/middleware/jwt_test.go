package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subflow/subscription-service/internal/auth"
)

func runJWT(t *testing.T, tokens *auth.TokenService, header string) (*httptest.ResponseRecorder, echo.Context, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := JWTAuth(tokens)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, c, called
}

func TestJWTAuthValidToken(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Hour)
	token, _, err := tokens.Issue(auth.Claims{UserID: 5, Username: "dana"})
	require.NoError(t, err)

	rec, c, called := runJWT(t, tokens, "Bearer "+token)
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(5), c.Get("user_id"))
	assert.Equal(t, "dana", c.Get("username"))
}

func TestJWTAuthMissingHeader(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Hour)

	rec, _, called := runJWT(t, tokens, "")
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthGarbageToken(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Hour)

	rec, _, called := runJWT(t, tokens, "Bearer garbage")
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthExpiredToken(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", -time.Minute)
	token, _, err := tokens.Issue(auth.Claims{UserID: 5, Username: "dana"})
	require.NoError(t, err)

	rec, _, called := runJWT(t, tokens, "Bearer "+token)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
