package handler

import (
	"context"  // provides context with cancellation for DB calls
	"errors"   // sentinel error checks
	"net/http" // HTTP status codes and primitives
	"regexp"   // email format validation
	"strings"  // string manipulation utilities
	"time"     // timeouts for DB calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/subflow/subscription-service/internal/auth"
	"github.com/subflow/subscription-service/internal/config"
	"github.com/subflow/subscription-service/internal/repository"
	"github.com/subflow/subscription-service/internal/utils"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *auth.TokenService
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *auth.TokenService) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Username string `json:"username"` // username or email
	Password string `json:"password"`
}

type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Tier     string `json:"subscription_tier"`
}
type tokenResp struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expires     time.Time `json:"expires"`
}

// validPassword enforces the registration password policy: at least 8
// characters with both an uppercase and a lowercase letter.
func validPassword(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	var upper, lower bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		}
	}
	return upper && lower
}

// Register: create user and return a token immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/email/password required"})
	}
	if !emailRe.MatchString(req.Email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email format"})
	}
	if !validPassword(req.Password) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters and include uppercase and lowercase letters"})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hashing failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Username, req.Email, hash)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "username or email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create user"})
	}

	token, exp, err := h.Tokens.Issue(auth.Claims{UserID: uid, Username: req.Username})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not issue token"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"user":   userPart{ID: uid, Username: req.Username, Email: req.Email, Tier: repository.TierBasic},
		"access": tokenResp{AccessToken: token, TokenType: "bearer", Expires: exp},
	})
}

// Login: verify credentials and return a fresh access token.  The
// username field accepts either the username or the email.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if errors.Is(err, repository.ErrNotFound) {
		u, err = h.Users.GetByEmail(ctx, req.Username)
	}
	if err != nil || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		// Same answer whether the user is missing or the password is
		// wrong, so login cannot be used to probe for accounts.
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid username or password"})
	}

	token, exp, err := h.Tokens.Issue(auth.Claims{UserID: u.ID, Username: u.Username})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not issue token"})
	}
	return c.JSON(http.StatusOK, tokenResp{AccessToken: token, TokenType: "bearer", Expires: exp})
}

// VerifyToken: report whether the presented bearer token is valid and echo
// its claims.  Kept for clients that validate a stored token before use.
func (h *AuthHandler) VerifyToken(c echo.Context) error {
	header := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	claims, err := h.Tokens.Verify(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"msg": "token is valid",
		"token_info": echo.Map{
			"user_id":  claims.UserID,
			"username": claims.Username,
		},
	})
}
