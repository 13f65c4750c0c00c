package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/subflow/subscription-service/internal/auth"
	"github.com/subflow/subscription-service/internal/config"
	"github.com/subflow/subscription-service/internal/handler"
	"github.com/subflow/subscription-service/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring probe this endpoint to verify the
	// service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes and their middleware.
// Unauthenticated operations live under /v1/auth and are rate limited;
// protected endpoints live under /v1 behind the JWT middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, s *handler.SubscriptionHandler, tokens *auth.TokenService, rl config.RateLimitConfig, rdb *redis.Client) {
	// Login and register are brute-force targets, so the whole group
	// sits behind the Redis fixed-window limiter.
	g := e.Group("/v1/auth")
	g.Use(middleware.NewRateLimit(rl, rdb))
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Token verification reads the bearer header itself; it stays outside
	// the JWT middleware so clients get a JSON answer instead of a 401.
	g.GET("/verify-token", a.VerifyToken)

	// Everything under /v1 requires a valid access token.
	p := e.Group("/v1")
	p.Use(middleware.JWTAuth(tokens))
	p.GET("/me", s.Me)
	p.PUT("/subscription", s.UpdateSubscription)
	p.GET("/billing", s.BillingHistory)
}
