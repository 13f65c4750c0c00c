package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/subflow/subscription-service/internal/breaker"
	"github.com/subflow/subscription-service/internal/client"
	"github.com/subflow/subscription-service/internal/repository"
)

// SubscriptionHandler serves the authenticated user surface: profile,
// subscription changes, and billing history.  Subscription changes call
// the external billing API through the circuit breaker.
type SubscriptionHandler struct {
	Users   *repository.UserRepo
	Billing *repository.BillingRepo
	API     *client.BillingClient
}

func NewSubscriptionHandler(u *repository.UserRepo, b *repository.BillingRepo, api *client.BillingClient) *SubscriptionHandler {
	return &SubscriptionHandler{Users: u, Billing: b, API: api}
}

type updateSubscriptionReq struct {
	Tier string `json:"tier"` // Basic | Pro | Premium
}

// normalizeTier maps a case-insensitive tier name to its canonical form,
// or "" when unknown.
func normalizeTier(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic":
		return repository.TierBasic
	case "pro":
		return repository.TierPro
	case "premium":
		return repository.TierPremium
	}
	return ""
}

// currentUser resolves the authenticated user from the JWT middleware's
// context values.
func (h *SubscriptionHandler) currentUser(c echo.Context) (repository.User, error) {
	uid, ok := c.Get("user_id").(uint64)
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	return h.Users.GetByID(ctx, uid)
}

// Me returns the authenticated user's profile.
func (h *SubscriptionHandler) Me(c echo.Context) error {
	u, err := h.currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":                u.ID,
		"username":          u.Username,
		"email":             u.Email,
		"subscription_tier": u.SubscriptionTier,
		"subscribed_date":   u.SubscribedDate,
	})
}

// UpdateSubscription moves the user to a new tier.  Tier validation runs
// before the billing API is touched so a bad request never counts against
// the breaker; a breaker-open answer surfaces as 503.
func (h *SubscriptionHandler) UpdateSubscription(c echo.Context) error {
	var req updateSubscriptionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	tier := normalizeTier(req.Tier)
	if !repository.ValidTier(tier) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tier must be Basic, Pro or Premium"})
	}

	u, err := h.currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
	}

	var intent client.PaymentIntent
	if h.API != nil && h.API.Enabled() && tier != repository.TierBasic {
		intent, err = h.API.CreateSubscriptionIntent(c.Request().Context(), u.Email, tier)
		switch {
		case errors.Is(err, breaker.ErrCircuitOpen):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "billing is temporarily unavailable, try again later"})
		case errors.Is(err, client.ErrInvalidInput):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "billing rejected the request"})
		case err != nil:
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "billing request failed"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Users.UpdateSubscription(ctx, u.ID, tier); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update subscription"})
	}

	resp := echo.Map{"subscription_tier": tier}
	if intent.PaymentIntentID != "" {
		resp["payment_intent_id"] = intent.PaymentIntentID
		resp["client_secret"] = intent.ClientSecret
		resp["payment_status"] = intent.Status
	}
	return c.JSON(http.StatusOK, resp)
}

// BillingHistory lists the stored billing records for the authenticated
// user's email, newest first.  Records are written asynchronously by the
// billing consumer, so a just-completed payment may take a moment to show.
func (h *SubscriptionHandler) BillingHistory(c echo.Context) error {
	u, err := h.currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	recs, err := h.Billing.ListByEmail(ctx, u.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load billing history"})
	}

	out := make([]echo.Map, 0, len(recs))
	for _, r := range recs {
		out = append(out, echo.Map{
			"id":                r.ID,
			"amount":            r.Amount,
			"currency":          r.Currency,
			"payment_intent_id": r.PaymentIntentID,
			"status":            r.Status,
			"created_at":        r.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"records": out})
}
