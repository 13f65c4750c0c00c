// Package client talks to the external billing API.  Every call crosses a
// network boundary to a dependency other than the primary datastore, so
// every call goes through the circuit breaker.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/subflow/subscription-service/internal/breaker"
)

// ErrInvalidInput marks caller mistakes (bad email, unknown tier, 4xx from
// the API).  These are surfaced to the caller but must never trip the
// breaker; the dependency is healthy, the request was wrong.
var ErrInvalidInput = errors.New("invalid billing request")

// IsFailure classifies an error for the breaker: dependency-level failures
// (transport errors, timeouts, 5xx-equivalent responses) count, input
// mistakes do not.  Wire it into breaker.Config.ShouldTrip.
func IsFailure(err error) bool {
	return !errors.Is(err, ErrInvalidInput)
}

// PaymentIntent is the billing API's answer to a subscription change.
type PaymentIntent struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	Status          string `json:"status"`
}

// BillingClient wraps the billing API behind a circuit breaker.
type BillingClient struct {
	baseURL string
	http    *http.Client
	brk     *breaker.Breaker
	logger  *zap.Logger
}

// New builds a client for the billing API at baseURL.  A nil logger is
// replaced with a no-op logger.
func New(baseURL string, brk *breaker.Breaker, logger *zap.Logger) *BillingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		brk:     brk,
		logger:  logger.With(zap.String("component", "billing-client")),
	}
}

// Enabled reports whether a billing API endpoint is configured.
func (c *BillingClient) Enabled() bool { return c.baseURL != "" }

// CreateSubscriptionIntent asks the billing API to start a payment for a
// tier change.  The call fails fast with breaker.ErrCircuitOpen while the
// dependency is presumed unhealthy.
func (c *BillingClient) CreateSubscriptionIntent(ctx context.Context, email, tier string) (PaymentIntent, error) {
	if email == "" || tier == "" {
		return PaymentIntent{}, ErrInvalidInput
	}

	var out PaymentIntent
	err := c.brk.Execute(func() error {
		body, err := json.Marshal(map[string]string{
			"customer_email": email,
			"tier":           tier,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/v1/subscriptions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("billing api request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("billing api status %d", resp.StatusCode)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("%w: billing api status %d", ErrInvalidInput, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("billing api response: %w", err)
		}
		return nil
	})
	if err != nil {
		return PaymentIntent{}, err
	}
	return out, nil
}
