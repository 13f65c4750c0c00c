// Package queue contains the background consumer that drains billing
// completion events published by the payment processor and persists them
// as billing records.
package queue

// BillingEvent is the JSON payload the payment processor publishes to the
// billing_results queue once a payment attempt settles.  It carries enough
// information to write a billing record without calling back into the
// processor.
type BillingEvent struct {
	CustomerEmail   string  `json:"customer_email"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	PaymentIntentID string  `json:"payment_intent_id"`
	ClientSecret    string  `json:"client_secret"`
	Status          string  `json:"status"`
}
