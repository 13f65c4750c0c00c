package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BillingRecord mirrors the 'billing_records' table.  Rows are written by
// the billing consumer from payment-processor events; customer_email is a
// soft reference to users.email and is not enforced at write time.
type BillingRecord struct {
	ID              uint64
	CustomerEmail   string
	Amount          float64
	Currency        string
	PaymentIntentID string
	ClientSecret    string
	Status          string
	CreatedAt       time.Time
}

type BillingRepo struct{ DB *sql.DB }

func NewBillingRepo(db *sql.DB) *BillingRepo { return &BillingRepo{DB: db} }

// Insert writes a billing record inside its own transaction.  The
// transaction is rolled back on any failure so a partial write never
// remains visible.
func (r *BillingRepo) Insert(ctx context.Context, rec BillingRecord) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO billing_records (customer_email, amount, currency, payment_intent_id, client_secret, status) VALUES (?,?,?,?,?,?)",
		rec.CustomerEmail, rec.Amount, rec.Currency, rec.PaymentIntentID, rec.ClientSecret, rec.Status)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert billing record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListByEmail returns the stored billing records for one customer, newest
// first.
func (r *BillingRepo) ListByEmail(ctx context.Context, email string) ([]BillingRecord, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,customer_email,amount,currency,payment_intent_id,client_secret,status,created_at FROM billing_records WHERE customer_email=? ORDER BY created_at DESC",
		email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BillingRecord
	for rows.Next() {
		var rec BillingRecord
		if err := rows.Scan(&rec.ID, &rec.CustomerEmail, &rec.Amount, &rec.Currency, &rec.PaymentIntentID, &rec.ClientSecret, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
