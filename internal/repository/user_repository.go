package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Subscription tiers a user can hold.
const (
	TierBasic   = "Basic"
	TierPro     = "Pro"
	TierPremium = "Premium"
)

// ValidTier reports whether s names a known subscription tier.
func ValidTier(s string) bool {
	return s == TierBasic || s == TierPro || s == TierPremium
}

// User mirrors the 'users' table.
type User struct {
	ID               uint64
	Username         string
	Email            string
	PasswordHash     string
	SubscriptionTier string
	SubscribedDate   time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, username, email, passwordHash string) (uint64, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, subscription_tier) VALUES (?,?,?,?)",
		username, email, passwordHash, TierBasic)
	if err != nil {
		// MySQL error 1062 = duplicate entry for a unique key
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	return r.getWhere(ctx, "username=?", strings.TrimSpace(username))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getWhere(ctx, "email=?", strings.ToLower(strings.TrimSpace(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (User, error) {
	return r.getWhere(ctx, "id=?", id)
}

func (r *UserRepo) getWhere(ctx context.Context, where string, arg any) (User, error) {
	var u User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,username,email,password_hash,subscription_tier,subscribed_date,created_at,updated_at FROM users WHERE "+where+" LIMIT 1",
		arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.SubscriptionTier, &u.SubscribedDate, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// ExistsByUsername reports whether a user with the given username exists.
// Absence is a valid result, not an error.
func (r *UserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE username=? LIMIT 1",
		strings.TrimSpace(username)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateSubscription moves a user to a new tier and stamps subscribed_date.
func (r *UserRepo) UpdateSubscription(ctx context.Context, id uint64, tier string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET subscription_tier=?, subscribed_date=UTC_TIMESTAMP() WHERE id=?",
		tier, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
