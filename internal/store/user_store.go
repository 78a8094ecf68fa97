package store

import (
	"context"
	"time"
)

type UserStore struct {
	db DB
}

// User is the per-account balance record. Balances are int64 minor units
// and must never go negative; settlement code checks before writing and the
// schema enforces it with CHECK constraints as a last line of defense.
type User struct {
	ID                  string     `db:"id"`
	Email               string     `db:"email"`
	Username            string     `db:"username"`
	FullName            string     `db:"full_name"`
	PasswordHash        string     `db:"password_hash"`
	EmailVerified       bool       `db:"email_verified"`
	VerifyToken         *string    `db:"verify_token"`
	VerifiedBalance     int64      `db:"verified_balance"`
	UnverifiedBalance   int64      `db:"unverified_balance"`
	KycStatus           string     `db:"kyc_status"`
	Role                string     `db:"role"`
	LastCheckIn         *time.Time `db:"last_check_in"`
	MiningStartedAt     *time.Time `db:"mining_started_at"`
	LastAdBonusAt       *time.Time `db:"last_ad_bonus_at"`
	VerifiedReferrals   int        `db:"verified_referrals"`
	UnverifiedReferrals int        `db:"unverified_referrals"`
	ReferredBy          *string    `db:"referred_by"`
	CreatedAt           time.Time  `db:"created_at"`
}

const userColumns = `
	id, email, username, full_name, password_hash, email_verified, verify_token,
	verified_balance, unverified_balance, kyc_status, role,
	last_check_in, mining_started_at, last_ad_bonus_at,
	verified_referrals, unverified_referrals, referred_by, created_at
`

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

type UserInput struct {
	ID           string
	Email        string
	Username     string
	FullName     string
	PasswordHash string
	VerifyToken  string
	ReferredBy   *string
}

func (s *UserStore) Create(ctx context.Context, tx Execer, input UserInput) error {
	query := `
		INSERT INTO users (id, email, username, full_name, password_hash, verify_token, referred_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.Email, input.Username, input.FullName, input.PasswordHash,
		input.VerifyToken, input.ReferredBy,
	)
	return err
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (User, error) {
	var row User
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if err != nil {
		return User{}, err
	}
	return row, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	var row User
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return User{}, err
	}
	return row, nil
}

func (s *UserStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (User, error) {
	var row User
	err := tx.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		return User{}, err
	}
	return row, nil
}

// ResolveIDByEmail looks up a user id inside a transaction without taking
// a row lock, so callers can lock multiple users in a stable order.
func (s *UserStore) ResolveIDByEmail(ctx context.Context, tx Getter, email string) (string, error) {
	var id string
	err := tx.GetContext(ctx, &id, `SELECT id FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return id, err
}

func (s *UserStore) GetByEmailForUpdate(ctx context.Context, tx Getter, email string) (User, error) {
	var row User
	err := tx.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1) FOR UPDATE`, email)
	if err != nil {
		return User{}, err
	}
	return row, nil
}

func (s *UserStore) UpdateBalances(ctx context.Context, tx Execer, userID string, verified, unverified int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET verified_balance = $1, unverified_balance = $2, updated_at = NOW()
		WHERE id = $3
	`, verified, unverified, userID)
	return err
}

func (s *UserStore) SetLastCheckIn(ctx context.Context, tx Execer, userID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET last_check_in = $1, updated_at = NOW() WHERE id = $2`, at, userID)
	return err
}

func (s *UserStore) SetLastAdBonusAt(ctx context.Context, tx Execer, userID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET last_ad_bonus_at = $1, updated_at = NOW() WHERE id = $2`, at, userID)
	return err
}

func (s *UserStore) SetMiningStartedAt(ctx context.Context, tx Execer, userID string, at *time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET mining_started_at = $1, updated_at = NOW() WHERE id = $2`, at, userID)
	return err
}

func (s *UserStore) SetKycStatus(ctx context.Context, tx Execer, userID, status string) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET kyc_status = $1, updated_at = NOW() WHERE id = $2`, status, userID)
	return err
}

func (s *UserStore) SetRole(ctx context.Context, tx Execer, userID, role string) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`, role, userID)
	return err
}

func (s *UserStore) SetReferralCounts(ctx context.Context, tx Execer, userID string, verified, unverified int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET verified_referrals = $1, unverified_referrals = $2, updated_at = NOW()
		WHERE id = $3
	`, verified, unverified, userID)
	return err
}

func (s *UserStore) MarkEmailVerified(ctx context.Context, token string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email_verified = TRUE, verify_token = NULL, updated_at = NOW()
		WHERE verify_token = $1
	`, token)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *UserStore) ListAll(ctx context.Context) ([]User, error) {
	var rows []User
	err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type BalanceTotals struct {
	Users      int64 `db:"users"`
	Verified   int64 `db:"verified"`
	Unverified int64 `db:"unverified"`
}

func (s *UserStore) Totals(ctx context.Context) (BalanceTotals, error) {
	var totals BalanceTotals
	err := s.db.GetContext(ctx, &totals, `
		SELECT COUNT(1) AS users,
		       COALESCE(SUM(verified_balance), 0) AS verified,
		       COALESCE(SUM(unverified_balance), 0) AS unverified
		FROM users
	`)
	return totals, err
}

func (s *UserStore) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var role string
	if err := s.db.GetContext(ctx, &role, `SELECT role FROM users WHERE id = $1`, userID); err != nil {
		return false, err
	}
	return role == "admin", nil
}
