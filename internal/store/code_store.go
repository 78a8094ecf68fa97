package store

import (
	"context"
	"time"
)

type CodeStore struct {
	db DB
}

func NewCodeStore(db DB) *CodeStore {
	return &CodeStore{db: db}
}

// DailyCode is keyed by the lowercased code string itself.
type DailyCode struct {
	Code         string    `db:"code"`
	RewardAmount int64     `db:"reward_amount"`
	ValidUntil   time.Time `db:"valid_until"`
	CreatedAt    time.Time `db:"created_at"`
}

func (s *CodeStore) Upsert(ctx context.Context, tx Execer, code string, rewardAmount int64, validUntil time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO daily_codes (code, reward_amount, valid_until)
		VALUES ($1, $2, $3)
		ON CONFLICT (code)
		DO UPDATE SET reward_amount = EXCLUDED.reward_amount, valid_until = EXCLUDED.valid_until
	`, code, rewardAmount, validUntil)
	return err
}

func (s *CodeStore) Delete(ctx context.Context, tx Execer, code string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM daily_codes WHERE code = $1`, code)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *CodeStore) List(ctx context.Context) ([]DailyCode, error) {
	var rows []DailyCode
	err := s.db.SelectContext(ctx, &rows, `
		SELECT code, reward_amount, valid_until, created_at
		FROM daily_codes ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *CodeStore) GetForUpdate(ctx context.Context, tx Getter, code string) (DailyCode, error) {
	var row DailyCode
	err := tx.GetContext(ctx, &row, `
		SELECT code, reward_amount, valid_until, created_at
		FROM daily_codes WHERE code = $1 FOR UPDATE
	`, code)
	if err != nil {
		return DailyCode{}, err
	}
	return row, nil
}

// HasRedeemed is the double-redemption guard: a redeemed_codes row exists
// exactly when this user already claimed this code.
func (s *CodeStore) HasRedeemed(ctx context.Context, tx Getter, userID, code string) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM redeemed_codes WHERE user_id = $1 AND code = $2
	`, userID, code)
	return count > 0, err
}

func (s *CodeStore) InsertRedemption(ctx context.Context, tx Execer, userID, code string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO redeemed_codes (user_id, code) VALUES ($1, $2)
	`, userID, code)
	return err
}
