package store

import (
	"context"
	"time"
)

const (
	KycNone     = "none"
	KycPending  = "pending"
	KycApproved = "approved"
	KycRejected = "rejected"
)

type KycStore struct {
	db DB
}

func NewKycStore(db DB) *KycStore {
	return &KycStore{db: db}
}

// KycRequest is keyed by user id: one (resubmittable) request per account.
// Its status is staged ahead of users.kyc_status and the two are only ever
// reconciled inside the approve/reject transaction.
type KycRequest struct {
	UserID          string    `db:"user_id"`
	Email           string    `db:"email"`
	FullName        string    `db:"full_name"`
	Country         string    `db:"country"`
	IDFrontURL      string    `db:"id_front_url"`
	IDBackURL       string    `db:"id_back_url"`
	SelfieURL       string    `db:"selfie_url"`
	Status          string    `db:"status"`
	RejectionReason *string   `db:"rejection_reason"`
	SubmittedAt     time.Time `db:"submitted_at"`
}

type KycRequestInput struct {
	UserID     string
	Email      string
	FullName   string
	Country    string
	IDFrontURL string
	IDBackURL  string
	SelfieURL  string
}

func (s *KycStore) Upsert(ctx context.Context, tx Execer, input KycRequestInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO kyc_requests (user_id, email, full_name, country, id_front_url, id_back_url, selfie_url, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET email = EXCLUDED.email,
		              full_name = EXCLUDED.full_name,
		              country = EXCLUDED.country,
		              id_front_url = EXCLUDED.id_front_url,
		              id_back_url = EXCLUDED.id_back_url,
		              selfie_url = EXCLUDED.selfie_url,
		              status = 'pending',
		              rejection_reason = NULL,
		              submitted_at = NOW()
	`, input.UserID, input.Email, input.FullName, input.Country,
		input.IDFrontURL, input.IDBackURL, input.SelfieURL)
	return err
}

func (s *KycStore) GetByUser(ctx context.Context, userID string) (KycRequest, error) {
	var row KycRequest
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, email, full_name, country, id_front_url, id_back_url, selfie_url,
		       status, rejection_reason, submitted_at
		FROM kyc_requests WHERE user_id = $1
	`, userID)
	if err != nil {
		return KycRequest{}, err
	}
	return row, nil
}

func (s *KycStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (KycRequest, error) {
	var row KycRequest
	err := tx.GetContext(ctx, &row, `
		SELECT user_id, email, full_name, country, id_front_url, id_back_url, selfie_url,
		       status, rejection_reason, submitted_at
		FROM kyc_requests WHERE user_id = $1 FOR UPDATE
	`, userID)
	if err != nil {
		return KycRequest{}, err
	}
	return row, nil
}

func (s *KycStore) SetStatus(ctx context.Context, tx Execer, userID, status string, rejectionReason *string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE kyc_requests SET status = $1, rejection_reason = $2 WHERE user_id = $3
	`, status, rejectionReason, userID)
	return err
}

func (s *KycStore) ListPending(ctx context.Context) ([]KycRequest, error) {
	var rows []KycRequest
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, email, full_name, country, id_front_url, id_back_url, selfie_url,
		       status, rejection_reason, submitted_at
		FROM kyc_requests
		WHERE status = 'pending'
		ORDER BY submitted_at ASC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
