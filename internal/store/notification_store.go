package store

import (
	"context"
	"time"
)

// NotificationType is the closed set of ledger entry kinds.
type NotificationType string

const (
	NotificationSend    NotificationType = "send"
	NotificationReceive NotificationType = "receive"
	NotificationBonus   NotificationType = "bonus"
	NotificationReward  NotificationType = "reward"
	NotificationMining  NotificationType = "mining"
	NotificationKyc     NotificationType = "kyc"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationSend, NotificationReceive, NotificationBonus,
		NotificationReward, NotificationMining, NotificationKyc:
		return true
	}
	return false
}

type NotificationStore struct {
	db DB
}

func NewNotificationStore(db DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Notification rows are the audit trail of every balance change. They are
// inserted only inside the settlement transaction that moved the balance,
// and only is_read is ever updated afterwards.
type Notification struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Type        string    `db:"type"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Amount      int64     `db:"amount"`
	IsRead      bool      `db:"is_read"`
	CreatedAt   time.Time `db:"created_at"`
}

type NotificationInput struct {
	ID          string
	UserID      string
	Type        NotificationType
	Title       string
	Description string
	Amount      int64
}

func (s *NotificationStore) Insert(ctx context.Context, tx Execer, input NotificationInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, description, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, input.ID, input.UserID, string(input.Type), input.Title, input.Description, input.Amount)
	return err
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Notification, error) {
	var rows []Notification
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, type, title, description, amount, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *NotificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM notifications WHERE user_id = $1 AND is_read = FALSE
	`, userID)
	return count, err
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE
	`, userID)
	return err
}
