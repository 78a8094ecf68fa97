package handlers

import (
	"context"
	"time"

	"fairchain/internal/services"
	"fairchain/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, input store.UserInput) error
	GetByID(ctx context.Context, userID string) (store.User, error)
	GetByEmail(ctx context.Context, email string) (store.User, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (store.User, error)
	UpdateBalances(ctx context.Context, tx store.Execer, userID string, verified, unverified int64) error
	SetReferralCounts(ctx context.Context, tx store.Execer, userID string, verified, unverified int) error
	SetKycStatus(ctx context.Context, tx store.Execer, userID, status string) error
	SetRole(ctx context.Context, tx store.Execer, userID, role string) error
	MarkEmailVerified(ctx context.Context, token string) (int64, error)
	ListAll(ctx context.Context) ([]store.User, error)
	Totals(ctx context.Context) (store.BalanceTotals, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type NotificationStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.NotificationInput) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]store.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkAllRead(ctx context.Context, tx store.Execer, userID string) error
}

type TaskStore interface {
	Create(ctx context.Context, tx store.Execer, id, title string, reward int64, url, verificationText *string) error
	Update(ctx context.Context, tx store.Execer, taskID, title string, reward int64, url, verificationText *string) (int64, error)
	Delete(ctx context.Context, tx store.Execer, taskID string) (int64, error)
	List(ctx context.Context) ([]store.Task, error)
	ListUserTasks(ctx context.Context, userID string) ([]store.UserTask, error)
}

type CodeStore interface {
	Upsert(ctx context.Context, tx store.Execer, code string, rewardAmount int64, validUntil time.Time) error
	Delete(ctx context.Context, tx store.Execer, code string) (int64, error)
	List(ctx context.Context) ([]store.DailyCode, error)
}

type SettingsStore interface {
	Get(ctx context.Context) (store.Settings, error)
	GetTx(ctx context.Context, tx store.Getter) (store.Settings, error)
	Update(ctx context.Context, tx store.Execer, input store.SettingsInput) error
	SetMaintenanceMode(ctx context.Context, tx store.Execer, enabled bool) error
	MaintenanceEnabled(ctx context.Context) (bool, error)
}

type KycStore interface {
	Upsert(ctx context.Context, tx store.Execer, input store.KycRequestInput) error
	GetByUser(ctx context.Context, userID string) (store.KycRequest, error)
	ListPending(ctx context.Context) ([]store.KycRequest, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID string, action store.AuditAction, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type SettlementService interface {
	CheckIn(ctx context.Context, userID string) (services.CheckInResult, error)
	ClaimAdBonus(ctx context.Context, userID string) (int64, error)
	StartMining(ctx context.Context, userID string) (time.Time, error)
	ClaimMining(ctx context.Context, userID string) (int64, error)
	CompleteTask(ctx context.Context, userID, taskID, answer string) (int64, error)
	RedeemCode(ctx context.Context, userID, code string) (int64, error)
	Transfer(ctx context.Context, senderID, recipientEmail string, amount int64) (services.TransferResult, error)
	AdminCredit(ctx context.Context, adminID, recipientEmail string, amount int64, reason string) error
	WithdrawFees(ctx context.Context, adminID, recipientEmail string, amount int64) error
	ApproveKyc(ctx context.Context, adminID, userID string) error
	RejectKyc(ctx context.Context, adminID, userID, reason string) error
}
