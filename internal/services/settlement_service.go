package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fairchain/internal/cooldown"
	"fairchain/internal/db"
	"fairchain/internal/money"
	"fairchain/internal/store"
	"fairchain/internal/websocket"
)

var (
	ErrCooldownActive       = errors.New("check-in cooldown active")
	ErrAdBonusNotAvailable  = errors.New("ad bonus not available")
	ErrMiningInProgress     = errors.New("mining session already in progress")
	ErrNoMiningSession      = errors.New("no active mining session")
	ErrMiningNotReady       = errors.New("mining session not finished")
	ErrTaskNotFound         = errors.New("task not found")
	ErrTaskAlreadyCompleted = errors.New("task already completed")
	ErrVerificationMismatch = errors.New("verification answer does not match")
	ErrCodeNotFound         = errors.New("code not found")
	ErrCodeExpired          = errors.New("code expired")
	ErrCodeAlreadyRedeemed  = errors.New("code already redeemed")
	ErrKycRequired          = errors.New("kyc approval required")
	ErrAmountTooLow         = errors.New("amount below minimum")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrRecipientNotFound    = errors.New("recipient not found")
	ErrSelfTransfer         = errors.New("cannot transfer to yourself")
	ErrReasonRequired       = errors.New("reason is required")
	ErrInsufficientFeePool  = errors.New("insufficient collected fees")
	ErrNoPendingRequest     = errors.New("no pending kyc request")
)

type UserStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (store.User, error)
	GetByEmailForUpdate(ctx context.Context, tx store.Getter, email string) (store.User, error)
	ResolveIDByEmail(ctx context.Context, tx store.Getter, email string) (string, error)
	UpdateBalances(ctx context.Context, tx store.Execer, userID string, verified, unverified int64) error
	SetLastCheckIn(ctx context.Context, tx store.Execer, userID string, at time.Time) error
	SetLastAdBonusAt(ctx context.Context, tx store.Execer, userID string, at time.Time) error
	SetMiningStartedAt(ctx context.Context, tx store.Execer, userID string, at *time.Time) error
	SetKycStatus(ctx context.Context, tx store.Execer, userID, status string) error
	SetReferralCounts(ctx context.Context, tx store.Execer, userID string, verified, unverified int) error
}

type SettingsStore interface {
	GetTx(ctx context.Context, tx store.Getter) (store.Settings, error)
	GetForUpdate(ctx context.Context, tx store.Getter) (store.Settings, error)
	UpdateAdminWallet(ctx context.Context, tx store.Execer, balance int64) error
}

type NotificationStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.NotificationInput) error
}

type TaskStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, taskID string) (store.Task, error)
	GetUserTask(ctx context.Context, tx store.Getter, userID, taskID string) (store.UserTask, error)
	UpsertUserTask(ctx context.Context, tx store.Execer, userID, taskID, taskTitle, status string) error
}

type CodeStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, code string) (store.DailyCode, error)
	HasRedeemed(ctx context.Context, tx store.Getter, userID, code string) (bool, error)
	InsertRedemption(ctx context.Context, tx store.Execer, userID, code string) error
}

type KycStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (store.KycRequest, error)
	SetStatus(ctx context.Context, tx store.Execer, userID, status string, rejectionReason *string) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID string, action store.AuditAction, entityType, entityID, data string) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

// SettlementService owns every balance mutation. Each operation runs inside a
// single serializable transaction that re-reads its guard rows, writes the new
// absolute balances, and records a notification describing the change. Balance
// pushes to connected clients happen only after the transaction commits.
type SettlementService struct {
	txRunner      db.TxRunner
	users         UserStore
	settings      SettingsStore
	notifications NotificationStore
	tasks         TaskStore
	codes         CodeStore
	kyc           KycStore
	audit         AuditStore
	hub           BalanceHub
	now           func() time.Time
}

func NewSettlementService(
	txRunner db.TxRunner,
	users UserStore,
	settings SettingsStore,
	notifications NotificationStore,
	tasks TaskStore,
	codes CodeStore,
	kyc KycStore,
	audit AuditStore,
	hub BalanceHub,
) *SettlementService {
	return &SettlementService{
		txRunner:      txRunner,
		users:         users,
		settings:      settings,
		notifications: notifications,
		tasks:         tasks,
		codes:         codes,
		kyc:           kyc,
		audit:         audit,
		hub:           hub,
		now:           time.Now,
	}
}

type CheckInResult struct {
	Reward          int64
	VerifiedBalance int64
	AdAvailable     bool
}

func (s *SettlementService) CheckIn(ctx context.Context, userID string) (CheckInResult, error) {
	var result CheckInResult
	var pushes []balancePush
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		pushes = pushes[:0]
		now := s.now().UTC()
		settings, err := s.settings.GetTx(ctx, tx)
		if err != nil {
			return err
		}
		user, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if status := cooldown.At(user.LastCheckIn, cooldown.CheckInWindow, now); !status.Ready {
			return ErrCooldownActive
		}
		newVerified := user.VerifiedBalance + settings.DailyCheckInReward
		if err := s.users.UpdateBalances(ctx, tx, userID, newVerified, user.UnverifiedBalance); err != nil {
			return err
		}
		if err := s.users.SetLastCheckIn(ctx, tx, userID, now); err != nil {
			return err
		}
		if err := s.notifications.Insert(ctx, tx, store.NotificationInput{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        store.NotificationReward,
			Title:       "Daily Check-in",
			Description: fmt.Sprintf("You earned +%s Fair for your daily check-in.", money.FormatMinor(settings.DailyCheckInReward)),
			Amount:      settings.DailyCheckInReward,
		}); err != nil {
			return err
		}
		result = CheckInResult{
			Reward:          settings.DailyCheckInReward,
			VerifiedBalance: newVerified,
			AdAvailable:     settings.AdsEnabled,
		}
		pushes = append(pushes, balancePush{userID, newVerified, user.UnverifiedBalance})
		return nil
	})
	if err != nil {
		return CheckInResult{}, err
	}
	s.broadcast(pushes)
	return result, nil
}

// ClaimAdBonus pays the ad reward at most once per check-in. The guard is the
// last_ad_bonus_at timestamp: it must be absent or older than the current
// check-in, and it is advanced inside the same transaction as the credit.
func (s *SettlementService) ClaimAdBonus(ctx context.Context, userID string) (int64, error) {
	var reward int64
	var pushes []balancePush
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		pushes = pushes[:0]
		now := s.now().UTC()
		settings, err := s.settings.GetTx(ctx, tx)
		if err != nil {
			return err
		}
		if !settings.AdsEnabled {
			return ErrAdBonusNotAvailable
		}
		user, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.LastCheckIn == nil {
			return ErrAdBonusNotAvailable
		}
		if user.LastAdBonusAt != nil && !user.LastAdBonusAt.Before(*user.LastCheckIn) {
			return ErrAdBonusNotAvailable
		}
		newVerified := user.VerifiedBalance + settings.AdReward
		if err := s.users.UpdateBalances(ctx, tx, userID, newVerified, user.UnverifiedBalance); err != nil {
			return err
		}
		if err := s.users.SetLastAdBonusAt(ctx, tx, userID, now); err != nil {
			return err
		}
		if err := s.notifications.Insert(ctx, tx, store.NotificationInput{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        store.NotificationReward,
			Title:       "Ad Reward",
			Description: fmt.Sprintf("You earned +%s Fair for watching an ad.", money.FormatMinor(settings.AdReward)),
			Amount:      settings.AdReward,
		}); err != nil {
			return err
		}
		reward = settings.AdReward
		pushes = append(pushes, balancePush{userID, newVerified, user.UnverifiedBalance})
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.broadcast(pushes)
	return reward, nil
}

func (s *SettlementService) StartMining(ctx context.Context, userID string) (time.Time, error) {
	var startedAt time.Time
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := s.now().UTC()
		user, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.MiningStartedAt != nil {
			return ErrMiningInProgress
		}
		if err := s.users.SetMiningStartedAt(ctx, tx, userID, &now); err != nil {
			return err
		}
		startedAt = now
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return startedAt, nil
}

func (s *SettlementService) ClaimMining(ctx context.Context, userID string) (int64, error) {
	var reward int64
	var pushes []balancePush
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		pushes = pushes[:0]
		now := s.now().UTC()
		settings, err := s.settings.GetTx(ctx, tx)
		if err != nil {
			return err
		}
		user, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.MiningStartedAt == nil {
			return ErrNoMiningSession
		}
		if remaining := cooldown.Remaining(user.MiningStartedAt, cooldown.MiningDuration, now); remaining > 0 {
			return ErrMiningNotReady
		}
		newVerified := user.VerifiedBalance + settings.MiningReward
		if err := s.users.UpdateBalances(ctx, tx, userID, newVerified, user.UnverifiedBalance); err != nil {
			return err
		}
		if err := s.users.SetMiningStartedAt(ctx, tx, userID, nil); err != nil {
			return err
		}
		if err := s.notifications.Insert(ctx, tx, store.NotificationInput{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        store.NotificationMining,
			Title:       "Mining Reward",
			Description: fmt.Sprintf("Your mining session paid out +%s Fair.", money.FormatMinor(settings.MiningReward)),
			Amount:      settings.MiningReward,
		}); err != nil {
			return err
		}
		reward = settings.MiningReward
		pushes = append(pushes, balancePush{userID, newVerified, user.UnverifiedBalance})
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.broadcast(pushes)
	return reward, nil
}

func (s *SettlementService) CompleteTask(ctx context.Context, userID, taskID, answer string) (int64, error) {
	var reward int64
	var pushes []balancePush
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		pushes = pushes[:0]
		task, err := s.tasks.GetForUpdate(ctx, tx, taskID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		existing, err := s.tasks.GetUserTask(ctx, tx, userID, taskID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err == nil && existing.Status == store.UserTaskCompleted {
			return ErrTaskAlreadyCompleted
		}
		if task.VerificationText != nil && strings.TrimSpace(*task.VerificationText) != "" {
			want := strings.ToLower(strings.TrimSpace(*task.VerificationText))
			got := strings.ToLower(strings.TrimSpace(answer))
			if want != got {
				return ErrVerificationMismatch
			}
		}
		user, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		newVerified := user.VerifiedBalance + task.Reward
		if err := s.users.UpdateBalances(ctx, tx, userID, newVerified, user.UnverifiedBalance); err != nil {
			return err
		}
		if err := s.tasks.UpsertUserTask(ctx, tx, userID, taskID, task.Title, store.UserTaskCompleted); err != nil {
			return err
		}
		if err := s.notifications.Insert(ctx, tx, store.NotificationInput{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        store.NotificationReward,
			Title:       "Task Completed",
			Description: fmt.Sprintf("You earned +%s Fair for completing %q.", money.FormatMinor(task.Reward), task.Title),
			Amount:      task.Reward,
		}); err != nil {
			return err
		}
		reward = task.Reward
		pushes = append(pushes, balancePush{userID, newVerified, user.UnverifiedBalance})
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.broadcast(pushes)
	return reward, nil
}

func (s *SettlementService) RedeemCode(ctx context.Context, userID, code string) (int64, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if normalized == "" {
		return 0, ErrCodeNotFound
	}
	var reward int64
	var pushes []balancePush
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		pushes = pushes[:0]
		now := s.now().UTC()
		daily, err := s.codes.GetForUpdate(ctx, tx, normalized)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCodeNotFound
		}
		if err != nil {
			return err
		}
		if now.After(daily.ValidUntil) {
			return ErrCodeExpired
		}
		redeemed, err := s.codes.HasRedeemed(ctx, tx, userID, normalized)
		if err != nil {
			return err
		}
		if redeemed {
			return ErrCodeAlreadyRedeemed
		}
		user, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		newVerified := user.VerifiedBalance + daily.RewardAmount
		if err := s.users.UpdateBalances(ctx, tx, userID, newVerified, user.UnverifiedBalance); err != nil {
			return err
		}
		if err := s.codes.InsertRedemption(ctx, tx, userID, normalized); err != nil {
			return err
		}
		if err := s.notifications.Insert(ctx, tx, store.NotificationInput{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        store.NotificationReward,
			Title:       "Code Redeemed",
			Description: fmt.Sprintf("You earned +%s Fair for redeeming the daily code.", money.FormatMinor(daily.RewardAmount)),
			Amount:      daily.RewardAmount,
		}); err != nil {
			return err
		}
		reward = daily.RewardAmount
		pushes = append(pushes, balancePush{userID, newVerified, user.UnverifiedBalance})
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.broadcast(pushes)
	return reward, nil
}

type TransferResult struct {
	Amount         int64
	Fee            int64
	SenderVerified int64
}

// Transfer debits amount plus the flat fee from the sender's verified balance,
// credits the amount to the recipient, and moves the fee into the admin fee
// wallet. Both user rows are locked in id order so concurrent transfers between
// the same pair cannot deadlock.
func (s *SettlementService) Transfer(ctx context.Context, senderID, recipientEmail string, amount int64) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	var result TransferResult
	var pushes []balancePush
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		pushes = pushes[:0]
		settings, err := s.settings.GetForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		if amount < settings.MinSendAmount {
			return ErrAmountTooLow
		}
		recipientID, err := s.users.ResolveIDByEmail(ctx, tx, recipientEmail)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRecipientNotFound
		}
		if err != nil {
			return err
		}
		if recipientID == senderID {
			return ErrSelfTransfer
		}
		sender, recipient, err := s.lockUserPair(ctx, tx, senderID, recipientID)
		if err != nil {
			return err
		}
		if sender.KycStatus != store.KycApproved {
			return ErrKycRequired
		}
		totalDebit := amount + settings.TransactionFee
		if sender.VerifiedBalance < totalDebit {
			return ErrInsufficientBalance
		}
		senderVerified := sender.VerifiedBalance - totalDebit
		recipientVerified := recipient.VerifiedBalance + amount
		if err := s.users.UpdateBalances(ctx, tx, sender.ID, senderVerified, sender.UnverifiedBalance); err != nil {
			return err
		}
		if err := s.users.UpdateBalances(ctx, tx, recipient.ID, recipientVerified, recipient.UnverifiedBalance); err != nil {
			return err
		}
		if err := s.settings.UpdateAdminWallet(ctx, tx, settings.AdminWalletBalance+settings.TransactionFee); err != nil {
			return err
		}
		if err := s.notifications.Insert(ctx, tx, store.NotificationInput{
			ID:     uuid.NewString(),
			UserID: sender.ID,
			Type:   store.NotificationSend,
			Title:  "Transfer Sent",
			Description: fmt.Sprintf("You sent %s Fair to %s (fee %s).",
				money.FormatMinor(amount), recipient.Email, money.FormatMinor(settings.TransactionFee)),
			Amount: -totalDebit,
		}); err != nil {
			return err
		}
		if err := s.notifications.Insert(ctx, tx, store.NotificationInput{
			ID:     uuid.NewString(),
			UserID: recipient.ID,
			Type:   store.NotificationReceive,
			Title:  "Transfer Received",
			Description: fmt.Sprintf("You received %s Fair from %s.",
				money.FormatMinor(amount), sender.Username),
			Amount: amount,
		}); err != nil {
			return err
		}
		result = TransferResult{
			Amount:         amount,
			Fee:            settings.TransactionFee,
			SenderVerified: senderVerified,
		}
		pushes = append(pushes,
			balancePush{sender.ID, senderVerified, sender.UnverifiedBalance},
			balancePush{recipient.ID, recipientVerified, recipient.UnverifiedBalance},
		)
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.broadcast(pushes)
	return result, nil
}

func (s *SettlementService) AdminCredit(ctx context.Context, adminID, recipientEmail string, amount int64, reason string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	var pushes []balancePush
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		pushes = pushes[:0]
		recipient, err := s.users.GetByEmailForUpdate(ctx, tx, recipientEmail)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRecipientNotFound
		}
		if err != nil {
			return err
		}
		newVerified := recipient.VerifiedBalance + amount
		if err := s.users.UpdateBalances(ctx, tx, recipient.ID, newVerified, recipient.UnverifiedBalance); err != nil {
			return err
		}
		if err := s.notifications.Insert(ctx, tx, store.NotificationInput{
			ID:          uuid.NewString(),
			UserID:      recipient.ID,
			Type:        store.NotificationBonus,
			Title:       "You Received a Bonus!",
			Description: fmt.Sprintf("You received +%s Fair: %s", money.FormatMinor(amount), reason),
			Amount:      amount,
		}); err != nil {
			return err
		}
		if err := s.audit.Log(ctx, tx, adminID, store.AuditAdminCredit, "user", recipient.ID,
			fmt.Sprintf(`{"amount":%d,"reason":%q}`, amount, reason)); err != nil {
			return err
		}
		pushes = append(pushes, balancePush{recipient.ID, newVerified, recipient.UnverifiedBalance})
		return nil
	})
	if err != nil {
		return err
	}
	s.broadcast(pushes)
	return nil
}

// WithdrawFees pays accumulated transfer fees out of the admin wallet into a
// user account. The wallet can never go negative.
func (s *SettlementService) WithdrawFees(ctx context.Context, adminID, recipientEmail string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	var pushes []balancePush
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		pushes = pushes[:0]
		settings, err := s.settings.GetForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		if settings.AdminWalletBalance < amount {
			return ErrInsufficientFeePool
		}
		recipient, err := s.users.GetByEmailForUpdate(ctx, tx, recipientEmail)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRecipientNotFound
		}
		if err != nil {
			return err
		}
		if err := s.settings.UpdateAdminWallet(ctx, tx, settings.AdminWalletBalance-amount); err != nil {
			return err
		}
		newVerified := recipient.VerifiedBalance + amount
		if err := s.users.UpdateBalances(ctx, tx, recipient.ID, newVerified, recipient.UnverifiedBalance); err != nil {
			return err
		}
		if err := s.notifications.Insert(ctx, tx, store.NotificationInput{
			ID:          uuid.NewString(),
			UserID:      recipient.ID,
			Type:        store.NotificationReceive,
			Title:       "Fee Withdrawal",
			Description: fmt.Sprintf("Collected fees of %s Fair were paid out to your account.", money.FormatMinor(amount)),
			Amount:      amount,
		}); err != nil {
			return err
		}
		if err := s.audit.Log(ctx, tx, adminID, store.AuditWithdrawFees, "user", recipient.ID,
			fmt.Sprintf(`{"amount":%d}`, amount)); err != nil {
			return err
		}
		pushes = append(pushes, balancePush{recipient.ID, newVerified, recipient.UnverifiedBalance})
		return nil
	})
	if err != nil {
		return err
	}
	s.broadcast(pushes)
	return nil
}

// ApproveKyc flips both the request row and the user's kyc_status in one
// transaction, then reclassifies the referrer's pending referral: the counter
// moves from unverified to verified and the referral reward moves with it.
func (s *SettlementService) ApproveKyc(ctx context.Context, adminID, userID string) error {
	var pushes []balancePush
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		pushes = pushes[:0]
		request, err := s.kyc.GetForUpdate(ctx, tx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoPendingRequest
		}
		if err != nil {
			return err
		}
		if request.Status != store.KycPending {
			return ErrNoPendingRequest
		}
		user, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		alreadyApproved := user.KycStatus == store.KycApproved
		if err := s.kyc.SetStatus(ctx, tx, userID, store.KycApproved, nil); err != nil {
			return err
		}
		if err := s.users.SetKycStatus(ctx, tx, userID, store.KycApproved); err != nil {
			return err
		}
		if err := s.notifications.Insert(ctx, tx, store.NotificationInput{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        store.NotificationKyc,
			Title:       "KYC Approved",
			Description: "Your identity verification was approved.",
		}); err != nil {
			return err
		}
		if user.ReferredBy != nil && !alreadyApproved {
			if err := s.settleReferral(ctx, tx, *user.ReferredBy, &pushes); err != nil {
				return err
			}
		}
		return s.audit.Log(ctx, tx, adminID, store.AuditKycApprove, "user", userID, "{}")
	})
	if err != nil {
		return err
	}
	s.broadcast(pushes)
	return nil
}

func (s *SettlementService) RejectKyc(ctx context.Context, adminID, userID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		request, err := s.kyc.GetForUpdate(ctx, tx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoPendingRequest
		}
		if err != nil {
			return err
		}
		if request.Status != store.KycPending {
			return ErrNoPendingRequest
		}
		if err := s.kyc.SetStatus(ctx, tx, userID, store.KycRejected, &reason); err != nil {
			return err
		}
		if err := s.users.SetKycStatus(ctx, tx, userID, store.KycRejected); err != nil {
			return err
		}
		if err := s.notifications.Insert(ctx, tx, store.NotificationInput{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        store.NotificationKyc,
			Title:       "KYC Rejected",
			Description: fmt.Sprintf("Your identity verification was rejected: %s", reason),
		}); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, adminID, store.AuditKycReject, "user", userID,
			fmt.Sprintf(`{"reason":%q}`, reason))
	})
}

func (s *SettlementService) settleReferral(ctx context.Context, tx *sqlx.Tx, referrerID string, pushes *[]balancePush) error {
	settings, err := s.settings.GetTx(ctx, tx)
	if err != nil {
		return err
	}
	referrer, err := s.users.GetForUpdate(ctx, tx, referrerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	unverifiedCount := referrer.UnverifiedReferrals - 1
	if unverifiedCount < 0 {
		unverifiedCount = 0
	}
	shift := settings.ReferralReward
	if shift > referrer.UnverifiedBalance {
		shift = referrer.UnverifiedBalance
	}
	newVerified := referrer.VerifiedBalance + shift
	newUnverified := referrer.UnverifiedBalance - shift
	if err := s.users.SetReferralCounts(ctx, tx, referrerID, referrer.VerifiedReferrals+1, unverifiedCount); err != nil {
		return err
	}
	if err := s.users.UpdateBalances(ctx, tx, referrerID, newVerified, newUnverified); err != nil {
		return err
	}
	if shift > 0 {
		if err := s.notifications.Insert(ctx, tx, store.NotificationInput{
			ID:          uuid.NewString(),
			UserID:      referrerID,
			Type:        store.NotificationBonus,
			Title:       "Referral Verified",
			Description: fmt.Sprintf("Your referral completed verification. +%s Fair moved to your verified balance.", money.FormatMinor(shift)),
			Amount:      shift,
		}); err != nil {
			return err
		}
	}
	*pushes = append(*pushes, balancePush{referrerID, newVerified, newUnverified})
	return nil
}

func (s *SettlementService) lockUserPair(ctx context.Context, tx *sqlx.Tx, senderID, recipientID string) (store.User, store.User, error) {
	firstID, secondID := senderID, recipientID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	first, err := s.users.GetForUpdate(ctx, tx, firstID)
	if err != nil {
		return store.User{}, store.User{}, err
	}
	second, err := s.users.GetForUpdate(ctx, tx, secondID)
	if err != nil {
		return store.User{}, store.User{}, err
	}
	if first.ID == senderID {
		return first, second, nil
	}
	return second, first, nil
}

// balancePush is a broadcast staged inside a transaction and sent only after
// commit, so a retried or aborted transaction never leaks a balance push.
type balancePush struct {
	userID     string
	verified   int64
	unverified int64
}

func (s *SettlementService) broadcast(pushes []balancePush) {
	for _, p := range pushes {
		s.hub.BroadcastBalance(p.userID, websocket.BalanceUpdate{
			VerifiedBalance:   money.FormatMinor(p.verified),
			UnverifiedBalance: money.FormatMinor(p.unverified),
		})
	}
}
