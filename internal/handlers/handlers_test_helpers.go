package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fairchain/internal/auth"
	"fairchain/internal/config"
	"fairchain/internal/middleware"
	"fairchain/internal/services"
	"fairchain/internal/store"
	"fairchain/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn            func(ctx context.Context, tx store.Execer, input store.UserInput) error
	getByIDFn           func(ctx context.Context, userID string) (store.User, error)
	getByEmailFn        func(ctx context.Context, email string) (store.User, error)
	getForUpdateFn      func(ctx context.Context, tx store.Getter, userID string) (store.User, error)
	updateBalancesFn    func(ctx context.Context, tx store.Execer, userID string, verified, unverified int64) error
	setReferralCountsFn func(ctx context.Context, tx store.Execer, userID string, verified, unverified int) error
	setKycStatusFn      func(ctx context.Context, tx store.Execer, userID, status string) error
	setRoleFn           func(ctx context.Context, tx store.Execer, userID, role string) error
	markEmailVerifiedFn func(ctx context.Context, token string) (int64, error)
	listAllFn           func(ctx context.Context) ([]store.User, error)
	totalsFn            func(ctx context.Context) (store.BalanceTotals, error)
	isAdminFn           func(ctx context.Context, userID string) (bool, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, input store.UserInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (store.User, error) {
	if s.getByIDFn == nil {
		return store.User{ID: userID}, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (store.User, error) {
	if s.getByEmailFn == nil {
		return store.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetForUpdate(ctx context.Context, tx store.Getter, userID string) (store.User, error) {
	if s.getForUpdateFn == nil {
		return store.User{ID: userID}, nil
	}
	return s.getForUpdateFn(ctx, tx, userID)
}

func (s stubUserStore) UpdateBalances(ctx context.Context, tx store.Execer, userID string, verified, unverified int64) error {
	if s.updateBalancesFn == nil {
		return nil
	}
	return s.updateBalancesFn(ctx, tx, userID, verified, unverified)
}

func (s stubUserStore) SetReferralCounts(ctx context.Context, tx store.Execer, userID string, verified, unverified int) error {
	if s.setReferralCountsFn == nil {
		return nil
	}
	return s.setReferralCountsFn(ctx, tx, userID, verified, unverified)
}

func (s stubUserStore) SetKycStatus(ctx context.Context, tx store.Execer, userID, status string) error {
	if s.setKycStatusFn == nil {
		return nil
	}
	return s.setKycStatusFn(ctx, tx, userID, status)
}

func (s stubUserStore) SetRole(ctx context.Context, tx store.Execer, userID, role string) error {
	if s.setRoleFn == nil {
		return nil
	}
	return s.setRoleFn(ctx, tx, userID, role)
}

func (s stubUserStore) MarkEmailVerified(ctx context.Context, token string) (int64, error) {
	if s.markEmailVerifiedFn == nil {
		return 1, nil
	}
	return s.markEmailVerifiedFn(ctx, token)
}

func (s stubUserStore) ListAll(ctx context.Context) ([]store.User, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx)
}

func (s stubUserStore) Totals(ctx context.Context) (store.BalanceTotals, error) {
	if s.totalsFn == nil {
		return store.BalanceTotals{}, nil
	}
	return s.totalsFn(ctx)
}

func (s stubUserStore) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if s.isAdminFn == nil {
		return false, nil
	}
	return s.isAdminFn(ctx, userID)
}

type stubNotificationStore struct {
	insertFn      func(ctx context.Context, tx store.Execer, input store.NotificationInput) error
	listByUserFn  func(ctx context.Context, userID string, limit, offset int) ([]store.Notification, error)
	countUnreadFn func(ctx context.Context, userID string) (int, error)
	markAllReadFn func(ctx context.Context, tx store.Execer, userID string) error
}

func (s stubNotificationStore) Insert(ctx context.Context, tx store.Execer, input store.NotificationInput) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, tx, input)
}

func (s stubNotificationStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]store.Notification, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit, offset)
}

func (s stubNotificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	if s.countUnreadFn == nil {
		return 0, nil
	}
	return s.countUnreadFn(ctx, userID)
}

func (s stubNotificationStore) MarkAllRead(ctx context.Context, tx store.Execer, userID string) error {
	if s.markAllReadFn == nil {
		return nil
	}
	return s.markAllReadFn(ctx, tx, userID)
}

type stubTaskStore struct {
	createFn        func(ctx context.Context, tx store.Execer, id, title string, reward int64, url, verificationText *string) error
	updateFn        func(ctx context.Context, tx store.Execer, taskID, title string, reward int64, url, verificationText *string) (int64, error)
	deleteFn        func(ctx context.Context, tx store.Execer, taskID string) (int64, error)
	listFn          func(ctx context.Context) ([]store.Task, error)
	listUserTasksFn func(ctx context.Context, userID string) ([]store.UserTask, error)
}

func (s stubTaskStore) Create(ctx context.Context, tx store.Execer, id, title string, reward int64, url, verificationText *string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, title, reward, url, verificationText)
}

func (s stubTaskStore) Update(ctx context.Context, tx store.Execer, taskID, title string, reward int64, url, verificationText *string) (int64, error) {
	if s.updateFn == nil {
		return 1, nil
	}
	return s.updateFn(ctx, tx, taskID, title, reward, url, verificationText)
}

func (s stubTaskStore) Delete(ctx context.Context, tx store.Execer, taskID string) (int64, error) {
	if s.deleteFn == nil {
		return 1, nil
	}
	return s.deleteFn(ctx, tx, taskID)
}

func (s stubTaskStore) List(ctx context.Context) ([]store.Task, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

func (s stubTaskStore) ListUserTasks(ctx context.Context, userID string) ([]store.UserTask, error) {
	if s.listUserTasksFn == nil {
		return nil, nil
	}
	return s.listUserTasksFn(ctx, userID)
}

type stubCodeStore struct {
	upsertFn func(ctx context.Context, tx store.Execer, code string, rewardAmount int64, validUntil time.Time) error
	deleteFn func(ctx context.Context, tx store.Execer, code string) (int64, error)
	listFn   func(ctx context.Context) ([]store.DailyCode, error)
}

func (s stubCodeStore) Upsert(ctx context.Context, tx store.Execer, code string, rewardAmount int64, validUntil time.Time) error {
	if s.upsertFn == nil {
		return nil
	}
	return s.upsertFn(ctx, tx, code, rewardAmount, validUntil)
}

func (s stubCodeStore) Delete(ctx context.Context, tx store.Execer, code string) (int64, error) {
	if s.deleteFn == nil {
		return 1, nil
	}
	return s.deleteFn(ctx, tx, code)
}

func (s stubCodeStore) List(ctx context.Context) ([]store.DailyCode, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

type stubSettingsStore struct {
	getFn                func(ctx context.Context) (store.Settings, error)
	getTxFn              func(ctx context.Context, tx store.Getter) (store.Settings, error)
	updateFn             func(ctx context.Context, tx store.Execer, input store.SettingsInput) error
	setMaintenanceFn     func(ctx context.Context, tx store.Execer, enabled bool) error
	maintenanceEnabledFn func(ctx context.Context) (bool, error)
}

func (s stubSettingsStore) Get(ctx context.Context) (store.Settings, error) {
	if s.getFn == nil {
		return store.Settings{}, nil
	}
	return s.getFn(ctx)
}

func (s stubSettingsStore) GetTx(ctx context.Context, tx store.Getter) (store.Settings, error) {
	if s.getTxFn == nil {
		return store.Settings{}, nil
	}
	return s.getTxFn(ctx, tx)
}

func (s stubSettingsStore) Update(ctx context.Context, tx store.Execer, input store.SettingsInput) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, tx, input)
}

func (s stubSettingsStore) SetMaintenanceMode(ctx context.Context, tx store.Execer, enabled bool) error {
	if s.setMaintenanceFn == nil {
		return nil
	}
	return s.setMaintenanceFn(ctx, tx, enabled)
}

func (s stubSettingsStore) MaintenanceEnabled(ctx context.Context) (bool, error) {
	if s.maintenanceEnabledFn == nil {
		return false, nil
	}
	return s.maintenanceEnabledFn(ctx)
}

type stubKycStore struct {
	upsertFn      func(ctx context.Context, tx store.Execer, input store.KycRequestInput) error
	getByUserFn   func(ctx context.Context, userID string) (store.KycRequest, error)
	listPendingFn func(ctx context.Context) ([]store.KycRequest, error)
}

func (s stubKycStore) Upsert(ctx context.Context, tx store.Execer, input store.KycRequestInput) error {
	if s.upsertFn == nil {
		return nil
	}
	return s.upsertFn(ctx, tx, input)
}

func (s stubKycStore) GetByUser(ctx context.Context, userID string) (store.KycRequest, error) {
	if s.getByUserFn == nil {
		return store.KycRequest{}, nil
	}
	return s.getByUserFn(ctx, userID)
}

func (s stubKycStore) ListPending(ctx context.Context) ([]store.KycRequest, error) {
	if s.listPendingFn == nil {
		return nil, nil
	}
	return s.listPendingFn(ctx)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID string, action store.AuditAction, entityType, entityID, data string) error
	listFn func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID string, action store.AuditAction, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubService struct {
	checkInFn      func(ctx context.Context, userID string) (services.CheckInResult, error)
	claimAdBonusFn func(ctx context.Context, userID string) (int64, error)
	startMiningFn  func(ctx context.Context, userID string) (time.Time, error)
	claimMiningFn  func(ctx context.Context, userID string) (int64, error)
	completeTaskFn func(ctx context.Context, userID, taskID, answer string) (int64, error)
	redeemCodeFn   func(ctx context.Context, userID, code string) (int64, error)
	transferFn     func(ctx context.Context, senderID, recipientEmail string, amount int64) (services.TransferResult, error)
	adminCreditFn  func(ctx context.Context, adminID, recipientEmail string, amount int64, reason string) error
	withdrawFeesFn func(ctx context.Context, adminID, recipientEmail string, amount int64) error
	approveKycFn   func(ctx context.Context, adminID, userID string) error
	rejectKycFn    func(ctx context.Context, adminID, userID, reason string) error
}

func (s stubService) CheckIn(ctx context.Context, userID string) (services.CheckInResult, error) {
	if s.checkInFn == nil {
		return services.CheckInResult{}, nil
	}
	return s.checkInFn(ctx, userID)
}

func (s stubService) ClaimAdBonus(ctx context.Context, userID string) (int64, error) {
	if s.claimAdBonusFn == nil {
		return 0, nil
	}
	return s.claimAdBonusFn(ctx, userID)
}

func (s stubService) StartMining(ctx context.Context, userID string) (time.Time, error) {
	if s.startMiningFn == nil {
		return time.Time{}, nil
	}
	return s.startMiningFn(ctx, userID)
}

func (s stubService) ClaimMining(ctx context.Context, userID string) (int64, error) {
	if s.claimMiningFn == nil {
		return 0, nil
	}
	return s.claimMiningFn(ctx, userID)
}

func (s stubService) CompleteTask(ctx context.Context, userID, taskID, answer string) (int64, error) {
	if s.completeTaskFn == nil {
		return 0, nil
	}
	return s.completeTaskFn(ctx, userID, taskID, answer)
}

func (s stubService) RedeemCode(ctx context.Context, userID, code string) (int64, error) {
	if s.redeemCodeFn == nil {
		return 0, nil
	}
	return s.redeemCodeFn(ctx, userID, code)
}

func (s stubService) Transfer(ctx context.Context, senderID, recipientEmail string, amount int64) (services.TransferResult, error) {
	if s.transferFn == nil {
		return services.TransferResult{}, nil
	}
	return s.transferFn(ctx, senderID, recipientEmail, amount)
}

func (s stubService) AdminCredit(ctx context.Context, adminID, recipientEmail string, amount int64, reason string) error {
	if s.adminCreditFn == nil {
		return nil
	}
	return s.adminCreditFn(ctx, adminID, recipientEmail, amount, reason)
}

func (s stubService) WithdrawFees(ctx context.Context, adminID, recipientEmail string, amount int64) error {
	if s.withdrawFeesFn == nil {
		return nil
	}
	return s.withdrawFeesFn(ctx, adminID, recipientEmail, amount)
}

func (s stubService) ApproveKyc(ctx context.Context, adminID, userID string) error {
	if s.approveKycFn == nil {
		return nil
	}
	return s.approveKycFn(ctx, adminID, userID)
}

func (s stubService) RejectKyc(ctx context.Context, adminID, userID, reason string) error {
	if s.rejectKycFn == nil {
		return nil
	}
	return s.rejectKycFn(ctx, adminID, userID, reason)
}

type uploadRecord struct {
	path        string
	contentType string
}

type stubUploader struct {
	uploads  []uploadRecord
	uploadFn func(ctx context.Context, path, contentType string, body io.Reader) (string, error)
}

func (s *stubUploader) Upload(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	s.uploads = append(s.uploads, uploadRecord{path: path, contentType: contentType})
	if s.uploadFn != nil {
		return s.uploadFn(ctx, path, contentType, body)
	}
	return "https://storage.example.com/" + path, nil
}

type testDeps struct {
	txRunner      fakeTxRunner
	users         stubUserStore
	notifications stubNotificationStore
	tasks         stubTaskStore
	codes         stubCodeStore
	settings      stubSettingsStore
	kyc           stubKycStore
	audit         stubAuditStore
	service       stubService
	uploader      *stubUploader
}

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	uploader := deps.uploader
	if uploader == nil {
		uploader = &stubUploader{}
	}
	return New(deps.txRunner, cfg, deps.users, deps.notifications, deps.tasks, deps.codes,
		deps.settings, deps.kyc, deps.audit, deps.service, uploader, websocket.NewHub())
}

func authedRequest(t *testing.T, method, target string, body io.Reader, userID string) *http.Request {
	t.Helper()
	token, err := auth.GenerateToken("secret", userID, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serveAuthed(t *testing.T, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(handler).ServeHTTP(rr, req)
	return rr
}

func stringPtr(value string) *string {
	return &value
}
