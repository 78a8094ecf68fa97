package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"fairchain/internal/auth"
	"fairchain/internal/middleware"
	"fairchain/internal/money"
	"fairchain/internal/services"
	"fairchain/internal/store"
	"fairchain/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load users")
		return
	}
	normalized := make([]map[string]any, 0, len(users))
	for _, user := range users {
		normalized = append(normalized, userProfile(user))
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	totals, err := h.users.Totals(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load stats")
		return
	}
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load settings")
		return
	}
	verified := decimal.NewFromInt(totals.Verified).Shift(-2)
	unverified := decimal.NewFromInt(totals.Unverified).Shift(-2)
	respondJSON(w, http.StatusOK, map[string]any{
		"total_users":        totals.Users,
		"verified_supply":    verified.StringFixed(2),
		"unverified_supply":  unverified.StringFixed(2),
		"circulating_supply": verified.Add(unverified).StringFixed(2),
		"fee_wallet":         money.FormatMinor(settings.AdminWalletBalance),
	})
}

type adminCreditRequest struct {
	Email  string `json:"email"`
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

func (h *Handler) AdminCredit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req adminCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amountMinor, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	if err := h.service.AdminCredit(r.Context(), adminID, req.Email, amountMinor, req.Reason); err != nil {
		switch {
		case errors.Is(err, services.ErrRecipientNotFound):
			respondError(w, http.StatusNotFound, "recipient_not_found")
		case errors.Is(err, services.ErrReasonRequired):
			respondError(w, http.StatusBadRequest, "reason_required")
		case errors.Is(err, services.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, "invalid_amount")
		default:
			respondError(w, http.StatusInternalServerError, "credit_failed")
		}
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "credited"})
}

type withdrawFeesRequest struct {
	Email  string `json:"email"`
	Amount string `json:"amount"`
}

func (h *Handler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req withdrawFeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amountMinor, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	if err := h.service.WithdrawFees(r.Context(), adminID, req.Email, amountMinor); err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientFeePool):
			respondError(w, http.StatusBadRequest, "insufficient_fee_pool")
		case errors.Is(err, services.ErrRecipientNotFound):
			respondError(w, http.StatusNotFound, "recipient_not_found")
		case errors.Is(err, services.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, "invalid_amount")
		default:
			respondError(w, http.StatusInternalServerError, "withdrawal_failed")
		}
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "withdrawn"})
}

func (h *Handler) AdminListKyc(w http.ResponseWriter, r *http.Request) {
	requests, err := h.kyc.ListPending(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load kyc requests")
		return
	}
	normalized := make([]map[string]any, 0, len(requests))
	for _, req := range requests {
		normalized = append(normalized, map[string]any{
			"user_id":      req.UserID,
			"email":        req.Email,
			"full_name":    req.FullName,
			"country":      req.Country,
			"id_front_url": req.IDFrontURL,
			"id_back_url":  req.IDBackURL,
			"selfie_url":   req.SelfieURL,
			"submitted_at": req.SubmittedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) ApproveKyc(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID := chi.URLParam(r, "id")
	if err := h.service.ApproveKyc(r.Context(), adminID, userID); err != nil {
		if errors.Is(err, services.ErrNoPendingRequest) {
			respondError(w, http.StatusNotFound, "no_pending_request")
			return
		}
		respondError(w, http.StatusInternalServerError, "approval_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": store.KycApproved})
}

type rejectKycRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RejectKyc(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID := chi.URLParam(r, "id")
	var req rejectKycRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.service.RejectKyc(r.Context(), adminID, userID, req.Reason); err != nil {
		switch {
		case errors.Is(err, services.ErrNoPendingRequest):
			respondError(w, http.StatusNotFound, "no_pending_request")
		case errors.Is(err, services.ErrReasonRequired):
			respondError(w, http.StatusBadRequest, "reason_required")
		default:
			respondError(w, http.StatusInternalServerError, "rejection_failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": store.KycRejected})
}

type createTaskRequest struct {
	Title            string  `json:"title"`
	Reward           string  `json:"reward"`
	URL              *string `json:"url"`
	VerificationText *string `json:"verification_text"`
}

func (h *Handler) AdminCreateTask(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	rewardMinor, err := parseAmountMinor(req.Reward)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	taskID := uuid.NewString()
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.tasks.Create(r.Context(), tx, taskID, req.Title, rewardMinor, req.URL, req.VerificationText); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, adminID, store.AuditTaskCreate, "task", taskID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create task")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": taskID})
}

func (h *Handler) AdminUpdateTask(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	taskID := chi.URLParam(r, "id")
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	rewardMinor, err := parseAmountMinor(req.Reward)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	var updated int64
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		rows, err := h.tasks.Update(r.Context(), tx, taskID, req.Title, rewardMinor, req.URL, req.VerificationText)
		if err != nil {
			return err
		}
		updated = rows
		if rows == 0 {
			return nil
		}
		return h.audit.Log(r.Context(), tx, adminID, store.AuditTaskUpdate, "task", taskID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update task")
		return
	}
	if updated == 0 {
		respondError(w, http.StatusNotFound, "task_not_found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": taskID})
}

func (h *Handler) AdminDeleteTask(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	taskID := chi.URLParam(r, "id")
	var deleted int64
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		rows, err := h.tasks.Delete(r.Context(), tx, taskID)
		if err != nil {
			return err
		}
		deleted = rows
		if rows == 0 {
			return nil
		}
		return h.audit.Log(r.Context(), tx, adminID, store.AuditTaskDelete, "task", taskID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete task")
		return
	}
	if deleted == 0 {
		respondError(w, http.StatusNotFound, "task_not_found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) AdminListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.codes.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load codes")
		return
	}
	normalized := make([]map[string]any, 0, len(codes))
	for _, code := range codes {
		normalized = append(normalized, map[string]any{
			"code":        code.Code,
			"reward":      money.FormatMinor(code.RewardAmount),
			"valid_until": code.ValidUntil,
			"created_at":  code.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

type upsertCodeRequest struct {
	Code       string `json:"code"`
	Reward     string `json:"reward"`
	ValidUntil string `json:"valid_until"`
}

func (h *Handler) AdminUpsertCode(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req upsertCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	code := strings.ToLower(strings.TrimSpace(req.Code))
	if code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}
	rewardMinor, err := parseAmountMinor(req.Reward)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	validUntil, err := parseDeadline(req.ValidUntil)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_valid_until")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.codes.Upsert(r.Context(), tx, code, rewardMinor, validUntil); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, adminID, store.AuditCodeUpsert, "daily_code", code, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to save code")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"code": code})
}

func (h *Handler) AdminDeleteCode(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	code := strings.ToLower(chi.URLParam(r, "code"))
	var deleted int64
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		rows, err := h.codes.Delete(r.Context(), tx, code)
		if err != nil {
			return err
		}
		deleted = rows
		if rows == 0 {
			return nil
		}
		return h.audit.Log(r.Context(), tx, adminID, store.AuditCodeDelete, "daily_code", code, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete code")
		return
	}
	if deleted == 0 {
		respondError(w, http.StatusNotFound, "code_not_found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func settingsPayload(settings store.Settings) map[string]any {
	return map[string]any{
		"daily_check_in_reward": money.FormatMinor(settings.DailyCheckInReward),
		"mining_reward":         money.FormatMinor(settings.MiningReward),
		"ad_reward":             money.FormatMinor(settings.AdReward),
		"referral_reward":       money.FormatMinor(settings.ReferralReward),
		"transaction_fee":       money.FormatMinor(settings.TransactionFee),
		"min_send_amount":       money.FormatMinor(settings.MinSendAmount),
		"admin_wallet_balance":  money.FormatMinor(settings.AdminWalletBalance),
		"ads_enabled":           settings.AdsEnabled,
		"maintenance_mode":      settings.MaintenanceModeEnabled,
	}
}

func (h *Handler) AdminGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load settings")
		return
	}
	respondJSON(w, http.StatusOK, settingsPayload(settings))
}

type updateSettingsRequest struct {
	DailyCheckInReward string `json:"daily_check_in_reward"`
	MiningReward       string `json:"mining_reward"`
	AdReward           string `json:"ad_reward"`
	ReferralReward     string `json:"referral_reward"`
	TransactionFee     string `json:"transaction_fee"`
	MinSendAmount      string `json:"min_send_amount"`
	AdsEnabled         bool   `json:"ads_enabled"`
}

func (h *Handler) AdminUpdateSettings(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	input := store.SettingsInput{AdsEnabled: req.AdsEnabled}
	fields := []struct {
		raw  string
		dest *int64
	}{
		{req.DailyCheckInReward, &input.DailyCheckInReward},
		{req.MiningReward, &input.MiningReward},
		{req.AdReward, &input.AdReward},
		{req.ReferralReward, &input.ReferralReward},
		{req.TransactionFee, &input.TransactionFee},
		{req.MinSendAmount, &input.MinSendAmount},
	}
	for _, field := range fields {
		value, err := parseAmountMinor(field.raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		*field.dest = value
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.settings.Update(r.Context(), tx, input); err != nil {
			return err
		}
		data, _ := json.Marshal(req)
		return h.audit.Log(r.Context(), tx, adminID, store.AuditSettingsUpdate, "app_settings", "1", string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update settings")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type maintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) AdminSetMaintenance(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req maintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.settings.SetMaintenanceMode(r.Context(), tx, req.Enabled); err != nil {
			return err
		}
		data, _ := json.Marshal(req)
		return h.audit.Log(r.Context(), tx, adminID, store.AuditMaintenanceToggle, "app_settings", "1", string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to toggle maintenance")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"maintenance_mode": req.Enabled})
}

type setRoleRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) AdminSetRole(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Role != "admin" && req.Role != "user" {
		respondError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	target, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		respondError(w, http.StatusNotFound, "user_not_found")
		return
	}
	if target.ID == adminID && req.Role != "admin" {
		respondError(w, http.StatusBadRequest, "cannot_demote_self")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.users.SetRole(r.Context(), tx, target.ID, req.Role); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"role": req.Role})
		return h.audit.Log(r.Context(), tx, adminID, store.AuditRoleChange, "user", target.ID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to change role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := parseInt(query.Get("page"), 1)
	limit := parseLimit(query.Get("limit"), 50, 200)
	offset := (page - 1) * limit
	logs, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
