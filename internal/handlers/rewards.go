package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fairchain/internal/cooldown"
	"fairchain/internal/middleware"
	"fairchain/internal/money"
	"fairchain/internal/services"
)

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := h.service.CheckIn(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrCooldownActive) {
			respondError(w, http.StatusConflict, "checkin_cooldown_active")
			return
		}
		respondError(w, http.StatusInternalServerError, "checkin_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"reward":           money.FormatMinor(result.Reward),
		"verified_balance": money.FormatMinor(result.VerifiedBalance),
		"ad_available":     result.AdAvailable,
	})
}

func (h *Handler) CheckInStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	status := cooldown.At(user.LastCheckIn, cooldown.CheckInWindow, time.Now().UTC())
	payload := map[string]any{
		"ready":             status.Ready,
		"remaining_seconds": int64(status.Remaining.Seconds()),
	}
	if user.LastCheckIn != nil {
		payload["next_available_at"] = user.LastCheckIn.Add(cooldown.CheckInWindow)
	}
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) ClaimAdBonus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	reward, err := h.service.ClaimAdBonus(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrAdBonusNotAvailable) {
			respondError(w, http.StatusConflict, "ad_bonus_not_available")
			return
		}
		respondError(w, http.StatusInternalServerError, "ad_bonus_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"reward": money.FormatMinor(reward),
	})
}

type redeemRequest struct {
	Code string `json:"code"`
}

func (h *Handler) RedeemCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	reward, err := h.service.RedeemCode(r.Context(), userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCodeNotFound):
			respondError(w, http.StatusNotFound, "code_not_found")
		case errors.Is(err, services.ErrCodeExpired):
			respondError(w, http.StatusGone, "code_expired")
		case errors.Is(err, services.ErrCodeAlreadyRedeemed):
			respondError(w, http.StatusConflict, "code_already_redeemed")
		default:
			respondError(w, http.StatusInternalServerError, "redeem_failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"reward": money.FormatMinor(reward),
	})
}
