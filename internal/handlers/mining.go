package handlers

import (
	"errors"
	"net/http"
	"time"

	"fairchain/internal/cooldown"
	"fairchain/internal/middleware"
	"fairchain/internal/money"
	"fairchain/internal/services"
)

func (h *Handler) StartMining(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	startedAt, err := h.service.StartMining(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrMiningInProgress) {
			respondError(w, http.StatusConflict, "mining_already_started")
			return
		}
		respondError(w, http.StatusInternalServerError, "mining_start_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"started_at": startedAt,
		"ends_at":    startedAt.Add(cooldown.MiningDuration),
	})
}

func (h *Handler) ClaimMining(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	reward, err := h.service.ClaimMining(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoMiningSession):
			respondError(w, http.StatusConflict, "no_mining_session")
		case errors.Is(err, services.ErrMiningNotReady):
			respondError(w, http.StatusConflict, "mining_not_finished")
		default:
			respondError(w, http.StatusInternalServerError, "mining_claim_failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"reward": money.FormatMinor(reward),
	})
}

func (h *Handler) MiningStatus(w http.ResponseWriter, r *http.Request) {
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
	if user.MiningStartedAt == nil {
		respondJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	remaining := cooldown.Remaining(user.MiningStartedAt, cooldown.MiningDuration, time.Now().UTC())
	respondJSON(w, http.StatusOK, map[string]any{
		"active":            true,
		"started_at":        user.MiningStartedAt,
		"ends_at":           user.MiningStartedAt.Add(cooldown.MiningDuration),
		"remaining_seconds": int64(remaining.Seconds()),
		"claimable":         remaining == 0,
	})
}
