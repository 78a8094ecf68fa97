package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"fairchain/internal/middleware"
	"fairchain/internal/money"
	"fairchain/internal/services"
)

type transferRequest struct {
	ToEmail string `json:"to_email"`
	Amount  string `json:"amount"`
	Confirm bool   `json:"confirm"`
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !req.Confirm {
		respondError(w, http.StatusBadRequest, "confirmation_required")
		return
	}
	if req.ToEmail == "" {
		respondError(w, http.StatusBadRequest, "to_email is required")
		return
	}
	amountMinor, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	result, err := h.service.Transfer(r.Context(), userID, req.ToEmail, amountMinor)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrKycRequired):
			respondError(w, http.StatusForbidden, "kyc_required")
		case errors.Is(err, services.ErrAmountTooLow):
			respondError(w, http.StatusBadRequest, "amount_below_minimum")
		case errors.Is(err, services.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, "invalid_amount")
		case errors.Is(err, services.ErrInsufficientBalance):
			respondError(w, http.StatusBadRequest, "insufficient_balance")
		case errors.Is(err, services.ErrRecipientNotFound):
			respondError(w, http.StatusNotFound, "recipient_not_found")
		case errors.Is(err, services.ErrSelfTransfer):
			respondError(w, http.StatusBadRequest, "self_transfer")
		default:
			respondError(w, http.StatusInternalServerError, "transfer_failed")
		}
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"amount":           money.FormatMinor(result.Amount),
		"fee":              money.FormatMinor(result.Fee),
		"verified_balance": money.FormatMinor(result.SenderVerified),
	})
}
