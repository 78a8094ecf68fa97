package handlers

import (
	"net/http"

	"fairchain/internal/middleware"
	"fairchain/internal/money"

	"github.com/jmoiron/sqlx"
)

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	page := parseInt(query.Get("page"), 1)
	limit := parseLimit(query.Get("limit"), 20, 100)
	offset := (page - 1) * limit
	notifications, err := h.notifications.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load notifications")
		return
	}
	unread, err := h.notifications.CountUnread(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load notifications")
		return
	}
	normalized := make([]map[string]any, 0, len(notifications))
	for _, n := range notifications {
		normalized = append(normalized, map[string]any{
			"id":          n.ID,
			"type":        n.Type,
			"title":       n.Title,
			"description": n.Description,
			"amount":      money.FormatMinor(n.Amount),
			"is_read":     n.IsRead,
			"created_at":  n.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"notifications": normalized,
		"unread_count":  unread,
	})
}

func (h *Handler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.notifications.MarkAllRead(r.Context(), tx, userID)
	}); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update notifications")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
