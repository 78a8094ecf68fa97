package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"fairchain/internal/middleware"
	"fairchain/internal/money"
	"fairchain/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tasks, err := h.tasks.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load tasks")
		return
	}
	userTasks, err := h.tasks.ListUserTasks(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load task progress")
		return
	}
	statusByTask := make(map[string]string, len(userTasks))
	for _, ut := range userTasks {
		statusByTask[ut.TaskID] = ut.Status
	}
	normalized := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		status := statusByTask[task.ID]
		if status == "" {
			status = "available"
		}
		entry := map[string]any{
			"id":     task.ID,
			"title":  task.Title,
			"reward": money.FormatMinor(task.Reward),
			"status": status,
		}
		if task.URL != nil {
			entry["url"] = *task.URL
		}
		entry["requires_verification"] = task.VerificationText != nil && *task.VerificationText != ""
		normalized = append(normalized, entry)
	}
	respondJSON(w, http.StatusOK, normalized)
}

type completeTaskRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	taskID := chi.URLParam(r, "id")
	var req completeTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	reward, err := h.service.CompleteTask(r.Context(), userID, taskID, req.Answer)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			respondError(w, http.StatusNotFound, "task_not_found")
		case errors.Is(err, services.ErrTaskAlreadyCompleted):
			respondError(w, http.StatusConflict, "task_already_completed")
		case errors.Is(err, services.ErrVerificationMismatch):
			respondError(w, http.StatusBadRequest, "verification_mismatch")
		default:
			respondError(w, http.StatusInternalServerError, "task_completion_failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"reward": money.FormatMinor(reward),
	})
}
