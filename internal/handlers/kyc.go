package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"fairchain/internal/middleware"
	"fairchain/internal/store"
	"fairchain/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const maxKycUploadBytes = 10 << 20

var kycDocumentFields = []string{"id_front", "id_back", "selfie"}

// SubmitKyc accepts a multipart form with the applicant's details and three
// document images. Documents are uploaded to object storage first; the request
// row and the user's kyc_status flip to pending in one transaction afterwards,
// so a failed upload never leaves a half-submitted request.
func (h *Handler) SubmitKyc(w http.ResponseWriter, r *http.Request) {
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
	if user.KycStatus == store.KycApproved {
		respondError(w, http.StatusConflict, "already_approved")
		return
	}
	if err := r.ParseMultipartForm(maxKycUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	fullName := r.FormValue("full_name")
	country := r.FormValue("country")
	if err := validator.ValidateFullName(fullName); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if country == "" {
		respondError(w, http.StatusBadRequest, "country is required")
		return
	}
	urls := make(map[string]string, len(kycDocumentFields))
	for _, field := range kycDocumentFields {
		file, header, err := r.FormFile(field)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("%s file is required", field))
			return
		}
		url, err := h.uploadKycDocument(r, userID, field, file, header)
		file.Close()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "document upload failed")
			return
		}
		urls[field] = url
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.kyc.Upsert(r.Context(), tx, store.KycRequestInput{
			UserID:     userID,
			Email:      user.Email,
			FullName:   fullName,
			Country:    country,
			IDFrontURL: urls["id_front"],
			IDBackURL:  urls["id_back"],
			SelfieURL:  urls["selfie"],
		}); err != nil {
			return err
		}
		return h.users.SetKycStatus(r.Context(), tx, userID, store.KycPending)
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "kyc submission failed")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": store.KycPending})
}

func (h *Handler) uploadKycDocument(r *http.Request, userID, field string, file multipart.File, header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	path := fmt.Sprintf("kyc/%s/%s-%s%s", userID, field, uuid.NewString(), filepath.Ext(header.Filename))
	return h.uploader.Upload(r.Context(), path, contentType, file)
}

func (h *Handler) KycStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	request, err := h.kyc.GetByUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSON(w, http.StatusOK, map[string]string{"status": store.KycNone})
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load kyc status")
		return
	}
	payload := map[string]any{
		"status":       request.Status,
		"submitted_at": request.SubmittedAt,
	}
	if request.RejectionReason != nil {
		payload["rejection_reason"] = *request.RejectionReason
	}
	respondJSON(w, http.StatusOK, payload)
}
