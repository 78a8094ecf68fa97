package store

import (
	"context"
	"fmt"
)

// AuditAction is the closed set of recorded admin and account events. Log
// rejects anything outside it so free-form strings cannot leak into the trail.
type AuditAction string

const (
	AuditRegister          AuditAction = "register"
	AuditLogin             AuditAction = "login"
	AuditAdminCredit       AuditAction = "admin_credit"
	AuditWithdrawFees      AuditAction = "withdraw_fees"
	AuditKycApprove        AuditAction = "kyc_approve"
	AuditKycReject         AuditAction = "kyc_reject"
	AuditTaskCreate        AuditAction = "task_create"
	AuditTaskUpdate        AuditAction = "task_update"
	AuditTaskDelete        AuditAction = "task_delete"
	AuditCodeUpsert        AuditAction = "code_upsert"
	AuditCodeDelete        AuditAction = "code_delete"
	AuditSettingsUpdate    AuditAction = "settings_update"
	AuditMaintenanceToggle AuditAction = "maintenance_toggle"
	AuditRoleChange        AuditAction = "role_change"
)

func (a AuditAction) Valid() bool {
	switch a {
	case AuditRegister, AuditLogin,
		AuditAdminCredit, AuditWithdrawFees,
		AuditKycApprove, AuditKycReject,
		AuditTaskCreate, AuditTaskUpdate, AuditTaskDelete,
		AuditCodeUpsert, AuditCodeDelete,
		AuditSettingsUpdate, AuditMaintenanceToggle, AuditRoleChange:
		return true
	}
	return false
}

type AuditStore struct {
	db DB
}

type auditRow struct {
	ID          string  `db:"id"`
	ActorUserID *string `db:"actor_user_id"`
	Action      string  `db:"action"`
	EntityType  string  `db:"entity_type"`
	EntityID    string  `db:"entity_id"`
	Data        string  `db:"data"`
	CreatedAt   any     `db:"created_at"`
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Log(ctx context.Context, tx Execer, actorID string, action AuditAction, entityType, entityID, data string) error {
	if !action.Valid() {
		return fmt.Errorf("unknown audit action %q", action)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_user_id, action, entity_type, entity_id, data)
		VALUES (gen_random_uuid()::text, $1, $2, $3, $4, $5)
	`, actorID, string(action), entityType, entityID, data)
	return err
}

func (s *AuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_user_id, action, entity_type, entity_id, data, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	logs := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, map[string]any{
			"id":            row.ID,
			"actor_user_id": derefStringPtr(row.ActorUserID),
			"action":        row.Action,
			"entity_type":   row.EntityType,
			"entity_id":     row.EntityID,
			"data":          row.Data,
			"created_at":    row.CreatedAt,
		})
	}
	return logs, nil
}
