package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/waffice/backend/internal/models"
	"gorm.io/gorm"
)

// AuditLog appends history records inside the caller's transaction. It
// has no update or delete path.
type AuditLog struct {
	now func() time.Time
}

func NewAuditLog(now func() time.Time) *AuditLog {
	if now == nil {
		now = time.Now
	}
	return &AuditLog{now: now}
}

// Append validates payload and writes one record about subjectID.
// actorID is nil for system actions.
func (a *AuditLog) Append(tx *gorm.DB, subjectID uint, actorID *uint, payload HistoryPayload) (*models.HistoryRecord, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrMalformedPayload)
	}
	if err := payload.validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	rec := &models.HistoryRecord{
		UserID:      subjectID,
		ActorID:     actorID,
		Action:      payload.Action(),
		PayloadJSON: string(body),
		Payload:     body,
		CreatedAt:   a.now().Unix(),
	}
	if err := tx.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("append %s history: %w", rec.Action, err)
	}
	return rec, nil
}

// ListByUser returns userID's records newest first.
func (a *AuditLog) ListByUser(tx *gorm.DB, userID uint, q PageQuery) (Page[models.HistoryRecord], error) {
	query := tx.Model(&models.HistoryRecord{}).Where("user_id = ?", userID)
	return paginate(query, q, func(h models.HistoryRecord) (int64, uint) { return h.CreatedAt, h.ID })
}
