package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// HistoryRecord is an immutable audit entry about one user. ActorID is
// nil when the system performed the action.
type HistoryRecord struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index:idx_history_user_created,priority:1" json:"user_id"`
	ActorID     *uint           `json:"actor_id"`
	Action      HistoryAction   `gorm:"size:40;not null" json:"action"`
	PayloadJSON string          `gorm:"column:payload;type:text;not null" json:"-"`
	Payload     json.RawMessage `gorm:"-" json:"payload"`
	CreatedAt   int64           `gorm:"autoCreateTime;index:idx_history_user_created,priority:2" json:"created_at"`
}

func (HistoryRecord) TableName() string { return "history_records" }

func (h *HistoryRecord) AfterFind(*gorm.DB) error {
	h.Payload = json.RawMessage(h.PayloadJSON)
	return nil
}
