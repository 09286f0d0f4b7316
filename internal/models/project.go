package models

// Project is a team. Its memberships live in project_memberships.
type Project struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"size:200;not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Status      ProjectStatus `gorm:"size:20;not null;default:active;index" json:"status"`
	StartDate   *int64        `json:"start_date"`
	EndDate     *int64        `json:"end_date"`
	CreatedBy   *uint         `json:"created_by"`
	CreatedAt   int64         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   int64         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   *int64        `gorm:"index" json:"-"`
}

func (Project) TableName() string { return "projects" }
