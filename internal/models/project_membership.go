package models

import "gorm.io/gorm"

// ProjectMembership is one continuous span of a user's role on a project.
// Rows are never edited in place except to close them: a role or position
// change closes the current row and opens a new one.
//
// Slot is 1 while the row is open and NULL once closed. The unique
// index over (project_id, user_id, open_slot) therefore allows any number
// of closed rows but at most one open row per pair, on every driver.
type ProjectMembership struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	ProjectID uint       `gorm:"not null;index;uniqueIndex:idx_membership_open" json:"project_id"`
	Project   *Project   `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	UserID    uint       `gorm:"not null;index;uniqueIndex:idx_membership_open" json:"user_id"`
	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Slot      *uint8     `gorm:"column:open_slot;uniqueIndex:idx_membership_open" json:"-"`
	Role      MemberRole `gorm:"size:20;not null" json:"role"`
	Position  string     `gorm:"size:50" json:"position"`
	JoinedOn  int64      `gorm:"not null" json:"joined_on"`
	LeftOn    *int64     `gorm:"index" json:"left_on"`
	CreatedAt int64      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ProjectMembership) TableName() string { return "project_memberships" }

// IsActive reports whether the interval is still open.
func (m *ProjectMembership) IsActive() bool {
	return m.LeftOn == nil
}

// OpenSlot is the value stored in Slot for an open interval.
func OpenSlot() *uint8 {
	v := uint8(1)
	return &v
}

// ActiveMemberships restricts a query to open intervals.
func ActiveMemberships(db *gorm.DB) *gorm.DB {
	return db.Where("left_on IS NULL")
}
