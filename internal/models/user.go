package models

import "gorm.io/gorm"

// User is a member of the organization. ExternalID is the OAuth subject
// and stays nil until the account is linked.
type User struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	ExternalID    *string       `gorm:"uniqueIndex;size:255" json:"-"`
	Email         string        `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name          string        `gorm:"size:100;not null" json:"name"`
	Qualification Qualification `gorm:"size:20;not null;default:pending;index" json:"qualification"`
	IsAdmin       bool          `gorm:"not null;default:false" json:"is_admin"`
	Phone         string        `gorm:"size:32" json:"phone"`
	Major         string        `gorm:"size:128" json:"major"`
	Generation    string        `gorm:"size:32" json:"generation"`
	Bio           string        `gorm:"type:text" json:"bio"`
	GithubHandle  string        `gorm:"size:255" json:"github"`
	AvatarKey     string        `gorm:"size:500" json:"avatar_key"`
	Links         []UserLink    `gorm:"foreignKey:UserID" json:"links"`
	CreatedAt     int64         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     int64         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     *int64        `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

// UserLink is one external profile link shown on a user's page.
type UserLink struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	UserID  uint   `gorm:"index;not null" json:"-"`
	Kind    string `gorm:"size:64;not null" json:"kind"`
	Label   string `gorm:"size:128" json:"label"`
	URL     string `gorm:"size:1024;not null" json:"url"`
	Visible bool   `gorm:"not null;default:true" json:"visible"`
	Ord     int    `gorm:"not null;default:0" json:"ord"`
}

func (UserLink) TableName() string { return "user_links" }

// Live restricts a query to rows without a tombstone.
func Live(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NULL")
}
