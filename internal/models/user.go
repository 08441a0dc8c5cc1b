package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account. Gameplay itself only needs a uid and
// a display name; accounts exist so themes and sessions can be owned.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Username  string         `gorm:"uniqueIndex;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	IsAdmin   bool           `gorm:"default:false" json:"is_admin"`
}

// Session records an issued token so it can be revoked server-side.
type Session struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenID   string     `gorm:"uniqueIndex;size:64;not null" json:"token_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}
