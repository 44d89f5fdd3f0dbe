package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleStaff   UserRole = "staff"
	RoleAdmin   UserRole = "admin"
)

type User struct {
	ID          string   `json:"id" gorm:"primaryKey;size:255"`
	FullName    string   `json:"full_name" gorm:"not null;size:100"`
	Email       string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role        UserRole `json:"role" gorm:"size:20;index"`
	Institution string   `json:"institution" gorm:"index;size:100"`

	// Student-group memberships used for restricted test visibility
	Groups datatypes.JSON `json:"groups" gorm:"type:jsonb"` // []string

	// Profile info
	AvatarURL *string `json:"avatar_url" gorm:"size:500"`

	// Status
	EmailVerified bool `json:"email_verified" gorm:"default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// GroupNames decodes the JSONB group list; a missing or malformed column
// yields an empty slice rather than an error.
func (u *User) GroupNames() []string {
	return decodeStringList(u.Groups)
}
