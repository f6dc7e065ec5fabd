package models

import (
	"time"
)

// User represents an authenticated account.
// IsStaff and IsSuperuser are mapped to roles by the policy package.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Username    string     `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email       string     `gorm:"size:255;index" json:"email,omitempty"`
	Password    string     `gorm:"size:255;not null" json:"-"` // bcrypt hash
	IsActive    bool       `gorm:"not null" json:"is_active"`
	IsStaff     bool       `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser bool       `gorm:"not null;default:false" json:"is_superuser"`
	LastLogin   *time.Time `json:"last_login,omitempty"`

	Profile *Profile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}
