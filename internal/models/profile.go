package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountType distinguishes organisational accounts from individuals.
type AccountType string

const (
	AccountOrganization AccountType = "organization"
	AccountSelf         AccountType = "self"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return t == AccountOrganization || t == AccountSelf
}

// Profile holds the extended contact details of a user. Exactly one per user.
// ClientID is written on create only and never updated afterwards.
type Profile struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	UserID       uint        `gorm:"uniqueIndex;not null" json:"user_id"`
	FullName     string      `gorm:"size:150" json:"full_name"`
	AccountType  AccountType `gorm:"size:20;not null;default:'organization'" json:"account_type"`
	OrgName      string      `gorm:"size:200" json:"org_name,omitempty"`
	RoleInOrg    string      `gorm:"size:120" json:"role_in_org,omitempty"`
	Phone        string      `gorm:"size:50;index" json:"phone,omitempty"`
	Address      string      `gorm:"type:text" json:"address,omitempty"`
	City         string      `gorm:"size:120" json:"city,omitempty"`
	Country      string      `gorm:"size:120" json:"country,omitempty"`
	ProfileImage string      `gorm:"size:500" json:"profile_image,omitempty"`
	ClientID     string      `gorm:"<-:create;size:12;uniqueIndex;not null" json:"client_id"`
}

// GetUserID implements the Ownable interface.
func (p *Profile) GetUserID() uint {
	return p.UserID
}

// ClientSequence is a named counter row. Issuing an identifier increments the
// row inside the caller's transaction, so concurrent issuers serialize on it.
type ClientSequence struct {
	Name  string `gorm:"primaryKey;size:50"`
	Value int64  `gorm:"not null"`
}

const clientSequenceName = "client_id"

// ClientIDWidth is the zero-padded width of issued client identifiers.
const ClientIDWidth = 6

// FormatClientID renders n as a zero-padded client identifier.
func FormatClientID(n int64) string {
	return fmt.Sprintf("%0*d", ClientIDWidth, n)
}

// NextClientID issues the next client identifier. Call it inside the
// transaction that creates the profile.
func NextClientID(tx *gorm.DB) (string, error) {
	if err := ensureClientSequence(tx, 0); err != nil {
		return "", err
	}
	res := tx.Model(&ClientSequence{}).
		Where("name = ?", clientSequenceName).
		UpdateColumn("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return "", fmt.Errorf("advance client sequence: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return "", errors.New("client sequence row missing")
	}
	var seq ClientSequence
	if err := tx.Where("name = ?", clientSequenceName).First(&seq).Error; err != nil {
		return "", fmt.Errorf("read client sequence: %w", err)
	}
	return FormatClientID(seq.Value), nil
}

// SeedClientSequence creates the counter row starting at start when it does
// not exist yet. Existing rows are left untouched.
func SeedClientSequence(tx *gorm.DB, start int64) error {
	return ensureClientSequence(tx, start)
}

func ensureClientSequence(tx *gorm.DB, start int64) error {
	seq := ClientSequence{Name: clientSequenceName, Value: start}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return fmt.Errorf("init client sequence: %w", err)
	}
	return nil
}
