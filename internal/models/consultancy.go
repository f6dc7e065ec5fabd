package models

import (
	"time"
)

// ConsultancyRequest is a client's request for expert consultancy.
// Amount is set by staff; nil until priced.
type ConsultancyRequest struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	CreatedAt              time.Time `gorm:"index" json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
	UserID                 uint      `gorm:"index;not null" json:"user_id"`
	User                   *User     `gorm:"foreignKey:UserID" json:"-"`
	ProjectName            string    `gorm:"size:200;not null" json:"project_name"`
	Organization           string    `gorm:"size:200" json:"organization,omitempty"`
	Location               string    `gorm:"size:200" json:"location,omitempty"`
	ReferenceNumber        string    `gorm:"size:120" json:"reference_number,omitempty"`
	DescriptionHTML        string    `gorm:"type:text" json:"description_html,omitempty"`
	Attachment             string    `gorm:"size:500" json:"attachment,omitempty"`
	Amount                 *float64  `gorm:"type:decimal(10,2)" json:"amount,omitempty"`
	PaymentReceipt         string    `gorm:"size:500" json:"payment_receipt,omitempty"`
	Status                 Status    `gorm:"size:20;not null;default:'requested';index" json:"status"`
	ReportVerificationCode *string   `gorm:"size:8;uniqueIndex" json:"report_verification_code,omitempty"`
}

// GetUserID implements the Ownable interface.
func (r *ConsultancyRequest) GetUserID() uint {
	return r.UserID
}
