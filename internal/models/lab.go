package models

import (
	"time"
)

// LabTestRequest is a client's request for laboratory testing.
// The total price is derived from its items and never stored.
type LabTestRequest struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	CreatedAt              time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	UserID                 uint       `gorm:"index;not null" json:"user_id"`
	User                   *User      `gorm:"foreignKey:UserID" json:"-"`
	ProjectName            string     `gorm:"size:200;not null" json:"project_name"`
	ReferenceNumber        string     `gorm:"size:120" json:"reference_number,omitempty"`
	ClientName             string     `gorm:"size:200" json:"client_name,omitempty"`
	ProjectLocation        string     `gorm:"size:200" json:"project_location,omitempty"`
	DescriptionHTML        string     `gorm:"type:text" json:"description_html,omitempty"`
	SampleBy               string     `gorm:"size:120" json:"sample_by,omitempty"`
	ReceivingDate          *time.Time `gorm:"type:date" json:"receiving_date,omitempty"`
	SampleDescription      string     `gorm:"type:text" json:"sample_description,omitempty"`
	SpecDocument           string     `gorm:"size:500" json:"spec_document,omitempty"`
	PaymentReceipt         string     `gorm:"size:500" json:"payment_receipt,omitempty"`
	Status                 Status     `gorm:"size:20;not null;default:'requested';index" json:"status"`
	ReportVerificationCode *string    `gorm:"size:8;uniqueIndex" json:"report_verification_code,omitempty"`

	Items []LabTestItem `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"items"`
}

// GetUserID implements the Ownable interface.
func (r *LabTestRequest) GetUserID() uint {
	return r.UserID
}

// Total sums the item prices. Recomputed on every call.
func (r *LabTestRequest) Total() int64 {
	var total int64
	for _, it := range r.Items {
		total += it.Price
	}
	return total
}

// LabTestItem is a single requested test. Price is set by staff.
type LabTestItem struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	RequestID   uint   `gorm:"index;not null" json:"request_id"`
	Lab         string `gorm:"size:120" json:"lab"`
	Subcategory string `gorm:"size:120" json:"subcategory"`
	TestName    string `gorm:"size:200;not null" json:"test_name"`
	Price       int64  `gorm:"not null;default:0" json:"price"`

	Request *LabTestRequest `gorm:"foreignKey:RequestID" json:"-"`
}

// LabTestSummary is a list row with the SQL-derived total.
type LabTestSummary struct {
	LabTestRequest
	TotalAmount int64 `json:"total_amount"`
}
