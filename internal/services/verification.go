package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/models"
	"github.com/diewo77/labdesk/internal/validation"
)

// VerifyResult is the public answer to a verification lookup. Optional
// fields are pointers so that empty strings are still emitted when set.
type VerifyResult struct {
	OK              bool    `json:"ok"`
	Type            string  `json:"type,omitempty"`
	ID              uint    `json:"id,omitempty"`
	ProjectName     *string `json:"project_name,omitempty"`
	Organization    *string `json:"organization,omitempty"`
	ReferenceNumber *string `json:"reference_number,omitempty"`
	Status          string  `json:"status,omitempty"`
}

// VerificationService answers public report lookups. No authentication.
type VerificationService struct {
	db  *gorm.DB
	obs Observer
}

func NewVerificationService(db *gorm.DB, obs Observer) *VerificationService {
	return &VerificationService{db: db, obs: orNop(obs)}
}

// Verify looks the code up in lab requests first, then consultancy requests.
// Undelivered matches only reveal their type and status label.
func (s *VerificationService) Verify(ctx context.Context, code string) (VerifyResult, error) {
	code = strings.TrimSpace(code)
	if !validation.IsEightDigits(code) {
		s.obs.VerifyLookup("invalid")
		return VerifyResult{}, ErrInvalidCodeFormat
	}

	var lab models.LabTestRequest
	err := s.db.WithContext(ctx).Where("report_verification_code = ?", code).First(&lab).Error
	switch {
	case err == nil:
		if !lab.Status.IsDelivered() {
			s.obs.VerifyLookup("pending")
			return VerifyResult{Type: string(models.FamilyLab), Status: lab.Status.Label()}, nil
		}
		s.obs.VerifyLookup("delivered")
		return VerifyResult{
			OK:              true,
			Type:            string(models.FamilyLab),
			ID:              lab.ID,
			ProjectName:     &lab.ProjectName,
			ReferenceNumber: &lab.ReferenceNumber,
			Status:          lab.Status.Label(),
		}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return VerifyResult{}, fmt.Errorf("lookup lab code: %w", err)
	}

	var cons models.ConsultancyRequest
	err = s.db.WithContext(ctx).Where("report_verification_code = ?", code).First(&cons).Error
	switch {
	case err == nil:
		if !cons.Status.IsDelivered() {
			s.obs.VerifyLookup("pending")
			return VerifyResult{Type: string(models.FamilyConsultancy), Status: cons.Status.Label()}, nil
		}
		s.obs.VerifyLookup("delivered")
		return VerifyResult{
			OK:              true,
			Type:            string(models.FamilyConsultancy),
			ID:              cons.ID,
			ProjectName:     &cons.ProjectName,
			Organization:    &cons.Organization,
			ReferenceNumber: &cons.ReferenceNumber,
			Status:          cons.Status.Label(),
		}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return VerifyResult{}, fmt.Errorf("lookup consultancy code: %w", err)
	}

	s.obs.VerifyLookup("unknown")
	return VerifyResult{}, nil
}
