package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/db"
	"github.com/diewo77/labdesk/internal/models"
	"github.com/diewo77/labdesk/internal/policy"
	"github.com/diewo77/labdesk/internal/validation"
)

// verificationLockKey serializes report deliveries across both tables on postgres.
const verificationLockKey int64 = 0x6c616264657376

// StatusChange is a staff request to move a record to another status.
type StatusChange struct {
	Status string
	Code   string // required for report-delivered
	Amount string // consultancy only, optional
}

// StatusOutcome is the result of a status change. Warnings hold problems
// that did not block the change (an unparseable amount).
type StatusOutcome[T any] struct {
	Record   *T
	Warnings []error
}

// WorkflowService owns status transitions and verification code issuance.
type WorkflowService struct {
	db     *gorm.DB
	access policy.Access
	obs    Observer
}

func NewWorkflowService(gdb *gorm.DB, obs Observer) *WorkflowService {
	return &WorkflowService{db: gdb, obs: orNop(obs)}
}

// SetLabStatus changes the status of a lab test request.
func (s *WorkflowService) SetLabStatus(ctx context.Context, actor policy.Actor, id uint, change StatusChange) (*StatusOutcome[models.LabTestRequest], error) {
	if !s.access.CanMutateStatus(actor) {
		s.record(models.FamilyLab, change.Status, ErrForbidden)
		return nil, ErrForbidden
	}
	var req models.LabTestRequest
	if err := s.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, notFound(err, "lab request")
	}
	err := s.transition(ctx, models.FamilyLab, &req, id, change)
	s.record(models.FamilyLab, change.Status, err)
	if reloadErr := s.db.WithContext(ctx).Preload("Items").First(&req, id).Error; reloadErr != nil && err == nil {
		err = notFound(reloadErr, "lab request")
	}
	return &StatusOutcome[models.LabTestRequest]{Record: &req}, err
}

// SetConsultancyStatus changes the status of a consultancy request. A
// non-empty amount is saved before the status is validated, so it sticks
// even when the status change is rejected. An unparseable amount becomes a
// warning and does not block a valid status change.
func (s *WorkflowService) SetConsultancyStatus(ctx context.Context, actor policy.Actor, id uint, change StatusChange) (*StatusOutcome[models.ConsultancyRequest], error) {
	if !s.access.CanMutateStatus(actor) {
		s.record(models.FamilyConsultancy, change.Status, ErrForbidden)
		return nil, ErrForbidden
	}
	var req models.ConsultancyRequest
	if err := s.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, notFound(err, "consultancy request")
	}
	out := &StatusOutcome[models.ConsultancyRequest]{Record: &req}

	if raw := strings.TrimSpace(change.Amount); raw != "" {
		amount, err := ParseAmount(raw)
		if err != nil {
			out.Warnings = append(out.Warnings, err)
		} else if err := s.db.WithContext(ctx).Model(&req).Update("amount", amount).Error; err != nil {
			return nil, fmt.Errorf("save amount: %w", err)
		}
	}

	err := s.transition(ctx, models.FamilyConsultancy, &req, id, change)
	s.record(models.FamilyConsultancy, change.Status, err)
	if reloadErr := s.db.WithContext(ctx).First(&req, id).Error; reloadErr != nil && err == nil {
		err = notFound(reloadErr, "consultancy request")
	}
	return out, err
}

// transition validates the target status and writes it. For report-delivered
// the code format and cross-family uniqueness are checked and the code is
// written together with the status inside one transaction.
func (s *WorkflowService) transition(ctx context.Context, family models.Family, model any, id uint, change StatusChange) error {
	status, ok := models.ParseStatus(strings.TrimSpace(change.Status))
	if !ok {
		return ErrInvalidStatus
	}
	if status != models.StatusReportDelivered {
		if err := s.db.WithContext(ctx).Model(model).Update("status", status).Error; err != nil {
			return fmt.Errorf("save status: %w", err)
		}
		return nil
	}

	code := strings.TrimSpace(change.Code)
	if !validation.IsEightDigits(code) {
		return ErrInvalidCode
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.AdvisoryLock(tx, verificationLockKey); err != nil {
			return fmt.Errorf("lock verification codes: %w", err)
		}
		taken, err := codeTaken(tx, code, family, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateCode
		}
		return tx.Model(model).Updates(map[string]any{
			"status":                   status,
			"report_verification_code": code,
		}).Error
	})
	if err != nil && !errors.Is(err, ErrDuplicateCode) && db.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

// codeTaken reports whether code is held by any record other than (family, id).
func codeTaken(tx *gorm.DB, code string, family models.Family, id uint) (bool, error) {
	var n int64
	lab := tx.Model(&models.LabTestRequest{}).Where("report_verification_code = ?", code)
	if family == models.FamilyLab {
		lab = lab.Where("id <> ?", id)
	}
	if err := lab.Count(&n).Error; err != nil {
		return false, fmt.Errorf("check lab codes: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	cons := tx.Model(&models.ConsultancyRequest{}).Where("report_verification_code = ?", code)
	if family == models.FamilyConsultancy {
		cons = cons.Where("id <> ?", id)
	}
	if err := cons.Count(&n).Error; err != nil {
		return false, fmt.Errorf("check consultancy codes: %w", err)
	}
	return n > 0, nil
}

func (s *WorkflowService) record(family models.Family, status string, err error) {
	result := "ok"
	if err != nil {
		result = Code(err)
	}
	if _, ok := models.ParseStatus(status); !ok {
		status = "invalid"
	}
	s.obs.StatusChanged(string(family), status, result)
}

var amountPattern = regexp.MustCompile(`^\d{1,8}(\.\d{1,2})?$`)

// ParseAmount parses a non-negative decimal with at most two fractional
// digits and at most ten significant digits.
func ParseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if !amountPattern.MatchString(raw) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return v, nil
}
