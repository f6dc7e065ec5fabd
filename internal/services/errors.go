package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/validation"
)

// Sentinel errors. Their messages double as i18n codes.
var (
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrDuplicateCode      = errors.New("duplicate_code")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidCodeFormat  = errors.New("invalid_code_format")
	ErrInvalidCredentials = errors.New("invalid_credentials")
)

// ValidationError carries field-level violations of an input.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, code := range e.Violations {
		fields = append(fields, f+"="+code)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// AsViolations extracts the violations from a ValidationError.
func AsViolations(err error) (validation.Violations, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations, true
	}
	return nil, false
}

func invalid(v validation.Violations) error {
	if v.Empty() {
		return nil
	}
	return &ValidationError{Violations: v}
}

// notFound maps gorm's missing-record error to ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// Code returns the i18n code of a service error, "internal_error" otherwise.
func Code(err error) string {
	for _, s := range []error{
		ErrForbidden, ErrNotFound, ErrInvalidStatus, ErrInvalidCode, ErrDuplicateCode,
		ErrInvalidAmount, ErrInvalidPrice, ErrInvalidCodeFormat, ErrInvalidCredentials,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	if _, ok := AsViolations(err); ok {
		return "validation_failed"
	}
	return "internal_error"
}
