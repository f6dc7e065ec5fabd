// Package validation collects field-level violations for form input.
package validation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Violations maps a field name to an i18n message code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records code for field unless the field already has a violation.
func (v Violations) Add(field, code string) {
	if _, exists := v[field]; !exists {
		v[field] = code
	}
}

func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

// NonNegativeInt parses value as an integer >= 0.
func NonNegativeInt(field, value string, v Violations) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		v.Add(field, "invalid_price")
		return 0, false
	}
	return n, true
}

var eightDigits = regexp.MustCompile(`^\d{8}$`)

// IsEightDigits reports whether s is exactly eight ASCII digits.
func IsEightDigits(s string) bool {
	return eightDigits.MatchString(s)
}

// Password enforces the account password policy: 8+ characters with at
// least one upper case letter, one lower case letter and one digit.
func Password(field, value string, v Violations) {
	if len(value) < 8 {
		v.Add(field, "password_too_short")
		return
	}
	var upper, lower, digit bool
	for _, r := range value {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !upper:
		v.Add(field, "password_needs_upper")
	case !lower:
		v.Add(field, "password_needs_lower")
	case !digit:
		v.Add(field, "password_needs_digit")
	}
}

// LettersAndSpaces rejects anything other than letters and spaces. Empty is allowed.
func LettersAndSpaces(field, value string, v Violations) {
	for _, r := range value {
		if !unicode.IsLetter(r) && r != ' ' {
			v.Add(field, "letters_spaces_only")
			return
		}
	}
}

// MaxBytes rejects payloads larger than limit.
func MaxBytes(field string, size, limit int64, v Violations) {
	if size > limit {
		v.Add(field, "file_too_large")
	}
}

// ContentType rejects content types outside allowed.
func ContentType(field, contentType string, allowed []string, v Violations) {
	ct, _, _ := strings.Cut(contentType, ";")
	ct = strings.ToLower(strings.TrimSpace(ct))
	for _, a := range allowed {
		if ct == a {
			return
		}
	}
	v.Add(field, "unsupported_file_type")
}

// OneOf rejects values outside choices.
func OneOf(field, value string, choices []string, v Violations) {
	for _, c := range choices {
		if value == c {
			return
		}
	}
	v.Add(field, "invalid_choice")
}
