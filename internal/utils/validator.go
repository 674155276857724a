package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/example/storefront/internal/apperr"
)

const (
	// MinPasswordLength is the shortest password accepted at registration and reset.
	MinPasswordLength = 6
	// MaxPasswordBytes is the most bcrypt will hash.
	MaxPasswordBytes = 72
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,3}$`)

// IsEmail reports whether value looks like an email address.
func IsEmail(value string) bool {
	return emailPattern.MatchString(value)
}

// RequireField fails with FIELD_IS_REQUIRED when value is blank.
func RequireField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Required(field)
	}
	return nil
}

// ValidateEmail requires value and checks its format.
func ValidateEmail(field, value string) error {
	if err := RequireField(field, value); err != nil {
		return err
	}
	if !IsEmail(value) {
		return apperr.Validation("INVALID_EMAIL")
	}
	return nil
}

// ValidateMinLength requires value and checks it has at least n characters.
func ValidateMinLength(field, value string, n int) error {
	if err := RequireField(field, value); err != nil {
		return err
	}
	if utf8.RuneCountInString(value) < n {
		return apperr.MinimumChars(field, n)
	}
	return nil
}

// ValidatePassword requires value, at least MinPasswordLength characters and
// at most MaxPasswordBytes bytes.
func ValidatePassword(field, value string) error {
	if err := ValidateMinLength(field, value, MinPasswordLength); err != nil {
		return err
	}
	if len(value) > MaxPasswordBytes {
		return apperr.MaximumBytes(field, MaxPasswordBytes)
	}
	return nil
}

// FirstError returns the first non-nil error.
func FirstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
