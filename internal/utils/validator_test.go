package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/storefront/internal/apperr"
)

func TestIsEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"a@x.com", true},
		{"first.last+tag@shop.co.id", true},
		{"no-at-sign.com", false},
		{"a@x", false},
		{"a@x.comma", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsEmail(tt.email), tt.email)
	}
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"required blank", RequireField("name", "  "), "NAME_IS_REQUIRED"},
		{"email missing", ValidateEmail("email", ""), "EMAIL_IS_REQUIRED"},
		{"email invalid", ValidateEmail("email", "nope"), "INVALID_EMAIL"},
		{"password short", ValidateMinLength("password", "abc", MinPasswordLength), "PASSWORD_MINIMUM_6_CHARACTERS"},
		{"new password missing", ValidateMinLength("new password", "", MinPasswordLength), "NEW_PASSWORD_IS_REQUIRED"},
		{"password too short", ValidatePassword("password", "abc"), "PASSWORD_MINIMUM_6_CHARACTERS"},
		{"password too long", ValidatePassword("password", strings.Repeat("p", MaxPasswordBytes+1)), "PASSWORD_MAXIMUM_72_BYTES"},
		{"multibyte password too long", ValidatePassword("new password", strings.Repeat("é", 37)), "NEW_PASSWORD_MAXIMUM_72_BYTES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, apperr.CodeOf(tt.err))
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(tt.err))
		})
	}

	assert.NoError(t, ValidateMinLength("password", "secret1", MinPasswordLength))
	assert.NoError(t, ValidatePassword("password", strings.Repeat("p", MaxPasswordBytes)))
	assert.NoError(t, ValidateEmail("email", "a@x.com"))
}

func TestFirstError(t *testing.T) {
	assert.NoError(t, FirstError(nil, nil))
	err := FirstError(nil, apperr.Required("name"), apperr.Required("email"))
	assert.Equal(t, "NAME_IS_REQUIRED", apperr.CodeOf(err))
}
