// Package apperr defines the error taxonomy shared by services and handlers.
//
// Every error carries a Kind (stored as the oops domain) and a stable,
// upper-snake-case code (stored as the oops code) that is sent to clients
// verbatim as the response message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindCredential   Kind = "credential"
	KindToken        Kind = "token"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// CodeInternal is reported for errors that carry no code of their own.
const CodeInternal = "INTERNAL_SERVER_ERROR"

// New builds an error of the given kind with a stable code.
func New(kind Kind, code string) error {
	return oops.In(string(kind)).Code(code).Errorf("%s", strings.ToLower(code))
}

// Wrap attaches an internal code to an unexpected failure. Returns nil when err is nil.
// The new code replaces any code already carried by err; the old one is kept as
// cause_code context.
func Wrap(code string, err error) error {
	if err == nil {
		return nil
	}
	builder := oops.In(string(KindInternal)).Code(code)
	if inner, ok := oops.AsOops(err); ok {
		if innerCode := codeString(inner.Code()); innerCode != "" {
			builder = builder.With("cause_code", innerCode)
		}
	}
	return builder.Wrap(sealed{cause: err})
}

// sealed hides its cause from errors.As, so oops cannot read codes from below
// it, while errors.Is still reaches the cause.
type sealed struct {
	cause error
}

func (s sealed) Error() string { return s.cause.Error() }

func (s sealed) Is(target error) bool { return errors.Is(s.cause, target) }

// Validation, Conflict and friends are shorthands for New.
func Validation(code string) error { return New(KindValidation, code) }
func Conflict(code string) error   { return New(KindConflict, code) }
func NotFound(code string) error   { return New(KindNotFound, code) }
func Credential(code string) error { return New(KindCredential, code) }
func Token(code string) error      { return New(KindToken, code) }

// Required reports a missing field as FIELD_IS_REQUIRED.
func Required(field string) error {
	return Validation(fieldCode(field) + "_IS_REQUIRED")
}

// MinimumChars reports a value shorter than n as FIELD_MINIMUM_N_CHARACTERS.
func MinimumChars(field string, n int) error {
	return Validation(fmt.Sprintf("%s_MINIMUM_%d_CHARACTERS", fieldCode(field), n))
}

// MaximumBytes reports a value longer than n bytes as FIELD_MAXIMUM_N_BYTES.
func MaximumBytes(field string, n int) error {
	return Validation(fmt.Sprintf("%s_MAXIMUM_%d_BYTES", fieldCode(field), n))
}

func fieldCode(field string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(field), " ", "_"))
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if oopsErr, ok := oops.AsOops(err); ok {
		if domain := oopsErr.Domain(); domain != "" {
			return Kind(domain)
		}
	}
	return KindInternal
}

// CodeOf returns the stable code carried by err, or CodeInternal.
func CodeOf(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := codeString(oopsErr.Code()); code != "" {
			return code
		}
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

func codeString(code any) string {
	if code == nil {
		return ""
	}
	return fmt.Sprint(code)
}

// StatusOf maps err to an HTTP status code.
func StatusOf(err error) int {
	return Status(KindOf(err))
}

// Status maps a kind to an HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindValidation, KindCredential, KindToken:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
