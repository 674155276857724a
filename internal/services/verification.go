package services

import (
	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/models"
)

// VerificationState is where an account sits in the email verification flow.
type VerificationState int

const (
	Unverified VerificationState = iota
	OtpPending
	Verified
)

func (s VerificationState) String() string {
	switch s {
	case OtpPending:
		return "otp_pending"
	case Verified:
		return "verified"
	default:
		return "unverified"
	}
}

// VerificationStateOf derives the state from the stored account columns.
func VerificationStateOf(user *models.User) VerificationState {
	switch {
	case user.IsVerified:
		return Verified
	case user.VerifyOTP != "":
		return OtpPending
	default:
		return Unverified
	}
}

// CanIssueVerifyOTP rejects accounts that are already verified.
func CanIssueVerifyOTP(user *models.User) error {
	if VerificationStateOf(user) == Verified {
		return apperr.Conflict("ACCOUNT_ALREADY_VERIFIED")
	}
	return nil
}

// CheckOTP validates a submitted code against the stored one.
// Checks run in order: presence of the submission, match, then expiry.
// A consumed code is stored as "" so resubmitting it reports INVALID_OTP.
func CheckOTP(stored string, expireAt int64, submitted string, nowMillis int64) error {
	if submitted == "" {
		return apperr.Required("otp")
	}
	if stored == "" || stored != submitted {
		return apperr.Validation("INVALID_OTP")
	}
	if nowMillis > expireAt {
		return apperr.Validation("OTP_EXPIRED")
	}
	return nil
}
