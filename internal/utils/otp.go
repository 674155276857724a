package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const (
	// VerifyOTPTTL is how long an email verification code stays valid.
	VerifyOTPTTL = 24 * time.Hour
	// ResetOTPTTL is how long a password reset code stays valid.
	ResetOTPTTL = 15 * time.Minute

	otpMin = 100000
	otpMax = 999999
)

// OTPGenerator produces six digit one-time codes with an absolute expiry.
type OTPGenerator struct {
	TTL time.Duration
	Now func() time.Time
}

// NewOTPGenerator constructs a generator using the wall clock.
func NewOTPGenerator(ttl time.Duration) OTPGenerator {
	return OTPGenerator{TTL: ttl, Now: time.Now}
}

// Generate returns a code in [100000, 999999] and its expiry in epoch millis.
func (g OTPGenerator) Generate() (string, int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", 0, err
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	code := strconv.FormatInt(n.Int64()+otpMin, 10)
	return code, now().Add(g.TTL).UnixMilli(), nil
}
