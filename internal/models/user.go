package models

import "github.com/google/uuid"

// Account roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// ValidRole reports whether role is one of the known account roles.
func ValidRole(role string) bool {
	return role == RoleCustomer || role == RoleAdmin
}

// User is a storefront account.
//
// OTP expiry columns hold absolute epoch milliseconds; zero means no OTP.
type User struct {
	BaseModel
	Name            string        `gorm:"not null" json:"name"`
	Email           string        `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash    string        `gorm:"not null" json:"-"`
	Role            string        `gorm:"not null;default:customer" json:"role"`
	Phone           string        `json:"phone"`
	ProfileImage    string        `json:"profileImage"`
	IsVerified      bool          `gorm:"not null;default:false" json:"isVerified"`
	VerifyOTP       string        `gorm:"column:verify_otp;not null;default:''" json:"-"`
	VerifyOTPExpire int64         `gorm:"column:verify_otp_expire_at;not null;default:0" json:"-"`
	ResetOTP        string        `gorm:"column:reset_otp;not null;default:''" json:"-"`
	ResetOTPExpire  int64         `gorm:"column:reset_otp_expire_at;not null;default:0" json:"-"`
	Addresses       []UserAddress `gorm:"constraint:OnDelete:CASCADE" json:"address"`
}

// UserAddress is one entry of an account's ordered address list.
type UserAddress struct {
	BaseModel
	UserID  uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	Details string    `json:"details"`
	Street  string    `json:"street"`
	City    string    `json:"city"`
	ZipCode string    `json:"zipCode"`
}
