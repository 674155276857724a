package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/logging"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
	"github.com/example/storefront/internal/utils"
)

// RegisterInput is the payload accepted by Register.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// TokenPair is an access token and the refresh token that renews it.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User *models.User
	TokenPair
}

// AuthService implements registration, login, token refresh, email
// verification and password reset on top of an AccountRepository.
type AuthService struct {
	accounts repository.AccountRepository
	tokens   *utils.TokenIssuer
	mailer   Mailer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	allowAdminSignup bool
}

// NewAuthService constructs an AuthService.
func NewAuthService(accounts repository.AccountRepository, tokens *utils.TokenIssuer, mailer Mailer, logger *slog.Logger, m *metrics.Metrics) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		mailer:   mailer,
		logger:   logger,
		metrics:  m,
		now:      time.Now,

		allowAdminSignup: true,
	}
}

// WithClock overrides the time source used for OTP issue and expiry checks.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// WithAdminRegistration controls whether Register accepts role admin.
func (s *AuthService) WithAdminRegistration(allowed bool) *AuthService {
	s.allowAdminSignup = allowed
	return s
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (result *AuthResult, err error) {
	defer func() { s.metrics.AuthEvent("register", err) }()

	if err := utils.FirstError(
		utils.RequireField("name", in.Name),
		utils.ValidateEmail("email", in.Email),
		utils.ValidatePassword("password", in.Password),
	); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if !models.ValidRole(role) {
		return nil, apperr.Validation("INVALID_ROLE")
	}
	if role == models.RoleAdmin && !s.allowAdminSignup {
		return nil, apperr.New(apperr.KindForbidden, "ADMIN_REGISTRATION_DISABLED")
	}

	if _, err := s.accounts.FindByEmail(ctx, in.Email); err == nil {
		return nil, apperr.Conflict("EMAIL_IS_EXIST")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Wrap("REGISTER_FAILED", err)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap("REGISTER_FAILED", err)
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.accounts.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("EMAIL_IS_EXIST")
		}
		return nil, apperr.Wrap("REGISTER_FAILED", err)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, apperr.Wrap("REGISTER_FAILED", err)
	}

	s.deliver(ctx, user.Email, "Welcome to Storefront",
		fmt.Sprintf("Hi %s,\n\nYour account has been created with %s.", user.Name, user.Email))

	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Login checks credentials. Unknown email and wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (result *AuthResult, err error) {
	defer func() { s.metrics.AuthEvent("login", err) }()

	if err := utils.FirstError(
		utils.RequireField("email", email),
		utils.RequireField("password", password),
	); err != nil {
		return nil, err
	}

	user, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Credential("INVALID_EMAIL_OR_PASSWORD")
	}
	if err != nil {
		return nil, apperr.Wrap("LOGIN_FAILED", err)
	}

	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, apperr.Credential("INVALID_EMAIL_OR_PASSWORD")
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, apperr.Wrap("LOGIN_FAILED", err)
	}

	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Refresh exchanges a refresh token for a new pair carrying the account's
// current email and role.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	defer func() { s.metrics.AuthEvent("refresh", err) }()

	if refreshToken == "" {
		return TokenPair{}, apperr.Required("refresh token")
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		return TokenPair{}, apperr.Token("REFRESH_TOKEN_EXPIRED")
	case err != nil:
		return TokenPair{}, apperr.Token("INVALID_REFRESH_TOKEN")
	}

	identity, err := claims.Identity()
	if err != nil {
		return TokenPair{}, apperr.Token("INVALID_REFRESH_TOKEN")
	}

	user, err := s.accounts.FindByID(ctx, identity.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, apperr.Token("INVALID_REFRESH_TOKEN")
	}
	if err != nil {
		return TokenPair{}, apperr.Wrap("REFRESH_TOKEN_FAILED", err)
	}

	pair, err = s.issuePair(user)
	if err != nil {
		return TokenPair{}, apperr.Wrap("REFRESH_TOKEN_FAILED", err)
	}
	return pair, nil
}

// SendVerificationOTP stores a fresh verification code and mails it.
func (s *AuthService) SendVerificationOTP(ctx context.Context, userID uuid.UUID) (err error) {
	defer func() { s.metrics.AuthEvent("send_verify_otp", err) }()

	user, err := s.findByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := CanIssueVerifyOTP(user); err != nil {
		return err
	}

	code, expiresAt, err := utils.OTPGenerator{TTL: utils.VerifyOTPTTL, Now: s.now}.Generate()
	if err != nil {
		return apperr.Wrap("SEND_OTP_FAILED", err)
	}
	if err := s.accounts.SetVerifyOTP(ctx, user.ID, code, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("USER_NOT_FOUND")
		}
		return apperr.Wrap("SEND_OTP_FAILED", err)
	}

	s.deliver(ctx, user.Email, "Account Verification OTP",
		fmt.Sprintf("Your OTP is %s. Verify your account using this OTP.", code))
	return nil
}

// VerifyEmail exchanges a verification code for a verified account.
func (s *AuthService) VerifyEmail(ctx context.Context, userID uuid.UUID, otp string) (err error) {
	defer func() { s.metrics.AuthEvent("verify_email", err) }()

	if otp == "" {
		return apperr.Required("otp")
	}

	user, err := s.findByID(ctx, userID)
	if err != nil {
		return err
	}

	now := s.now().UnixMilli()
	if err := CheckOTP(user.VerifyOTP, user.VerifyOTPExpire, otp, now); err != nil {
		return err
	}

	ok, err := s.accounts.ConsumeVerifyOTP(ctx, user.ID, otp, now)
	if err != nil {
		return apperr.Wrap("VERIFY_EMAIL_FAILED", err)
	}
	if !ok {
		return apperr.Validation("INVALID_OTP")
	}
	return nil
}

// SendResetOTP stores a fresh password reset code and mails it.
func (s *AuthService) SendResetOTP(ctx context.Context, email string) (err error) {
	defer func() { s.metrics.AuthEvent("send_reset_otp", err) }()

	if err := utils.ValidateEmail("email", email); err != nil {
		return err
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, expiresAt, err := utils.OTPGenerator{TTL: utils.ResetOTPTTL, Now: s.now}.Generate()
	if err != nil {
		return apperr.Wrap("SEND_OTP_FAILED", err)
	}
	if err := s.accounts.SetResetOTP(ctx, user.ID, code, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("USER_NOT_FOUND")
		}
		return apperr.Wrap("SEND_OTP_FAILED", err)
	}

	s.deliver(ctx, user.Email, "Password Reset OTP",
		fmt.Sprintf("Your OTP for resetting your password is %s. Use this OTP to proceed with resetting your password.", code))
	return nil
}

// ResetPassword replaces the password when the reset code matches.
func (s *AuthService) ResetPassword(ctx context.Context, email, otp, newPassword string) (err error) {
	defer func() { s.metrics.AuthEvent("reset_password", err) }()

	if err := utils.FirstError(
		utils.ValidateEmail("email", email),
		utils.RequireField("otp", otp),
		utils.ValidatePassword("new password", newPassword),
	); err != nil {
		return err
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	now := s.now().UnixMilli()
	if err := CheckOTP(user.ResetOTP, user.ResetOTPExpire, otp, now); err != nil {
		return err
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return apperr.Wrap("PASSWORD_RESET_FAILED", err)
	}

	ok, err := s.accounts.ConsumeResetOTP(ctx, user.ID, otp, now, hash)
	if err != nil {
		return apperr.Wrap("PASSWORD_RESET_FAILED", err)
	}
	if !ok {
		return apperr.Validation("INVALID_OTP")
	}
	return nil
}

func (s *AuthService) issuePair(user *models.User) (TokenPair, error) {
	identity := utils.Identity{ID: user.ID, Email: user.Email, Role: user.Role}

	access, err := s.tokens.IssueAccess(identity)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefresh(identity)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) findByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.accounts.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("USER_NOT_FOUND")
	}
	if err != nil {
		return nil, apperr.Wrap("USER_LOOKUP_FAILED", err)
	}
	return user, nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("USER_NOT_FOUND")
	}
	if err != nil {
		return nil, apperr.Wrap("USER_LOOKUP_FAILED", err)
	}
	return user, nil
}

// deliver sends mail without failing the caller.
func (s *AuthService) deliver(ctx context.Context, to, subject, body string) {
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		logging.Warn(s.logger, "mail delivery failed", err)
		s.metrics.NotificationFailed("mail")
	}
}
