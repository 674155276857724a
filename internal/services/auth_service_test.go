package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

type authFixture struct {
	svc      *AuthService
	accounts *memoryAccounts
	mailer   *mockMailer
	issuer   *utils.TokenIssuer
	now      time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	f := &authFixture{
		accounts: newMemoryAccounts(),
		mailer:   &mockMailer{},
		issuer:   utils.NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour),
		now:      time.Now(),
	}
	f.mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewAuthService(f.accounts, f.issuer, f.mailer, logger, metrics.New(prometheus.NewRegistry())).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *authFixture) register(t *testing.T, email string) *AuthResult {
	t.Helper()
	result, err := f.svc.Register(context.Background(), RegisterInput{Name: "A", Email: email, Password: "secret1"})
	require.NoError(t, err)
	return result
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)

	result := f.register(t, "a@x.com")

	assert.Equal(t, "A", result.User.Name)
	assert.Equal(t, models.RoleCustomer, result.User.Role)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)

	stored := f.accounts.get(result.User.ID)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.True(t, utils.CheckPassword(stored.PasswordHash, "secret1"))
	assert.False(t, stored.IsVerified)

	claims, err := f.issuer.VerifyAccess(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)

	f.mailer.AssertCalled(t, "Send", mock.Anything, "a@x.com", "Welcome to Storefront", mock.Anything)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@x.com")

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "B", Email: "a@x.com", Password: "secret2"})
	assert.Equal(t, "EMAIL_IS_EXIST", apperr.CodeOf(err))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   RegisterInput
		code string
	}{
		{"missing name", RegisterInput{Email: "a@x.com", Password: "secret1"}, "NAME_IS_REQUIRED"},
		{"missing email", RegisterInput{Name: "A", Password: "secret1"}, "EMAIL_IS_REQUIRED"},
		{"bad email", RegisterInput{Name: "A", Email: "a-at-x", Password: "secret1"}, "INVALID_EMAIL"},
		{"missing password", RegisterInput{Name: "A", Email: "a@x.com"}, "PASSWORD_IS_REQUIRED"},
		{"short password", RegisterInput{Name: "A", Email: "a@x.com", Password: "12345"}, "PASSWORD_MINIMUM_6_CHARACTERS"},
		{"unknown role", RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1", Role: "root"}, "INVALID_ROLE"},
		{"password over bcrypt limit", RegisterInput{Name: "A", Email: "a@x.com", Password: strings.Repeat("p", 80)}, "PASSWORD_MAXIMUM_72_BYTES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			f.accounts.err = errors.New("store must not be touched")

			_, err := f.svc.Register(context.Background(), tt.in)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestRegister_LongestPasswordAccepted(t *testing.T) {
	f := newAuthFixture(t)
	password := strings.Repeat("p", utils.MaxPasswordBytes)

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "A", Email: "a@x.com", Password: password})
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), "a@x.com", password)
	assert.NoError(t, err)
}

func TestRegister_StoreFailureReportsRegisterFailed(t *testing.T) {
	f := newAuthFixture(t)
	f.accounts.err = oops.Code("ACCOUNT_QUERY_FAILED").Wrap(errors.New("connection reset"))

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
	assert.Equal(t, "REGISTER_FAILED", apperr.CodeOf(err))
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	_, err = f.svc.Login(context.Background(), "a@x.com", "secret1")
	assert.Equal(t, "LOGIN_FAILED", apperr.CodeOf(err))
}

func TestRegister_AdminRegistrationSwitch(t *testing.T) {
	f := newAuthFixture(t)
	in := RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1", Role: models.RoleAdmin}

	f.svc.WithAdminRegistration(false)
	_, err := f.svc.Register(context.Background(), in)
	assert.Equal(t, "ADMIN_REGISTRATION_DISABLED", apperr.CodeOf(err))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	in.Role = ""
	result, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, result.User.Role)

	f.svc.WithAdminRegistration(true)
	in.Email, in.Role = "b@x.com", models.RoleAdmin
	result, err = f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, result.User.Role)
}

func TestRegister_MailFailureDoesNotRollBack(t *testing.T) {
	f := newAuthFixture(t)
	f.mailer = &mockMailer{}
	f.mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errMailDown)
	f.svc.mailer = f.mailer

	result := f.register(t, "a@x.com")
	_, err := f.accounts.FindByID(context.Background(), result.User.ID)
	assert.NoError(t, err)
	f.mailer.AssertNumberOfCalls(t, "Send", 1)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@x.com")
	ctx := context.Background()

	result, err := f.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", result.User.Email)
	assert.NotEmpty(t, result.RefreshToken)

	_, wrongPassword := f.svc.Login(ctx, "a@x.com", "wrong-password")
	_, unknownEmail := f.svc.Login(ctx, "nobody@x.com", "secret1")
	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Equal(t, "INVALID_EMAIL_OR_PASSWORD", apperr.CodeOf(wrongPassword))
	assert.Equal(t, apperr.CodeOf(wrongPassword), apperr.CodeOf(unknownEmail))
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())

	_, err = f.svc.Login(ctx, "", "secret1")
	assert.Equal(t, "EMAIL_IS_REQUIRED", apperr.CodeOf(err))
	_, err = f.svc.Login(ctx, "a@x.com", "")
	assert.Equal(t, "PASSWORD_IS_REQUIRED", apperr.CodeOf(err))
}

func TestRefresh(t *testing.T) {
	f := newAuthFixture(t)
	registered := f.register(t, "a@x.com")
	ctx := context.Background()

	pair, err := f.svc.Refresh(ctx, registered.RefreshToken)
	require.NoError(t, err)

	claims, err := f.issuer.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID.String(), claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, models.RoleCustomer, claims.Role)

	_, err = f.issuer.VerifyRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_Failures(t *testing.T) {
	f := newAuthFixture(t)
	registered := f.register(t, "a@x.com")
	ctx := context.Background()

	past := time.Now().Add(-48 * time.Hour)
	expired, err := f.issuer.WithClock(func() time.Time { return past }).
		IssueRefresh(utils.Identity{ID: registered.User.ID})
	require.NoError(t, err)

	orphan, err := f.issuer.IssueRefresh(utils.Identity{ID: uuid.New()})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		code  string
	}{
		{"missing", "", "REFRESH_TOKEN_IS_REQUIRED"},
		{"expired", expired, "REFRESH_TOKEN_EXPIRED"},
		{"garbled", "not.a.token", "INVALID_REFRESH_TOKEN"},
		{"access token", registered.AccessToken, "INVALID_REFRESH_TOKEN"},
		{"deleted account", orphan, "INVALID_REFRESH_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Refresh(ctx, tt.token)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
			assert.Equal(t, 400, apperr.StatusOf(err))
		})
	}
}

func TestVerifyEmail(t *testing.T) {
	f := newAuthFixture(t)
	user := f.register(t, "a@x.com").User
	ctx := context.Background()

	require.NoError(t, f.svc.SendVerificationOTP(ctx, user.ID))
	stored := f.accounts.get(user.ID)
	require.Len(t, stored.VerifyOTP, 6)
	assert.Equal(t, f.now.Add(utils.VerifyOTPTTL).UnixMilli(), stored.VerifyOTPExpire)
	assert.Equal(t, OtpPending, VerificationStateOf(&stored))
	f.mailer.AssertCalled(t, "Send", mock.Anything, "a@x.com", "Account Verification OTP", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, stored.VerifyOTP)
	}))

	err := f.svc.VerifyEmail(ctx, user.ID, "000000")
	assert.Equal(t, "INVALID_OTP", apperr.CodeOf(err))
	assert.False(t, f.accounts.get(user.ID).IsVerified)

	require.NoError(t, f.svc.VerifyEmail(ctx, user.ID, stored.VerifyOTP))
	verified := f.accounts.get(user.ID)
	assert.True(t, verified.IsVerified)
	assert.Empty(t, verified.VerifyOTP)
	assert.Zero(t, verified.VerifyOTPExpire)

	err = f.svc.VerifyEmail(ctx, user.ID, stored.VerifyOTP)
	assert.Equal(t, "INVALID_OTP", apperr.CodeOf(err))

	err = f.svc.SendVerificationOTP(ctx, user.ID)
	assert.Equal(t, "ACCOUNT_ALREADY_VERIFIED", apperr.CodeOf(err))
}

func TestVerifyEmail_Expired(t *testing.T) {
	f := newAuthFixture(t)
	user := f.register(t, "a@x.com").User
	ctx := context.Background()

	require.NoError(t, f.svc.SendVerificationOTP(ctx, user.ID))
	code := f.accounts.get(user.ID).VerifyOTP

	f.now = f.now.Add(utils.VerifyOTPTTL + time.Millisecond)
	err := f.svc.VerifyEmail(ctx, user.ID, code)
	assert.Equal(t, "OTP_EXPIRED", apperr.CodeOf(err))
	assert.False(t, f.accounts.get(user.ID).IsVerified)
	assert.Equal(t, code, f.accounts.get(user.ID).VerifyOTP)
}

func TestVerifyEmail_Errors(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	err := f.svc.VerifyEmail(ctx, uuid.New(), "")
	assert.Equal(t, "OTP_IS_REQUIRED", apperr.CodeOf(err))

	err = f.svc.VerifyEmail(ctx, uuid.New(), "123456")
	assert.Equal(t, "USER_NOT_FOUND", apperr.CodeOf(err))

	err = f.svc.SendVerificationOTP(ctx, uuid.New())
	assert.Equal(t, "USER_NOT_FOUND", apperr.CodeOf(err))
}

func TestResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	user := f.register(t, "a@x.com").User
	ctx := context.Background()

	require.NoError(t, f.svc.SendResetOTP(ctx, "a@x.com"))
	stored := f.accounts.get(user.ID)
	require.Len(t, stored.ResetOTP, 6)
	assert.Equal(t, f.now.Add(utils.ResetOTPTTL).UnixMilli(), stored.ResetOTPExpire)

	err := f.svc.ResetPassword(ctx, "a@x.com", "000000", "newsecret")
	assert.Equal(t, "INVALID_OTP", apperr.CodeOf(err))

	require.NoError(t, f.svc.ResetPassword(ctx, "a@x.com", stored.ResetOTP, "newsecret"))
	_, err = f.svc.Login(ctx, "a@x.com", "newsecret")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "a@x.com", "secret1")
	assert.Equal(t, "INVALID_EMAIL_OR_PASSWORD", apperr.CodeOf(err))

	err = f.svc.ResetPassword(ctx, "a@x.com", stored.ResetOTP, "another1")
	assert.Equal(t, "INVALID_OTP", apperr.CodeOf(err))
}

func TestResetPassword_NotGatedByVerification(t *testing.T) {
	f := newAuthFixture(t)
	user := f.register(t, "a@x.com").User
	ctx := context.Background()

	require.NoError(t, f.svc.SendVerificationOTP(ctx, user.ID))
	require.NoError(t, f.svc.VerifyEmail(ctx, user.ID, f.accounts.get(user.ID).VerifyOTP))

	require.NoError(t, f.svc.SendResetOTP(ctx, "a@x.com"))
	require.NoError(t, f.svc.ResetPassword(ctx, "a@x.com", f.accounts.get(user.ID).ResetOTP, "newsecret"))
	assert.True(t, f.accounts.get(user.ID).IsVerified)
}

func TestResetPassword_Validation(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@x.com")
	ctx := context.Background()

	tests := []struct {
		name                    string
		email, otp, newPassword string
		code                    string
	}{
		{"missing email", "", "123456", "newsecret", "EMAIL_IS_REQUIRED"},
		{"missing otp", "a@x.com", "", "newsecret", "OTP_IS_REQUIRED"},
		{"missing password", "a@x.com", "123456", "", "NEW_PASSWORD_IS_REQUIRED"},
		{"short password", "a@x.com", "123456", "abc", "NEW_PASSWORD_MINIMUM_6_CHARACTERS"},
		{"long password", "a@x.com", "123456", strings.Repeat("p", 80), "NEW_PASSWORD_MAXIMUM_72_BYTES"},
		{"unknown email", "b@x.com", "123456", "newsecret", "USER_NOT_FOUND"},
		{"no otp issued", "a@x.com", "123456", "newsecret", "INVALID_OTP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.ResetPassword(ctx, tt.email, tt.otp, tt.newPassword)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func TestResetPassword_Expired(t *testing.T) {
	f := newAuthFixture(t)
	user := f.register(t, "a@x.com").User
	ctx := context.Background()

	require.NoError(t, f.svc.SendResetOTP(ctx, "a@x.com"))
	code := f.accounts.get(user.ID).ResetOTP

	f.now = f.now.Add(utils.ResetOTPTTL + time.Second)
	err := f.svc.ResetPassword(ctx, "a@x.com", code, "newsecret")
	assert.Equal(t, "OTP_EXPIRED", apperr.CodeOf(err))
}

func TestSendResetOTP_Errors(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	assert.Equal(t, "EMAIL_IS_REQUIRED", apperr.CodeOf(f.svc.SendResetOTP(ctx, "")))
	assert.Equal(t, "INVALID_EMAIL", apperr.CodeOf(f.svc.SendResetOTP(ctx, "nope")))
	assert.Equal(t, "USER_NOT_FOUND", apperr.CodeOf(f.svc.SendResetOTP(ctx, "b@x.com")))
}
