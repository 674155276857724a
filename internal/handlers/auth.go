package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/services"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register creates a new user account.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Register(c.UserContext(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "REGISTER_SUCCESS", fiber.Map{
		"name":         result.User.Name,
		"email":        result.User.Email,
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an existing user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "LOGIN_SUCCESS", fiber.Map{
		"name":         result.User.Name,
		"email":        result.User.Email,
		"role":         result.User.Role,
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken exchanges a refresh token for a new token pair.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	pair, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "REFRESH_TOKEN_SUCCESS", fiber.Map{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// SendVerifyOTP mails a verification code to the authenticated account.
func (h *AuthHandler) SendVerifyOTP(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	if err := h.auth.SendVerificationOTP(c.UserContext(), userID); err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "VERIFY_OTP_SENT", nil)
}

type verifyEmailRequest struct {
	OTP string `json:"otp"`
}

// VerifyEmail confirms the authenticated account's email with an OTP.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req verifyEmailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.VerifyEmail(c.UserContext(), userID, req.OTP); err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "EMAIL_VERIFIED", nil)
}

type sendResetOTPRequest struct {
	Email string `json:"email"`
}

// SendResetOTP mails a password reset code.
func (h *AuthHandler) SendResetOTP(c *fiber.Ctx) error {
	var req sendResetOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.SendResetOTP(c.UserContext(), req.Email); err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "RESET_OTP_SENT", nil)
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword sets a new password using a reset code.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ResetPassword(c.UserContext(), req.Email, req.OTP, req.NewPassword); err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "PASSWORD_RESET_SUCCESS", nil)
}

// RegisterRoutes mounts the auth endpoints. protect guards the endpoints that
// act on the signed-in account.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, protect fiber.Handler) {
	router.Post("/register", h.Register)
	router.Post("/login", h.Login)
	router.Post("/refresh-token", h.RefreshToken)
	router.Post("/send-verify-otp", protect, h.SendVerifyOTP)
	router.Post("/verify-email", protect, h.VerifyEmail)
	router.Post("/send-reset-otp", h.SendResetOTP)
	router.Post("/reset-password", h.ResetPassword)
}
