package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/utils"
)

const claimsContextKey = "currentClaims"

// AuthMiddleware validates access tokens and loads the caller's claims into context.
func AuthMiddleware(issuer *utils.TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperr.New(apperr.KindUnauthorized, "UNAUTHORIZED")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return apperr.New(apperr.KindUnauthorized, "UNAUTHORIZED")
		}

		claims, err := issuer.VerifyAccess(parts[1])
		if errors.Is(err, utils.ErrTokenExpired) {
			return apperr.New(apperr.KindUnauthorized, "ACCESS_TOKEN_EXPIRED")
		}
		if err != nil {
			return apperr.New(apperr.KindUnauthorized, "INVALID_ACCESS_TOKEN")
		}

		identity, err := claims.Identity()
		if err != nil {
			return apperr.New(apperr.KindUnauthorized, "INVALID_ACCESS_TOKEN")
		}

		c.Locals(claimsContextKey, identity)
		return c.Next()
	}
}

// CurrentIdentity extracts the authenticated caller from context.
func CurrentIdentity(c *fiber.Ctx) (utils.Identity, bool) {
	identity, ok := c.Locals(claimsContextKey).(utils.Identity)
	return identity, ok
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		return uuid.Nil, false
	}
	return identity.ID, true
}

// RequireRole rejects callers whose token does not carry one of roles.
// It must run after AuthMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := CurrentIdentity(c)
		if !ok {
			return apperr.New(apperr.KindUnauthorized, "UNAUTHORIZED")
		}
		for _, role := range roles {
			if identity.Role == role {
				return c.Next()
			}
		}
		return apperr.New(apperr.KindForbidden, "ACCESS_DENIED")
	}
}
