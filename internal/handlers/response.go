package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/logging"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/repository"
)

// ErrorHandler renders every error as {status:false, message:CODE}.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"status":  false,
				"message": statusCode(fiberErr.Code),
			})
		}

		status := apperr.StatusOf(err)
		if status >= fiber.StatusInternalServerError {
			logging.Error(logger, "request failed", err)
		}

		return c.Status(status).JSON(fiber.Map{
			"status":  false,
			"message": apperr.CodeOf(err),
		})
	}
}

// statusCode turns 404 into "404_NOT_FOUND".
func statusCode(status int) string {
	text := strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	if text == "" {
		text = "ERROR"
	}
	return fmt.Sprintf("%d_%s", status, text)
}

// NotFound is the catch-all for unknown routes.
func NotFound(c *fiber.Ctx) error {
	return fiber.ErrNotFound
}

func respond(c *fiber.Ctx, status int, message string, payload fiber.Map) error {
	body := fiber.Map{"status": true, "message": message}
	for k, v := range payload {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation("INVALID_REQUEST_BODY")
	}
	return nil
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return uuid.Nil, apperr.New(apperr.KindUnauthorized, "UNAUTHORIZED")
	}
	return id, nil
}

func parseID(c *fiber.Ctx, param, code string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, apperr.Validation(code)
	}
	return id, nil
}

// dbError maps a gorm error to notFound, conflict or an internal failure.
func dbError(err error, notFound, conflict, internal string) error {
	switch {
	case err == nil:
		return nil
	case apperr.KindOf(err) != apperr.KindInternal:
		return err
	case errors.Is(err, gorm.ErrRecordNotFound) && notFound != "":
		return apperr.NotFound(notFound)
	case repository.IsUniqueViolation(err) && conflict != "":
		return apperr.Conflict(conflict)
	default:
		return apperr.Wrap(internal, err)
	}
}

func guarded(guards []fiber.Handler, handler fiber.Handler) []fiber.Handler {
	chain := make([]fiber.Handler, 0, len(guards)+1)
	chain = append(chain, guards...)
	return append(chain, handler)
}
