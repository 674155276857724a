// Package repository holds the account store used by the auth service.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// AccountRepository is the persistence contract of the auth service.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	SetVerifyOTP(ctx context.Context, id uuid.UUID, code string, expiresAt int64) error
	// ConsumeVerifyOTP marks the account verified and clears the code when code
	// matches and has not expired at nowMillis. It reports whether a row changed.
	ConsumeVerifyOTP(ctx context.Context, id uuid.UUID, code string, nowMillis int64) (bool, error)
	SetResetOTP(ctx context.Context, id uuid.UUID, code string, expiresAt int64) error
	// ConsumeResetOTP swaps in passwordHash and clears the code under the same
	// conditions as ConsumeVerifyOTP.
	ConsumeResetOTP(ctx context.Context, id uuid.UUID, code string, nowMillis int64, passwordHash string) (bool, error)
}

// IsUniqueViolation reports whether err came from a unique index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicate) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// IsForeignKeyViolation reports whether err came from a foreign key constraint.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
