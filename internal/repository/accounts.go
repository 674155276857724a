package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

// GormAccountRepository stores accounts in the users table.
type GormAccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository constructs a GormAccountRepository.
func NewAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

var _ AccountRepository = (*GormAccountRepository)(nil)

func (r *GormAccountRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormAccountRepository) first(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").Wrap(err)
	}
	return &user, nil
}

func (r *GormAccountRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").Wrap(err)
	}
	return nil
}

func (r *GormAccountRepository) SetVerifyOTP(ctx context.Context, id uuid.UUID, code string, expiresAt int64) error {
	return r.setOTP(ctx, id, map[string]any{
		"verify_otp":           code,
		"verify_otp_expire_at": expiresAt,
	})
}

func (r *GormAccountRepository) SetResetOTP(ctx context.Context, id uuid.UUID, code string, expiresAt int64) error {
	return r.setOTP(ctx, id, map[string]any{
		"reset_otp":           code,
		"reset_otp_expire_at": expiresAt,
	})
}

func (r *GormAccountRepository) setOTP(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").Wrap(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormAccountRepository) ConsumeVerifyOTP(ctx context.Context, id uuid.UUID, code string, nowMillis int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND verify_otp = ? AND verify_otp <> '' AND verify_otp_expire_at >= ?", id, code, nowMillis).
		Updates(map[string]any{
			"is_verified":          true,
			"verify_otp":           "",
			"verify_otp_expire_at": 0,
		})
	if result.Error != nil {
		return false, oops.Code("ACCOUNT_UPDATE_FAILED").Wrap(result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *GormAccountRepository) ConsumeResetOTP(ctx context.Context, id uuid.UUID, code string, nowMillis int64, passwordHash string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND reset_otp = ? AND reset_otp <> '' AND reset_otp_expire_at >= ?", id, code, nowMillis).
		Updates(map[string]any{
			"password_hash":       passwordHash,
			"reset_otp":           "",
			"reset_otp_expire_at": 0,
		})
	if result.Error != nil {
		return false, oops.Code("ACCOUNT_UPDATE_FAILED").Wrap(result.Error)
	}
	return result.RowsAffected == 1, nil
}
