package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const (
	// MaxProfileImageSize is the largest accepted profile image.
	MaxProfileImageSize = 2 * 1024 * 1024
	// ImagesURLPrefix is where UploadDir is served from.
	ImagesURLPrefix = "/images"

	profileImageDir = "profile"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
}

// ProfileHandler manages user profile endpoints.
type ProfileHandler struct {
	db        *gorm.DB
	uploadDir string
	logger    *slog.Logger
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB, uploadDir string, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{db: db, uploadDir: uploadDir, logger: logger}
}

func (h *ProfileHandler) loadUser(db *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := db.Preload("Addresses", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at asc")
	}).First(&user, "id = ?", userID).Error
	if err != nil {
		return nil, dbError(err, "USER_NOT_FOUND", "", "GET_USER_FAILED")
	}
	return &user, nil
}

// GetProfile returns authenticated user profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	user, err := h.loadUser(h.db.WithContext(c.UserContext()), userID)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "FOUND_USER", fiber.Map{"user": user})
}

type updateProfileRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

// UpdateProfile updates user profile fields. Changing the email clears verification.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := utils.FirstError(
		utils.RequireField("name", req.Name),
		utils.ValidateEmail("email", req.Email),
	); err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	current, err := h.loadUser(db, userID)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"name":  strings.TrimSpace(req.Name),
		"email": req.Email,
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != current.Email {
		updates["is_verified"] = false
		updates["verify_otp"] = ""
		updates["verify_otp_expire_at"] = 0
	}

	if err := db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return dbError(err, "", "EMAIL_IS_EXIST", "UPDATE_PROFILE_FAILED")
	}

	user, err := h.loadUser(db, userID)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "SUCCESS_UPDATE_PROFILE", fiber.Map{"user": user})
}

// checkImage validates the size, the declared content type and the sniffed
// content of an upload. The extension follows the sniffed type.
func checkImage(file *multipart.FileHeader) (string, error) {
	if file.Size > MaxProfileImageSize {
		return "", apperr.Validation("MAXIMUM_FILE_SIZE_2MB")
	}
	if _, ok := allowedImageTypes[strings.ToLower(file.Header.Get(fiber.HeaderContentType))]; !ok {
		return "", apperr.Validation("INVALID_FILE_TYPE")
	}

	src, err := file.Open()
	if err != nil {
		return "", apperr.Wrap("UPLOAD_IMAGE_FAILED", err)
	}
	defer src.Close()

	return sniffImage(src)
}

// sniffImage detects the image type from the first bytes of r.
func sniffImage(r io.Reader) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", apperr.Wrap("UPLOAD_IMAGE_FAILED", err)
	}

	ext, ok := allowedImageTypes[http.DetectContentType(head[:n])]
	if !ok {
		return "", apperr.Validation("INVALID_FILE_TYPE")
	}
	return ext, nil
}

// localImagePath maps a served URL back to its file under uploadDir.
func localImagePath(uploadDir, url string) (string, bool) {
	rel, ok := strings.CutPrefix(url, ImagesURLPrefix+"/")
	if !ok || rel == "" {
		return "", false
	}
	rel = path.Clean("/" + rel)[1:]
	return filepath.Join(uploadDir, filepath.FromSlash(rel)), true
}

func (h *ProfileHandler) removeImage(url string) {
	file, ok := localImagePath(h.uploadDir, url)
	if !ok {
		return
	}
	if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Warn("failed to remove profile image", "path", file, "error", err)
	}
}

// UploadProfileImage stores a new profile image and removes the previous one.
func (h *ProfileHandler) UploadProfileImage(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("image")
	if err != nil {
		return apperr.Required("image")
	}
	ext, err := checkImage(file)
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	user, err := h.loadUser(db, userID)
	if err != nil {
		return err
	}

	dir := filepath.Join(h.uploadDir, profileImageDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap("UPLOAD_IMAGE_FAILED", err)
	}

	name := uuid.NewString() + ext
	if err := c.SaveFile(file, filepath.Join(dir, name)); err != nil {
		return apperr.Wrap("UPLOAD_IMAGE_FAILED", err)
	}

	url := path.Join(ImagesURLPrefix, profileImageDir, name)
	if err := db.Model(&models.User{}).Where("id = ?", userID).Update("profile_image", url).Error; err != nil {
		h.removeImage(url)
		return apperr.Wrap("UPLOAD_IMAGE_FAILED", err)
	}

	if user.ProfileImage != "" {
		h.removeImage(user.ProfileImage)
	}
	user.ProfileImage = url

	return respond(c, fiber.StatusOK, "SUCCESS_UPLOAD_IMAGE_PROFILE", fiber.Map{"user": user})
}

// DeleteProfileImage clears the profile image.
func (h *ProfileHandler) DeleteProfileImage(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	user, err := h.loadUser(db, userID)
	if err != nil {
		return err
	}
	if user.ProfileImage == "" {
		return apperr.Conflict("IMAGE_PROFILE_HAS_BEEN_DELETED")
	}

	if err := db.Model(&models.User{}).Where("id = ?", userID).Update("profile_image", "").Error; err != nil {
		return apperr.Wrap("DELETE_IMAGE_FAILED", err)
	}
	h.removeImage(user.ProfileImage)
	user.ProfileImage = ""

	return respond(c, fiber.StatusOK, "SUCCESS_DELETE_IMAGE_PROFILE", fiber.Map{"user": user})
}

type addressRequest struct {
	Details *string `json:"details"`
	Street  *string `json:"street"`
	City    *string `json:"city"`
	ZipCode *string `json:"zipCode"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// updates returns only the fields present in the request.
func (r addressRequest) updates() map[string]any {
	out := map[string]any{}
	if r.Details != nil {
		out["details"] = *r.Details
	}
	if r.Street != nil {
		out["street"] = *r.Street
	}
	if r.City != nil {
		out["city"] = *r.City
	}
	if r.ZipCode != nil {
		out["zip_code"] = *r.ZipCode
	}
	return out
}

// InsertAddress appends an address to the user's list.
func (h *ProfileHandler) InsertAddress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req addressRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := utils.FirstError(
		utils.RequireField("street", deref(req.Street)),
		utils.RequireField("city", deref(req.City)),
	); err != nil {
		return err
	}

	address := models.UserAddress{
		UserID:  userID,
		Details: deref(req.Details),
		Street:  deref(req.Street),
		City:    deref(req.City),
		ZipCode: deref(req.ZipCode),
	}

	db := h.db.WithContext(c.UserContext())
	if err := db.Create(&address).Error; err != nil {
		return apperr.Wrap("FAILED_INSERT_ADDRESS", err)
	}

	user, err := h.loadUser(db, userID)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "SUCCESS_INSERT_ADDRESS", fiber.Map{"user": user})
}

// UpdateAddress patches the fields present in the body.
func (h *ProfileHandler) UpdateAddress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	addrID, err := parseID(c, "addressId", "INVALID_ADDRESS_ID")
	if err != nil {
		return err
	}

	var req addressRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	updates := req.updates()
	if len(updates) == 0 {
		var count int64
		if err := db.Model(&models.UserAddress{}).
			Where("id = ? AND user_id = ?", addrID, userID).Count(&count).Error; err != nil {
			return apperr.Wrap("UPDATE_ADDRESS_FAILED", err)
		}
		if count == 0 {
			return apperr.NotFound("ADDRESS_NOT_FOUND")
		}
	} else {
		result := db.Model(&models.UserAddress{}).
			Where("id = ? AND user_id = ?", addrID, userID).
			Updates(updates)
		if result.Error != nil {
			return apperr.Wrap("UPDATE_ADDRESS_FAILED", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("ADDRESS_NOT_FOUND")
		}
	}

	user, err := h.loadUser(db, userID)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "SUCCESS_UPDATE_ADDRESS", fiber.Map{"user": user})
}

// RemoveAddress deletes one of the user's addresses.
func (h *ProfileHandler) RemoveAddress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	addrID, err := parseID(c, "addressId", "INVALID_ADDRESS_ID")
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	result := db.Where("id = ? AND user_id = ?", addrID, userID).Delete(&models.UserAddress{})
	if result.Error != nil {
		return apperr.Wrap("REMOVE_ADDRESS_FAILED", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("ADDRESS_NOT_FOUND")
	}

	user, err := h.loadUser(db, userID)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "SUCCESS_REMOVE_ADDRESS", fiber.Map{"user": user})
}

// RegisterRoutes mounts profile endpoints. The router must already require auth.
func (h *ProfileHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/profile", h.GetProfile)
	router.Put("/profile", h.UpdateProfile)
	router.Post("/profile-image", h.UploadProfileImage)
	router.Delete("/profile-image", h.DeleteProfileImage)
	router.Post("/addresses", h.InsertAddress)
	router.Put("/addresses/:addressId", h.UpdateAddress)
	router.Delete("/addresses/:addressId", h.RemoveAddress)
}
