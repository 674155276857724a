package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
)

// CategoryHandler manages product categories.
type CategoryHandler struct {
	db *gorm.DB
}

// NewCategoryHandler constructs CategoryHandler.
func NewCategoryHandler(db *gorm.DB) *CategoryHandler {
	return &CategoryHandler{db: db}
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (r categoryRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apperr.Required("name")
	}
	return nil
}

// ListCategories returns all categories ordered by name.
func (h *CategoryHandler) ListCategories(c *fiber.Ctx) error {
	var categories []models.Category
	if err := h.db.WithContext(c.UserContext()).Order("name asc").Find(&categories).Error; err != nil {
		return apperr.Wrap("GET_CATEGORIES_FAILED", err)
	}

	return respond(c, fiber.StatusOK, "SUCCESS_GET_CATEGORIES", fiber.Map{"categories": categories})
}

// GetCategory returns a single category.
func (h *CategoryHandler) GetCategory(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "INVALID_ID")
	if err != nil {
		return err
	}

	var category models.Category
	if err := h.db.WithContext(c.UserContext()).First(&category, "id = ?", id).Error; err != nil {
		return dbError(err, "CATEGORY_NOT_FOUND", "", "GET_CATEGORY_FAILED")
	}

	return respond(c, fiber.StatusOK, "FOUND_CATEGORY", fiber.Map{"category": category})
}

// CreateCategory adds a category with a unique name.
func (h *CategoryHandler) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	category := models.Category{Name: strings.TrimSpace(req.Name)}
	if err := h.db.WithContext(c.UserContext()).Create(&category).Error; err != nil {
		return dbError(err, "", "CATEGORY_ALREADY_EXISTS", "CREATE_CATEGORY_FAILED")
	}

	return respond(c, fiber.StatusCreated, "SUCCESS_CREATE_CATEGORY", fiber.Map{"category": category})
}

// UpdateCategory renames a category.
func (h *CategoryHandler) UpdateCategory(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "INVALID_ID")
	if err != nil {
		return err
	}

	var req categoryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	var category models.Category
	if err := db.First(&category, "id = ?", id).Error; err != nil {
		return dbError(err, "CATEGORY_NOT_FOUND", "", "UPDATE_CATEGORY_FAILED")
	}

	name := strings.TrimSpace(req.Name)
	if err := db.Model(&category).Update("name", name).Error; err != nil {
		return dbError(err, "", "CATEGORY_ALREADY_EXISTS", "UPDATE_CATEGORY_FAILED")
	}
	category.Name = name

	return respond(c, fiber.StatusOK, "SUCCESS_UPDATE_CATEGORY", fiber.Map{"category": category})
}

// DeleteCategory removes a category that no product references.
func (h *CategoryHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "INVALID_ID")
	if err != nil {
		return err
	}

	result := h.db.WithContext(c.UserContext()).Delete(&models.Category{}, "id = ?", id)
	if result.Error != nil {
		if repository.IsForeignKeyViolation(result.Error) {
			return apperr.Conflict("CATEGORY_HAS_PRODUCTS")
		}
		return apperr.Wrap("DELETE_CATEGORY_FAILED", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("CATEGORY_NOT_FOUND")
	}

	return respond(c, fiber.StatusOK, "SUCCESS_DELETE_CATEGORY", nil)
}

// RegisterRoutes mounts category endpoints; writes go through admin.
func (h *CategoryHandler) RegisterRoutes(router fiber.Router, admin ...fiber.Handler) {
	router.Get("/", h.ListCategories)
	router.Get("/:id", h.GetCategory)
	router.Post("/", guarded(admin, h.CreateCategory)...)
	router.Put("/:id", guarded(admin, h.UpdateCategory)...)
	router.Delete("/:id", guarded(admin, h.DeleteCategory)...)
}
