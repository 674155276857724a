package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

// ProductHandler manages product CRUD.
type ProductHandler struct {
	db *gorm.DB
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

type productRequest struct {
	CategoryID  string   `json:"categoryId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Image       string   `json:"image"`
}

func (r productRequest) validate() (uuid.UUID, error) {
	if strings.TrimSpace(r.CategoryID) == "" {
		return uuid.Nil, apperr.Required("category")
	}
	categoryID, err := uuid.Parse(r.CategoryID)
	if err != nil {
		return uuid.Nil, apperr.Validation("INVALID_CATEGORY_ID")
	}
	if err := utils.ValidateMinLength("name", strings.TrimSpace(r.Name), 3); err != nil {
		return uuid.Nil, err
	}
	if r.Price == nil {
		return uuid.Nil, apperr.Required("price")
	}
	if *r.Price < 0 {
		return uuid.Nil, apperr.Validation("PRICE_MUST_NOT_BE_NEGATIVE")
	}
	return categoryID, nil
}

type productResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
}

func newProductResponse(p models.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Price:       p.Price,
		Description: p.Description,
		Image:       p.Image,
	}
	if p.Category != nil {
		resp.Category = p.Category.Name
	}
	return resp
}

// ListProducts returns paginated products with optional filters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Product{})

	if v := c.Query("category"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Validation("INVALID_CATEGORY_ID")
		}
		query = query.Where("category_id = ?", id)
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + search + "%"
		query = query.Where("name ILIKE ? OR description ILIKE ?", q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return apperr.Wrap("GET_PRODUCTS_FAILED", err)
	}

	var products []models.Product
	if err := query.Preload("Category").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&products).Error; err != nil {
		return apperr.Wrap("GET_PRODUCTS_FAILED", err)
	}

	items := make([]productResponse, 0, len(products))
	for _, p := range products {
		items = append(items, newProductResponse(p))
	}

	meta := pg.Meta(total)
	return respond(c, fiber.StatusOK, "FOUND_PRODUCT", fiber.Map{
		"total":      meta.Total,
		"products":   items,
		"limit":      meta.Limit,
		"page":       meta.Page,
		"nextPage":   meta.NextPage,
		"prevPage":   meta.PrevPage,
		"totalPages": meta.TotalPages,
	})
}

// GetProduct returns a single product.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "INVALID_PRODUCT_ID")
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.db.WithContext(c.UserContext()).Preload("Category").
		First(&product, "id = ?", id).Error; err != nil {
		return dbError(err, "PRODUCT_NOT_FOUND", "", "GET_PRODUCT_FAILED")
	}

	return respond(c, fiber.StatusOK, "PRODUCT_FOUND", fiber.Map{"product": newProductResponse(product)})
}

// CreateProduct adds a product to an existing category.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	categoryID, err := req.validate()
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	var category models.Category
	if err := db.First(&category, "id = ?", categoryID).Error; err != nil {
		return dbError(err, "CATEGORY_NOT_FOUND", "", "CREATE_PRODUCT_FAILED")
	}

	name := strings.TrimSpace(req.Name)
	product := models.Product{
		CategoryID:  category.ID,
		Category:    &category,
		Name:        name,
		Slug:        slug.Make(name),
		Description: req.Description,
		Price:       *req.Price,
		Image:       req.Image,
	}
	if err := db.Omit("Category").Create(&product).Error; err != nil {
		return dbError(err, "", "PRODUCT_ALREADY_EXISTS", "CREATE_PRODUCT_FAILED")
	}

	return respond(c, fiber.StatusCreated, "SUCCESS_CREATE_PRODUCT", fiber.Map{"product": newProductResponse(product)})
}

// UpdateProduct replaces a product's editable fields.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "INVALID_PRODUCT_ID")
	if err != nil {
		return err
	}

	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	categoryID, err := req.validate()
	if err != nil {
		return err
	}

	var product models.Product
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, "id = ?", id).Error; err != nil {
			return dbError(err, "PRODUCT_NOT_FOUND", "", "UPDATE_PRODUCT_FAILED")
		}

		var category models.Category
		if err := tx.First(&category, "id = ?", categoryID).Error; err != nil {
			return dbError(err, "CATEGORY_NOT_FOUND", "", "UPDATE_PRODUCT_FAILED")
		}

		name := strings.TrimSpace(req.Name)
		if err := tx.Model(&product).Updates(map[string]any{
			"category_id": category.ID,
			"name":        name,
			"slug":        slug.Make(name),
			"description": req.Description,
			"price":       *req.Price,
			"image":       req.Image,
		}).Error; err != nil {
			return dbError(err, "", "PRODUCT_ALREADY_EXISTS", "UPDATE_PRODUCT_FAILED")
		}

		return tx.Preload("Category").First(&product, "id = ?", id).Error
	})
	if err != nil {
		return dbError(err, "PRODUCT_NOT_FOUND", "", "UPDATE_PRODUCT_FAILED")
	}

	return respond(c, fiber.StatusOK, "SUCCESS_UPDATE_PRODUCT", fiber.Map{"product": newProductResponse(product)})
}

// DeleteProduct removes a product and drops it from every cart.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "INVALID_PRODUCT_ID")
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var cartIDs []uuid.UUID
		if err := tx.Model(&models.CartItem{}).Where("product_id = ?", id).
			Distinct().Pluck("cart_id", &cartIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Product{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("PRODUCT_NOT_FOUND")
		}

		for _, cartID := range cartIDs {
			if err := recalculateCart(tx, cartID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "", "", "DELETE_PRODUCT_FAILED")
	}

	return respond(c, fiber.StatusOK, "SUCCESS_DELETE_PRODUCT", nil)
}

// RegisterRoutes mounts product endpoints; writes go through admin.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, admin ...fiber.Handler) {
	router.Get("/", h.ListProducts)
	router.Get("/:id", h.GetProduct)
	router.Post("/", guarded(admin, h.CreateProduct)...)
	router.Put("/:id", guarded(admin, h.UpdateProduct)...)
	router.Delete("/:id", guarded(admin, h.DeleteProduct)...)
}
