package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/models"
)

// CartHandler manages the signed-in account's cart.
type CartHandler struct {
	db *gorm.DB
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(db *gorm.DB) *CartHandler {
	return &CartHandler{db: db}
}

type addToCartRequest struct {
	Product  string `json:"product"`
	Quantity *int   `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// linePrice is the price of quantity units.
func linePrice(quantity int, unitPrice float64) float64 {
	return float64(quantity) * unitPrice
}

// calculateTotalPrice sums the line prices of items.
func calculateTotalPrice(items []models.CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price
	}
	return total
}

func validateQuantity(quantity *int, fallback int) (int, error) {
	if quantity == nil {
		if fallback > 0 {
			return fallback, nil
		}
		return 0, apperr.Required("quantity")
	}
	if *quantity < 1 {
		return 0, apperr.Validation("QUANTITY_MINIMUM_1")
	}
	return *quantity, nil
}

// recalculateCart stores the sum of the cart's line prices as its total.
func recalculateCart(tx *gorm.DB, cartID uuid.UUID) error {
	var items []models.CartItem
	if err := tx.Where("cart_id = ?", cartID).Find(&items).Error; err != nil {
		return err
	}
	return tx.Model(&models.Cart{}).Where("id = ?", cartID).
		Update("total_price", calculateTotalPrice(items)).Error
}

// lockCart loads the user's cart with a row lock held until the transaction ends.
func lockCart(tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&cart, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func loadCart(db *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at asc")
	}).Preload("Items.Product").
		First(&cart, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetCart returns the caller's cart.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	cart, err := loadCart(h.db.WithContext(c.UserContext()), userID)
	if err != nil {
		return dbError(err, "CART_NOT_FOUND", "", "GET_CART_FAILED")
	}

	return respond(c, fiber.StatusOK, "FOUND_CART", fiber.Map{"cart": cart})
}

// AddToCart adds quantity units of a product, merging with an existing line.
func (h *CartHandler) AddToCart(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req addToCartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Product == "" {
		return apperr.Required("product")
	}
	productID, err := uuid.Parse(req.Product)
	if err != nil {
		return apperr.Validation("INVALID_PRODUCT_ID")
	}
	quantity, err := validateQuantity(req.Quantity, 1)
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	err = db.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			return dbError(err, "PRODUCT_NOT_FOUND", "", "ADD_TO_CART_FAILED")
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Cart{UserID: userID}).Error; err != nil {
			return err
		}
		cart, err := lockCart(tx, userID)
		if err != nil {
			return err
		}

		var item models.CartItem
		err = tx.First(&item, "cart_id = ? AND product_id = ?", cart.ID, product.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = models.CartItem{
				CartID:    cart.ID,
				ProductID: product.ID,
				Quantity:  quantity,
				Price:     linePrice(quantity, product.Price),
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			item.Quantity += quantity
			if err := tx.Model(&item).Updates(map[string]any{
				"quantity": item.Quantity,
				"price":    linePrice(item.Quantity, product.Price),
			}).Error; err != nil {
				return err
			}
		}

		return recalculateCart(tx, cart.ID)
	})
	if err != nil {
		return dbError(err, "", "", "ADD_TO_CART_FAILED")
	}

	cart, err := loadCart(db, userID)
	if err != nil {
		return dbError(err, "CART_NOT_FOUND", "", "ADD_TO_CART_FAILED")
	}

	return respond(c, fiber.StatusCreated, "SUCCESS_ADD_TO_CART", fiber.Map{"cart": cart})
}

// UpdateItemQuantity sets the quantity of one line.
func (h *CartHandler) UpdateItemQuantity(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	productID, err := parseID(c, "productId", "INVALID_PRODUCT_ID")
	if err != nil {
		return err
	}

	var req updateQuantityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	quantity, err := validateQuantity(req.Quantity, 0)
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	err = db.Transaction(func(tx *gorm.DB) error {
		cart, err := lockCart(tx, userID)
		if err != nil {
			return dbError(err, "CART_NOT_FOUND", "", "UPDATE_QUANTITY_FAILED")
		}

		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			return dbError(err, "PRODUCT_NOT_FOUND", "", "UPDATE_QUANTITY_FAILED")
		}

		result := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND product_id = ?", cart.ID, product.ID).
			Updates(map[string]any{
				"quantity": quantity,
				"price":    linePrice(quantity, product.Price),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("ITEM_NOT_FOUND")
		}

		return recalculateCart(tx, cart.ID)
	})
	if err != nil {
		return dbError(err, "", "", "UPDATE_QUANTITY_FAILED")
	}

	cart, err := loadCart(db, userID)
	if err != nil {
		return dbError(err, "CART_NOT_FOUND", "", "UPDATE_QUANTITY_FAILED")
	}

	return respond(c, fiber.StatusOK, "SUCCESS_UPDATE_QUANTITY", fiber.Map{"cart": cart})
}

// RemoveItem drops one product line from the cart.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	productID, err := parseID(c, "productId", "INVALID_PRODUCT_ID")
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	err = db.Transaction(func(tx *gorm.DB) error {
		cart, err := lockCart(tx, userID)
		if err != nil {
			return dbError(err, "CART_NOT_FOUND", "", "DELETE_ITEM_FAILED")
		}

		result := tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).Delete(&models.CartItem{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("ITEM_NOT_FOUND")
		}

		return recalculateCart(tx, cart.ID)
	})
	if err != nil {
		return dbError(err, "", "", "DELETE_ITEM_FAILED")
	}

	cart, err := loadCart(db, userID)
	if err != nil {
		return dbError(err, "CART_NOT_FOUND", "", "DELETE_ITEM_FAILED")
	}

	return respond(c, fiber.StatusOK, "SUCCESS_DELETE_ITEM", fiber.Map{"cart": cart})
}

// ClearCart empties the cart.
func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		cart, err := lockCart(tx, userID)
		if err != nil {
			return dbError(err, "CART_IS_EMPTY", "", "CLEAR_CART_FAILED")
		}

		result := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("CART_IS_EMPTY")
		}

		return recalculateCart(tx, cart.ID)
	})
	if err != nil {
		return dbError(err, "", "", "CLEAR_CART_FAILED")
	}

	return respond(c, fiber.StatusOK, "SUCCESS_CLEAR_CART", nil)
}

// RegisterRoutes mounts cart endpoints. The router must already require auth.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", h.GetCart)
	router.Post("/", h.AddToCart)
	router.Delete("/", h.ClearCart)
	router.Put("/:productId", h.UpdateItemQuantity)
	router.Delete("/:productId", h.RemoveItem)
}
