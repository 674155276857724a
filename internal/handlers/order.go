package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/logging"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	db       *gorm.DB
	telegram *services.TelegramService
	currency string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, telegram *services.TelegramService, currency string, logger *slog.Logger, m *metrics.Metrics) *OrderHandler {
	return &OrderHandler{db: db, telegram: telegram, currency: currency, logger: logger, metrics: m}
}

type createOrderRequest struct {
	AddressID     string `json:"addressId"`
	PaymentMethod string `json:"paymentMethod"`
}

var orderTransitions = map[string][]string{
	models.OrderStatusNew:      {models.OrderStatusAccepted, models.OrderStatusCanceled},
	models.OrderStatusAccepted: {models.OrderStatusDelivered, models.OrderStatusCanceled},
}

func validOrderStatus(status string) bool {
	switch status {
	case models.OrderStatusNew, models.OrderStatusAccepted, models.OrderStatusDelivered, models.OrderStatusCanceled:
		return true
	}
	return false
}

// transitionOrder moves order to status, stamping delivery when it arrives.
func transitionOrder(order *models.Order, status string, now time.Time) error {
	if !validOrderStatus(status) {
		return apperr.Validation("INVALID_ORDER_STATUS")
	}
	allowed := false
	for _, next := range orderTransitions[order.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperr.Conflict("ORDER_STATUS_TRANSITION_NOT_ALLOWED")
	}

	order.Status = status
	if status == models.OrderStatusDelivered {
		order.IsDelivered = true
		order.DeliveredAt = &now
	}
	return nil
}

func generateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

// snapshotItems copies cart lines into order lines.
func snapshotItems(items []models.CartItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		productID := item.ProductID
		line := models.OrderItem{
			ProductID: &productID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
		if item.Quantity > 0 {
			line.UnitPrice = item.Price / float64(item.Quantity)
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
		}
		out = append(out, line)
	}
	return out
}

// CreateOrder turns the caller's cart into an order and empties the cart.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req createOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = models.PaymentCash
	}
	if !models.ValidPaymentMethod(paymentMethod) {
		return apperr.Validation("INVALID_PAYMENT_METHOD")
	}

	var addressID uuid.UUID
	if req.AddressID != "" {
		if addressID, err = uuid.Parse(req.AddressID); err != nil {
			return apperr.Validation("INVALID_ADDRESS_ID")
		}
	}

	now := time.Now()
	order := models.Order{
		UserID:        userID,
		OrderNumber:   generateOrderNumber(now),
		PaymentMethod: paymentMethod,
		Status:        models.OrderStatusNew,
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if addressID != uuid.Nil {
			var address models.UserAddress
			if err := tx.First(&address, "id = ? AND user_id = ?", addressID, userID).Error; err != nil {
				return dbError(err, "ADDRESS_NOT_FOUND", "", "CREATE_ORDER_FAILED")
			}
			order.ShippingAddress = models.ShippingAddress{
				Details: address.Details,
				Street:  address.Street,
				City:    address.City,
				ZipCode: address.ZipCode,
			}
		}

		cart, err := lockCart(tx, userID)
		if err != nil {
			return dbError(err, "CART_IS_EMPTY", "", "CREATE_ORDER_FAILED")
		}

		var items []models.CartItem
		if err := tx.Preload("Product").Where("cart_id = ?", cart.ID).
			Order("created_at asc").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return apperr.NotFound("CART_IS_EMPTY")
		}

		order.Items = snapshotItems(items)
		order.TotalPrice = calculateTotalPrice(items)
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Cart{}, "id = ?", cart.ID).Error
	})
	if err != nil {
		return dbError(err, "", "", "CREATE_ORDER_FAILED")
	}

	h.notifyNewOrder(order)

	return respond(c, fiber.StatusCreated, "ORDER_CREATED", fiber.Map{"order": order})
}

// notifyNewOrder posts the order to the admin chat in the background.
func (h *OrderHandler) notifyNewOrder(order models.Order) {
	if !h.telegram.Enabled() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var user models.User
		if err := h.db.WithContext(ctx).Select("name", "email").First(&user, "id = ?", order.UserID).Error; err != nil {
			logging.Warn(h.logger, "order notification: user lookup failed", err)
		}

		items := make([]services.OrderItemNotification, 0, len(order.Items))
		for _, item := range order.Items {
			items = append(items, services.OrderItemNotification{
				Name:     item.ProductName,
				Quantity: item.Quantity,
				Price:    item.UnitPrice,
			})
		}

		addr := order.ShippingAddress
		notification := services.OrderNotification{
			OrderNumber:   order.OrderNumber,
			Items:         items,
			TotalAmount:   order.TotalPrice,
			Currency:      h.currency,
			CustomerName:  user.Name,
			CustomerEmail: user.Email,
			Address:       strings.Trim(strings.Join([]string{addr.Street, addr.City, addr.ZipCode}, ", "), ", "),
			PaymentMethod: order.PaymentMethod,
			Status:        order.Status,
		}

		if err := h.telegram.NotifyNewOrder(ctx, notification); err != nil {
			logging.Warn(h.logger, "order notification failed", err)
			h.metrics.NotificationFailed("telegram")
		}
	}()
}

// ListOrders returns orders for authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Where("user_id = ?", userID).Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return apperr.Wrap("GET_ORDERS_FAILED", err)
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return apperr.Wrap("GET_ORDERS_FAILED", err)
	}

	return respond(c, fiber.StatusOK, "ORDER_FOUND", fiber.Map{
		"orders":     orders,
		"pagination": pg.Meta(total),
	})
}

// GetOrder returns a single order for the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	id, err := parseID(c, "id", "INVALID_ORDER_ID")
	if err != nil {
		return err
	}

	var order models.Order
	if err := h.db.WithContext(c.UserContext()).Preload("Items").
		First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return dbError(err, "ORDER_NOT_FOUND", "", "GET_ORDER_FAILED")
	}

	return respond(c, fiber.StatusOK, "ORDER_FOUND", fiber.Map{"order": order})
}

// RegisterRoutes mounts order endpoints. The router must already require auth.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/", h.CreateOrder)
	router.Get("/", h.ListOrders)
	router.Get("/:id", h.GetOrder)
}
