package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/logging"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db       *gorm.DB
	telegram *services.TelegramService
	logger   *slog.Logger
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, telegram *services.TelegramService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{db: db, telegram: telegram, logger: logger}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return apperr.Wrap("DASHBOARD_FAILED", err)
	}

	var totalOrders int64
	if err := db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return apperr.Wrap("DASHBOARD_FAILED", err)
	}

	var totalProducts int64
	if err := db.Model(&models.Product{}).Count(&totalProducts).Error; err != nil {
		return apperr.Wrap("DASHBOARD_FAILED", err)
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var statusCounts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return apperr.Wrap("DASHBOARD_FAILED", err)
	}

	ordersByStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	var totalRevenue float64
	if err := db.Model(&models.Order{}).
		Where("status <> ?", models.OrderStatusCanceled).
		Select("COALESCE(SUM(total_price), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return apperr.Wrap("DASHBOARD_FAILED", err)
	}

	var todayRevenue float64
	if err := db.Model(&models.Order{}).
		Where("status <> ? AND created_at::date = CURRENT_DATE", models.OrderStatusCanceled).
		Select("COALESCE(SUM(total_price), 0)").
		Scan(&todayRevenue).Error; err != nil {
		return apperr.Wrap("DASHBOARD_FAILED", err)
	}

	return respond(c, fiber.StatusOK, "SUCCESS_GET_DASHBOARD", fiber.Map{
		"dashboard": fiber.Map{
			"totalUsers":     totalUsers,
			"totalOrders":    totalOrders,
			"totalProducts":  totalProducts,
			"totalRevenue":   totalRevenue,
			"todayRevenue":   todayRevenue,
			"ordersByStatus": ordersByStatus,
		},
	})
}

// ListAllOrders returns all orders with pagination, filtering, and user info.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		if !validOrderStatus(status) {
			return apperr.Validation("INVALID_ORDER_STATUS")
		}
		query = query.Where("status = ?", status)
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + search + "%"
		query = query.Where("order_number ILIKE ? OR shipping_city ILIKE ?", q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return apperr.Wrap("GET_ORDERS_FAILED", err)
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("User").
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

// ListAllUsers returns all registered users with pagination and search.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.User{})

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + search + "%"
		query = query.Where("name ILIKE ? OR email ILIKE ? OR phone ILIKE ?", q, q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return apperr.Wrap("GET_USERS_FAILED", err)
	}

	var users []models.User
	if err := query.Select("id, name, email, role, phone, profile_image, is_verified, created_at, updated_at").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return apperr.Wrap("GET_USERS_FAILED", err)
	}

	type userStats struct {
		UserID     string
		OrderCount int64
		TotalSpent float64
	}
	var stats []userStats
	if err := h.db.WithContext(c.UserContext()).Model(&models.Order{}).
		Select("user_id, count(*) as order_count, COALESCE(SUM(total_price), 0) as total_spent").
		Where("status <> ?", models.OrderStatusCanceled).
		Group("user_id").
		Scan(&stats).Error; err != nil {
		return apperr.Wrap("GET_USERS_FAILED", err)
	}

	statsMap := make(map[string]userStats, len(stats))
	for _, s := range stats {
		statsMap[s.UserID] = s
	}

	type userResponse struct {
		models.User
		OrderCount int64   `json:"orderCount"`
		TotalSpent float64 `json:"totalSpent"`
	}

	result := make([]userResponse, len(users))
	for i, u := range users {
		result[i] = userResponse{User: u}
		if s, ok := statsMap[u.ID.String()]; ok {
			result[i].OrderCount = s.OrderCount
			result[i].TotalSpent = s.TotalSpent
		}
	}

	return respond(c, fiber.StatusOK, "FOUND_USERS", fiber.Map{
		"users":      result,
		"pagination": pg.Meta(total),
	})
}

// RecentOrders returns the most recent 5 orders for the dashboard.
func (h *AdminHandler) RecentOrders(c *fiber.Ctx) error {
	var orders []models.Order
	if err := h.db.WithContext(c.UserContext()).Preload("Items").Preload("User").
		Order("created_at desc").
		Limit(5).
		Find(&orders).Error; err != nil {
		return apperr.Wrap("GET_ORDERS_FAILED", err)
	}

	return respond(c, fiber.StatusOK, "ORDER_FOUND", fiber.Map{"orders": orders})
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order along new → accepted → delivered, or cancels it.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "INVALID_ORDER_ID")
	if err != nil {
		return err
	}

	var req updateOrderStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Status == "" {
		return apperr.Required("status")
	}
	if !validOrderStatus(req.Status) {
		return apperr.Validation("INVALID_ORDER_STATUS")
	}

	var order models.Order
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, "id = ?", id).Error; err != nil {
			return dbError(err, "ORDER_NOT_FOUND", "", "UPDATE_ORDER_STATUS_FAILED")
		}
		if err := transitionOrder(&order, req.Status, time.Now()); err != nil {
			return err
		}
		return tx.Model(&order).Select("status", "is_delivered", "delivered_at").Updates(&order).Error
	})
	if err != nil {
		return dbError(err, "", "", "UPDATE_ORDER_STATUS_FAILED")
	}

	if h.telegram.Enabled() {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()
		if err := h.telegram.NotifyOrderStatus(ctx, order.OrderNumber, order.Status); err != nil {
			logging.Warn(h.logger, "order status notification failed", err)
		}
	}

	return respond(c, fiber.StatusOK, "SUCCESS_UPDATE_ORDER_STATUS", fiber.Map{"order": order})
}

// MarkOrderPaid records payment for an order exactly once.
func (h *AdminHandler) MarkOrderPaid(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "INVALID_ORDER_ID")
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	now := time.Now()
	result := db.Model(&models.Order{}).
		Where("id = ? AND is_paid = ? AND status <> ?", id, false, models.OrderStatusCanceled).
		Updates(map[string]any{"is_paid": true, "paid_at": now})
	if result.Error != nil {
		return apperr.Wrap("MARK_ORDER_PAID_FAILED", result.Error)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", id).Error; err != nil {
		return dbError(err, "ORDER_NOT_FOUND", "", "MARK_ORDER_PAID_FAILED")
	}
	if result.RowsAffected == 0 {
		if order.Status == models.OrderStatusCanceled {
			return apperr.Conflict("ORDER_IS_CANCELED")
		}
		return apperr.Conflict("ORDER_ALREADY_PAID")
	}

	return respond(c, fiber.StatusOK, "SUCCESS_MARK_ORDER_PAID", fiber.Map{"order": order})
}

// RegisterRoutes mounts admin endpoints. The router must already require the admin role.
func (h *AdminHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/dashboard", h.DashboardStats)
	router.Get("/orders", h.ListAllOrders)
	router.Get("/orders/recent", h.RecentOrders)
	router.Get("/users", h.ListAllUsers)
	router.Put("/orders/:id/status", h.UpdateOrderStatus)
	router.Put("/orders/:id/paid", h.MarkOrderPaid)
}
