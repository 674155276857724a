package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) {
	issuer := utils.NewTokenIssuer(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	var mailer services.Mailer = services.NewLogMailer(logger)
	if cfg.MailEnabled() {
		mailer = services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	}

	telegramService := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, logger)
	authService := services.NewAuthService(repository.NewAccountRepository(db), issuer, mailer, logger, m).
		WithAdminRegistration(cfg.AllowAdminRegistration)

	authHandler := handlers.NewAuthHandler(authService)
	profileHandler := handlers.NewProfileHandler(db, cfg.UploadDir, logger)
	categoryHandler := handlers.NewCategoryHandler(db)
	productHandler := handlers.NewProductHandler(db)
	cartHandler := handlers.NewCartHandler(db)
	orderHandler := handlers.NewOrderHandler(db, telegramService, cfg.Currency, logger, m)
	adminHandler := handlers.NewAdminHandler(db, telegramService, logger)

	protect := middleware.AuthMiddleware(issuer)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := database.Ping(db); err != nil {
			logger.Warn("health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": false, "message": "DATABASE_UNAVAILABLE"})
		}
		return c.JSON(fiber.Map{"status": true, "message": "OK"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	app.Static(handlers.ImagesURLPrefix, cfg.UploadDir)

	api := app.Group("/api/v1")

	authHandler.RegisterRoutes(api.Group("/auth"), protect)
	profileHandler.RegisterRoutes(api.Group("/users", protect))
	categoryHandler.RegisterRoutes(api.Group("/categories"), protect, adminOnly)
	productHandler.RegisterRoutes(api.Group("/products"), protect, adminOnly)
	cartHandler.RegisterRoutes(api.Group("/cart", protect))
	orderHandler.RegisterRoutes(api.Group("/orders", protect))
	adminHandler.RegisterRoutes(api.Group("/admin", protect, adminOnly))

	app.Use(handlers.NotFound)
}
