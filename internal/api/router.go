package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"fieldquote/backend/internal/api/handlers"
	"fieldquote/backend/internal/api/middleware"
	"fieldquote/backend/internal/config"
	"fieldquote/backend/internal/db"
	"fieldquote/backend/internal/services"
	"fieldquote/backend/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, database *mongo.Database, rdb *redis.Client, runner db.TxnRunner, store storage.ObjectStore, notifier services.Notifier, cleanup services.CleanupQueue) *gin.Engine {
	// Initialize services needed by API handlers HERE
	counterService := services.NewCounterService(database)
	quotationService := services.NewQuotationService(database, runner, counterService, notifier, cleanup, rdb, cfg)
	projectService := services.NewProjectService(database, runner, store, notifier, cleanup, rdb, cfg)
	invoiceService := services.NewInvoiceService(database, rdb, cfg)

	r := gin.Default()

	// Initialize Middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg)
	quotationHandler := handlers.NewQuotationHandler(quotationService)
	projectHandler := handlers.NewProjectHandler(projectService)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceService)

	v1 := r.Group("/v1")
	{
		// Public routes (rate limiting already applied globally)
		v1.POST("/auth/login", authHandler.Login)
		v1.GET("/invoice/:token", invoiceHandler.GetByToken)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Admin routes: the whole workflow surface is operator-only.
		adminRequired := v1.Group("/")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.POST("/quotation", quotationHandler.Create)
			adminRequired.GET("/quotation", quotationHandler.List)
			adminRequired.GET("/quotation/:number", quotationHandler.Get)
			adminRequired.PATCH("/quotation/:number", quotationHandler.Update)
			adminRequired.DELETE("/quotation/:number", quotationHandler.Delete)

			adminRequired.GET("/project", projectHandler.List)
			adminRequired.GET("/project/:id", projectHandler.Get)
			adminRequired.PATCH("/project/:id", projectHandler.Update)
			adminRequired.DELETE("/project/:id", projectHandler.Delete)
			adminRequired.POST("/project/:id/image", projectHandler.AttachImage)
			adminRequired.DELETE("/project/:id/image/*key", projectHandler.RemoveImage)
			adminRequired.GET("/project/:id/invoice", invoiceHandler.GetByProject)

			adminRequired.GET("/invoice", invoiceHandler.List)
		}
	}

	return r
}
