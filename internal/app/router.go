package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"payconfirm/internal/handler"
	"payconfirm/internal/middleware"
	"payconfirm/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	PaymentHandler     *handler.PaymentHandler
	WebhookHandler     *handler.WebhookHandler
	BankDetailsHandler *handler.BankDetailsHandler

	// ResponseCache enables Idempotency-Key replay on payment routes when set.
	ResponseCache  redis.ResponseCacheInterface
	IdempotencyTTL time.Duration

	// RateLimiter limits customer-facing routes when set. Webhooks are exempt
	// since providers retry on rejection.
	RateLimiter *middleware.RateLimiter

	AdminSecret string
	NewRelicApp *newrelic.Application
	Logger      *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(deps.Logger))
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := []gin.HandlerFunc{}
	if deps.RateLimiter != nil {
		limited = append(limited, deps.RateLimiter.Middleware())
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Payment routes.
		payments := v1.Group("/payments", limited...)
		payments.Use(middleware.IdempotencyMiddleware(deps.ResponseCache, deps.IdempotencyTTL, deps.Logger))
		{
			payments.POST("/confirm", deps.PaymentHandler.Confirm)
			payments.POST("/:id/assert-paid", deps.PaymentHandler.AssertPaid)
		}

		// Webhook routes.
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/card", deps.WebhookHandler.Card)
			webhooks.POST("/gateway", deps.WebhookHandler.Gateway)
		}

		// Bank transfer instructions.
		banks := v1.Group("/bank-details", limited...)
		{
			banks.GET("", deps.BankDetailsHandler.List)
			banks.GET("/:currency", deps.BankDetailsHandler.Get)
		}

		// Admin routes.
		admin := v1.Group("/admin", middleware.AdminAuth(deps.AdminSecret))
		{
			admin.GET("/payments/:id", deps.PaymentHandler.GetPayment)
		}
	}

	return router
}
