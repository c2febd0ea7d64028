package api

import (
	"github.com/gin-gonic/gin"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/api/middleware"
	v1 "github.com/whiteghostDev/Saas-lotus-sub000/internal/api/v1"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/config"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
)

// Handlers groups every v1 handler for router construction
type Handlers struct {
	Health       *v1.HealthHandler
	Events       *v1.EventsHandler
	Customer     *v1.CustomerHandler
	Metric       *v1.MetricHandler
	Plan         *v1.PlanHandler
	Subscription *v1.SubscriptionHandler
	Invoice      *v1.InvoiceHandler
	Balance      *v1.BalanceHandler
	Access       *v1.AccessHandler
	Alert        *v1.AlertHandler
	APIKey       *v1.APIKeyHandler
}

// NewRouter builds the HTTP surface. Everything under /v1 requires an API
// key; the health endpoint does not.
func NewRouter(handlers Handlers, cfg *config.Configuration, auth service.AuthService, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Sentry(cfg))
	router.Use(middleware.CORS)
	router.Use(middleware.RequestID)
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Health)

	v1Group := router.Group("/v1")
	v1Group.Use(middleware.Authenticate(cfg, auth, log))
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	router.POST("/track", handlers.Events.Track)
	router.GET("/usage", handlers.Events.GetUsage)

	customers := router.Group("/customers")
	{
		customers.POST("", handlers.Customer.Create)
		customers.POST("/batch", handlers.Customer.BatchCreate)
		customers.GET("", handlers.Customer.List)
		customers.GET("/:id", handlers.Customer.Get)
		customers.PATCH("/:id", handlers.Customer.Update)
		customers.GET("/:id/balance", handlers.Customer.Balance)
	}

	metrics := router.Group("/metrics")
	{
		metrics.POST("", handlers.Metric.Create)
		metrics.GET("", handlers.Metric.List)
		metrics.GET("/:id", handlers.Metric.Get)
		metrics.POST("/:id/archive", handlers.Metric.Archive)
		metrics.GET("/:id/usage_alerts", handlers.Metric.ListAlerts)
	}

	plans := router.Group("/plans")
	{
		plans.POST("", handlers.Plan.Create)
		plans.GET("", handlers.Plan.List)
		plans.GET("/:id", handlers.Plan.Get)
		plans.POST("/:id/versions", handlers.Plan.AddVersion)
		plans.GET("/:id/versions", handlers.Plan.ListVersions)
	}
	router.POST("/plan_versions/:id/retire", handlers.Plan.RetireVersion)

	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("/add", handlers.Subscription.Attach)
		subscriptions.GET("", handlers.Subscription.List)
		subscriptions.GET("/:id", handlers.Subscription.Get)
		subscriptions.POST("/cancel", handlers.Subscription.Cancel)
		subscriptions.POST("/update", handlers.Subscription.Update)
		subscriptions.POST("/attach_addon", handlers.Subscription.AttachAddOn)
		subscriptions.POST("/update_addon", handlers.Subscription.UpdateAddOn)
		subscriptions.POST("/cancel_addon", handlers.Subscription.CancelAddOn)
	}

	router.GET("/metric_access", handlers.Access.MetricAccess)
	router.GET("/feature_access", handlers.Access.FeatureAccess)

	balances := router.Group("/balance_adjustments")
	{
		balances.POST("", handlers.Balance.Create)
		balances.GET("", handlers.Balance.List)
		balances.GET("/:id", handlers.Balance.Get)
		balances.POST("/:id/void", handlers.Balance.Void)
	}

	invoices := router.Group("/invoices")
	{
		invoices.GET("", handlers.Invoice.List)
		invoices.GET("/:id", handlers.Invoice.Get)
		invoices.PATCH("/:id", handlers.Invoice.Update)
	}

	alerts := router.Group("/usage_alerts")
	{
		alerts.POST("", handlers.Alert.Create)
		alerts.DELETE("/:id", handlers.Alert.Delete)
	}

	keys := router.Group("/api_keys")
	{
		keys.POST("", handlers.APIKey.Create)
		keys.DELETE("/:prefix", handlers.APIKey.Revoke)
	}
}
