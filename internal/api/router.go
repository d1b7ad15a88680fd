package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/recruitlink/billing/internal/api/v1"
	"github.com/recruitlink/billing/internal/config"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/pyroscope"
	"github.com/recruitlink/billing/internal/rest/middleware"
	"github.com/recruitlink/billing/internal/types"
)

type Handlers struct {
	Health  *v1.HealthHandler
	Webhook *v1.WebhookHandler
	Admin   *v1.AdminHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, profiler *pyroscope.Service) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.SentryRequestTags,
		middleware.PyroscopeMiddleware(profiler),
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	v1Router := router.Group("/v1")

	// the processor authenticates with the payload signature, not an api key
	webhooks := v1Router.Group("/webhooks")
	{
		webhooks.POST("/processor", handlers.Webhook.HandleProcessorWebhook)
	}

	admin := v1Router.Group("/admin")
	admin.Use(middleware.APIKeyAuthMiddleware(cfg, logger))
	{
		admin.GET("/users/:user_id/subscription", handlers.Admin.GetCurrentSubscription)
		admin.GET("/subscriptions/:id/ledger", handlers.Admin.ListLedgerHistory)
		admin.POST("/customers", handlers.Admin.EnsureCustomer)
	}

	return router
}
