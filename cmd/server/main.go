package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/recruitlink/billing/internal/api"
	v1 "github.com/recruitlink/billing/internal/api/v1"
	"github.com/recruitlink/billing/internal/cache"
	"github.com/recruitlink/billing/internal/config"
	"github.com/recruitlink/billing/internal/integration/s3"
	"github.com/recruitlink/billing/internal/integration/stripe"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/postgres"
	pubsubRouter "github.com/recruitlink/billing/internal/pubsub/router"
	"github.com/recruitlink/billing/internal/pyroscope"
	repository "github.com/recruitlink/billing/internal/repository/postgres"
	"github.com/recruitlink/billing/internal/sentry"
	"github.com/recruitlink/billing/internal/service"
	"github.com/recruitlink/billing/internal/types"
	"github.com/recruitlink/billing/internal/validator"
	"github.com/recruitlink/billing/internal/webhook"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	// request dto validation uses the package level validator
	validator.NewValidator()

	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			provideCache,

			// Postgres
			postgres.NewDB,
			provideDBClient,

			// Processor
			provideGateway,

			// Ledger export
			provideUploader,

			// PubSub
			pubsubRouter.NewRouter,
		),
	)

	// Monitoring
	opts = append(opts, sentry.Module(), pyroscope.Module())

	// Repositories
	opts = append(opts, repository.Module)

	// Notification pipeline (must be initialised before services)
	opts = append(opts, webhook.Module)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewPlanSyncService,
			service.NewEventDispatcher,
			service.NewCustomerService,
			service.NewBillingReadService,
			service.NewHealthService,
			service.NewEventMaintenanceService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			syncPlansOnStartup,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideCache() cache.Cache {
	return cache.NewInMemoryCache(service.ProcessorHealthTTL)
}

func provideDBClient(db *postgres.DB) postgres.IClient {
	return db
}

func provideGateway(cfg *config.Configuration, logger *logger.Logger) stripe.Gateway {
	return stripe.NewClient(cfg, logger)
}

// provideUploader returns nil when ledger export is disabled
func provideUploader(cfg *config.Configuration, logger *logger.Logger) (s3.Uploader, error) {
	if !cfg.S3.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s3.NewClient(ctx, cfg, logger)
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	gateway stripe.Gateway,
	sentryService *sentry.Service,
	healthService service.HealthService,
	dispatcher service.EventDispatcher,
	billingReadService service.BillingReadService,
	customerService service.CustomerService,
) api.Handlers {
	return api.Handlers{
		Health:  v1.NewHealthHandler(healthService),
		Webhook: v1.NewWebhookHandler(cfg, gateway, dispatcher, sentryService, logger),
		Admin:   v1.NewAdminHandler(billingReadService, customerService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger, profiler *pyroscope.Service) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, profiler)
}

// syncPlansOnStartup blocks startup until the catalog matches the processor,
// so webhooks are never served against an unverified catalog
func syncPlansOnStartup(lc fx.Lifecycle, cfg *config.Configuration, planSync service.PlanSyncService, log *logger.Logger) {
	if !cfg.Billing.SyncOnStartup {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			report, err := planSync.Sync(ctx)
			if err != nil {
				log.Errorw("plan synchronization failed, refusing to start", "error", err)
				return err
			}
			log.Infow("plans synchronized on startup", "plans_verified", report.PlansVerified)
			return nil
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	db *postgres.DB,
	router *pubsubRouter.Router,
	notificationService *webhook.NotificationService,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal, types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
		startMessageRouter(lc, router, notificationService, log)
	case types.ModeAWSLambdaAPI:
		startMessageRouter(lc, router, notificationService, log)
		startAWSLambdaAPI(lc, r)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

// startAWSLambdaAPI hands the engine to the lambda runtime once every other hook has started
func startAWSLambdaAPI(lc fx.Lifecycle, r *gin.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ginLambda := ginadapter.New(r)
			go lambda.Start(ginLambda.ProxyWithContext)
			return nil
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	notificationService *webhook.NotificationService,
	log *logger.Logger,
) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// handlers must be registered before the router runs
			if err := notificationService.Start(ctx, router); err != nil {
				cancel()
				return err
			}
			log.Info("starting message router")
			go func() {
				if err := router.Run(runCtx); err != nil {
					log.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping message router")
			cancel()
			if err := router.Close(); err != nil {
				return err
			}
			return notificationService.Stop()
		},
	})
}
