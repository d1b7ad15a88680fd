package service

import (
	"github.com/recruitlink/billing/internal/config"
	"github.com/recruitlink/billing/internal/domain/customer"
	"github.com/recruitlink/billing/internal/domain/ledger"
	"github.com/recruitlink/billing/internal/domain/plan"
	"github.com/recruitlink/billing/internal/domain/processedevent"
	"github.com/recruitlink/billing/internal/domain/subscription"
	"github.com/recruitlink/billing/internal/integration/s3"
	"github.com/recruitlink/billing/internal/integration/stripe"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/postgres"
	"github.com/recruitlink/billing/internal/webhook/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger  *logger.Logger
	Config  *config.Configuration
	DB      postgres.IClient
	Gateway stripe.Gateway
	// Uploader is nil when ledger export is not configured
	Uploader s3.Uploader

	// Repositories
	PlanRepo           plan.Repository
	SubRepo            subscription.Repository
	LedgerRepo         ledger.Repository
	CustomerRepo       customer.Repository
	ProcessedEventRepo processedevent.Repository

	// Publishers
	NotificationPublisher publisher.NotificationPublisher
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	gateway stripe.Gateway,
	uploader s3.Uploader,
	planRepo plan.Repository,
	subRepo subscription.Repository,
	ledgerRepo ledger.Repository,
	customerRepo customer.Repository,
	processedEventRepo processedevent.Repository,
	notificationPublisher publisher.NotificationPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:                logger,
		Config:                config,
		DB:                    db,
		Gateway:               gateway,
		Uploader:              uploader,
		PlanRepo:              planRepo,
		SubRepo:               subRepo,
		LedgerRepo:            ledgerRepo,
		CustomerRepo:          customerRepo,
		ProcessedEventRepo:    processedEventRepo,
		NotificationPublisher: notificationPublisher,
	}
}
