package internal

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recruitlink/billing/internal/config"
	"github.com/recruitlink/billing/internal/integration/s3"
	"github.com/recruitlink/billing/internal/integration/stripe"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/postgres"
	repository "github.com/recruitlink/billing/internal/repository/postgres"
	"github.com/recruitlink/billing/internal/service"
	"github.com/recruitlink/billing/internal/validator"
	"github.com/recruitlink/billing/internal/webhook"
	"github.com/recruitlink/billing/internal/webhook/publisher"
)

type billingScript struct {
	log    *logger.Logger
	db     *postgres.DB
	params service.ServiceParams
}

func newBillingScript(withUploader bool) (*billingScript, error) {
	validator.NewValidator()

	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	ps, err := webhook.NewPubSub(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub: %w", err)
	}
	pub, err := publisher.NewPublisher(ps, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification publisher: %w", err)
	}

	var uploader s3.Uploader
	if withUploader {
		client, err := s3.NewClient(context.Background(), cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
		uploader = client
	}

	return &billingScript{
		log: log,
		db:  db,
		params: service.NewServiceParams(
			log,
			cfg,
			db,
			stripe.NewClient(cfg, log),
			uploader,
			repository.NewPlanRepository(db, log),
			repository.NewSubscriptionRepository(db, log),
			repository.NewLedgerRepository(db, log),
			repository.NewCustomerRepository(db, log),
			repository.NewProcessedEventRepository(db, log),
			pub,
		),
	}, nil
}

// interruptContext is cancelled on SIGINT or SIGTERM so long-running steps stop between units of work
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (s *billingScript) close() {
	if err := s.params.NotificationPublisher.Close(); err != nil {
		s.log.Warnw("failed to close notification publisher", "error", err)
	}
	_ = s.db.Close()
}

// SyncPlans mirrors the configured plan catalog onto the processor
func SyncPlans() error {
	script, err := newBillingScript(false)
	if err != nil {
		return err
	}
	defer script.close()

	ctx, stop := interruptContext()
	defer stop()

	report, err := service.NewPlanSyncService(script.params).Sync(ctx)
	if err != nil {
		return err
	}

	log.Printf("Plans created: %d, products created: %d, prices created: %d, prices reused: %d, plans verified: %d (%s)\n",
		report.PlansCreated, report.ProductsCreated, report.PricesCreated, report.PricesReused, report.PlansVerified, report.Duration)
	return nil
}

// ExportLedger uploads the ledger entries created in [FROM, TO) to the export bucket.
// Both bounds are dates (2006-01-02); TO defaults to today and FROM to the day before TO.
func ExportLedger() error {
	to, err := parseDate(os.Getenv("TO"), time.Now().UTC().Truncate(24*time.Hour))
	if err != nil {
		return err
	}
	from, err := parseDate(os.Getenv("FROM"), to.AddDate(0, 0, -1))
	if err != nil {
		return err
	}

	script, err := newBillingScript(true)
	if err != nil {
		return err
	}
	defer script.close()

	ctx, stop := interruptContext()
	defer stop()

	result, err := service.NewLedgerExportService(script.params).Export(ctx, from, to)
	if err != nil {
		return err
	}

	if !result.Uploaded {
		log.Printf("No ledger entries between %s and %s\n", from.Format(time.DateOnly), to.Format(time.DateOnly))
		return nil
	}
	log.Printf("Exported %d ledger entries (%d bytes) to %s\n", result.Entries, result.Bytes, result.FileURL)
	return nil
}

// PurgeProcessedEvents drops processed event ids older than the retention window
func PurgeProcessedEvents() error {
	script, err := newBillingScript(false)
	if err != nil {
		return err
	}
	defer script.close()

	svc := service.NewEventMaintenanceService(script.params, service.NewEventDispatcher(script.params))
	ctx, stop := interruptContext()
	defer stop()

	deleted, err := svc.PurgeProcessed(ctx)
	if err != nil {
		return err
	}
	log.Printf("Purged %d processed events\n", deleted)
	return nil
}

// ReplayEvent fetches EVENT_ID from the processor and applies it as if it had been delivered
func ReplayEvent() error {
	eventID := os.Getenv("EVENT_ID")
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}

	script, err := newBillingScript(false)
	if err != nil {
		return err
	}
	defer script.close()

	svc := service.NewEventMaintenanceService(script.params, service.NewEventDispatcher(script.params))
	ctx, stop := interruptContext()
	defer stop()

	if err := svc.Replay(ctx, eventID); err != nil {
		return err
	}
	log.Printf("Replayed event %s\n", eventID)
	return nil
}

func parseDate(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", value, err)
	}
	return t.UTC(), nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
