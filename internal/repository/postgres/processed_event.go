package postgres

import (
	"context"
	"time"

	"github.com/recruitlink/billing/internal/domain/processedevent"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/postgres"
)

type processedEventRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewProcessedEventRepository(db *postgres.DB, logger *logger.Logger) processedevent.Repository {
	return &processedEventRepository{db: db, logger: logger}
}

// MarkProcessed relies on the primary key: concurrent deliveries of the same event
// block on the row lock until the first transaction commits or rolls back.
func (r *processedEventRepository) MarkProcessed(ctx context.Context, e *processedevent.Event) error {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `
		INSERT INTO processed_events (event_id, event_type, event_created_at, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`, e.EventID, e.EventType, e.EventCreatedAt, e.ProcessedAt)
	if err != nil {
		return translate(err, "Processed event", nil)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return translate(err, "Processed event", nil)
	}
	if n == 0 {
		return ierr.NewErrorf("event %s already processed", e.EventID).
			WithHint("Event already processed").
			Mark(ierr.ErrAlreadyProcessed)
	}
	return nil
}

func (r *processedEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.GetQuerier(ctx).GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)
	`, eventID)
	if err != nil {
		return false, translate(err, "Processed event", nil)
	}
	return exists, nil
}

func (r *processedEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `
		DELETE FROM processed_events WHERE processed_at < $1
	`, cutoff)
	if err != nil {
		r.logger.Errorw("failed to purge processed events", "cutoff", cutoff, "error", err)
		return 0, translate(err, "Processed event", nil)
	}
	return result.RowsAffected()
}
