package processedevent

import (
	"context"
	"time"
)

type Repository interface {
	// MarkProcessed claims the event id. It fails with ErrAlreadyProcessed if the id was already claimed.
	MarkProcessed(ctx context.Context, e *Event) error
	Exists(ctx context.Context, eventID string) (bool, error)
	// DeleteOlderThan removes records processed before cutoff and returns how many were removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
