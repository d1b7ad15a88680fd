package service

import (
	"context"
	"time"

	ierr "github.com/recruitlink/billing/internal/errors"
)

const defaultEventRetention = 30 * 24 * time.Hour

// EventMaintenanceService holds the operator actions on processor events
type EventMaintenanceService interface {
	// PurgeProcessed forgets processed event ids older than the retention window
	PurgeProcessed(ctx context.Context) (int64, error)
	// Replay fetches an event from the processor and dispatches it again.
	// An event that was already applied fails with ErrAlreadyProcessed.
	Replay(ctx context.Context, eventID string) error
}

type eventMaintenanceService struct {
	ServiceParams
	dispatcher EventDispatcher
}

func NewEventMaintenanceService(params ServiceParams, dispatcher EventDispatcher) EventMaintenanceService {
	return &eventMaintenanceService{
		ServiceParams: params,
		dispatcher:    dispatcher,
	}
}

func (s *eventMaintenanceService) PurgeProcessed(ctx context.Context) (int64, error) {
	retention := s.Config.Webhook.EventRetention
	if retention <= 0 {
		retention = defaultEventRetention
	}
	cutoff := time.Now().UTC().Add(-retention)

	deleted, err := s.ProcessedEventRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.Logger.Infow("purged processed events",
		"deleted", deleted,
		"cutoff", cutoff,
		"retention", retention.String(),
	)
	return deleted, nil
}

func (s *eventMaintenanceService) Replay(ctx context.Context, eventID string) error {
	if eventID == "" {
		return ierr.NewError("event id is required").
			WithHint("Event ID is required").
			Mark(ierr.ErrValidation)
	}

	ev, err := s.Gateway.RetrieveEvent(ctx, eventID)
	if err != nil {
		return err
	}

	s.Logger.Infow("replaying processor event", "event_id", ev.ID, "event_type", ev.Type)
	return s.dispatcher.Dispatch(ctx, ev)
}
