package testutil

import (
	"context"
	"time"

	"github.com/recruitlink/billing/internal/domain/processedevent"
	ierr "github.com/recruitlink/billing/internal/errors"
)

var _ processedevent.Repository = (*InMemoryProcessedEventStore)(nil)

// InMemoryProcessedEventStore implements processedevent.Repository
type InMemoryProcessedEventStore struct {
	*InMemoryStore[processedevent.Event]
}

func NewInMemoryProcessedEventStore() *InMemoryProcessedEventStore {
	return &InMemoryProcessedEventStore{
		InMemoryStore: NewInMemoryStore[processedevent.Event](),
	}
}

func (s *InMemoryProcessedEventStore) MarkProcessed(ctx context.Context, e *processedevent.Event) error {
	if err := s.InMemoryStore.Create(ctx, e.EventID, *e); err != nil {
		return ierr.NewError("event already processed").
			WithHint("Event has already been processed").
			WithReportableDetails(map[string]any{"event_id": e.EventID}).
			Mark(ierr.ErrAlreadyProcessed)
	}
	return nil
}

func (s *InMemoryProcessedEventStore) Exists(ctx context.Context, eventID string) (bool, error) {
	_, err := s.InMemoryStore.Get(ctx, eventID)
	return err == nil, nil
}

func (s *InMemoryProcessedEventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	old := s.List(ctx, func(e processedevent.Event) bool {
		return e.ProcessedAt.Before(cutoff)
	}, nil)
	for _, e := range old {
		s.Delete(ctx, e.EventID)
	}
	return int64(len(old)), nil
}
