package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/recruitlink/billing/internal/domain/processedevent"
	"github.com/recruitlink/billing/internal/domain/subscription"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/testutil"
	"github.com/recruitlink/billing/internal/types"
	"github.com/recruitlink/billing/internal/webhook/payload"
	"github.com/stretchr/testify/suite"
)

type EventMaintenanceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service EventMaintenanceService
}

func TestEventMaintenanceService(t *testing.T) {
	suite.Run(t, new(EventMaintenanceServiceSuite))
}

func (s *EventMaintenanceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := ServiceParams{
		Logger:                s.GetLogger(),
		Config:                s.GetConfig(),
		DB:                    s.GetDB(),
		Gateway:               s.GetGateway(),
		PlanRepo:              s.GetStores().PlanRepo,
		SubRepo:               s.GetStores().SubscriptionRepo,
		LedgerRepo:            s.GetStores().LedgerRepo,
		CustomerRepo:          s.GetStores().CustomerRepo,
		ProcessedEventRepo:    s.GetStores().ProcessedEventRepo,
		NotificationPublisher: s.GetPublisher(),
	}
	s.service = NewEventMaintenanceService(params, NewEventDispatcher(params))
}

func (s *EventMaintenanceServiceSuite) TestPurgeKeepsRecentEvents() {
	s.GetConfig().Webhook.EventRetention = 24 * time.Hour
	now := time.Now().UTC()
	for id, processedAt := range map[string]time.Time{
		"evt_old":    now.Add(-48 * time.Hour),
		"evt_recent": now.Add(-time.Hour),
	} {
		s.Require().NoError(s.ProcessedEventStore().MarkProcessed(s.GetContext(), &processedevent.Event{
			EventID:        id,
			EventType:      payload.EventInvoicePaid,
			EventCreatedAt: processedAt,
			ProcessedAt:    processedAt,
		}))
	}

	deleted, err := s.service.PurgeProcessed(s.GetContext())
	s.Require().NoError(err)

	s.Equal(int64(1), deleted)
	exists, _ := s.ProcessedEventStore().Exists(s.GetContext(), "evt_recent")
	s.True(exists)
	exists, _ = s.ProcessedEventStore().Exists(s.GetContext(), "evt_old")
	s.False(exists)
}

func (s *EventMaintenanceServiceSuite) TestReplayAppliesOnce() {
	sub := s.SubscriptionStore().Seed(&subscription.Subscription{UserID: "user_1", PlanID: "plan_1"})
	object, err := json.Marshal(map[string]any{
		"id":       "sub_ext_1",
		"status":   "active",
		"metadata": map[string]string{"subscription_id": sub.ID},
	})
	s.Require().NoError(err)
	ev, err := payload.NewEvent("evt_1", payload.EventSubscriptionUpdated, time.Now().Unix(), false, object)
	s.Require().NoError(err)
	s.GetGateway().AddEvent(ev)

	s.Require().NoError(s.service.Replay(s.GetContext(), "evt_1"))
	updated, err := s.SubscriptionStore().Get(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, updated.Status)

	s.True(ierr.IsAlreadyProcessed(s.service.Replay(s.GetContext(), "evt_1")))
	s.True(ierr.IsNotFound(s.service.Replay(s.GetContext(), "evt_missing")))
}
