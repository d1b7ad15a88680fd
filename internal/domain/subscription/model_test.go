package subscription

import (
	"testing"
	"time"

	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type TransitionSuite struct {
	suite.Suite
	base time.Time
	sub  *Subscription
}

func TestTransitionSuite(t *testing.T) {
	suite.Run(t, new(TransitionSuite))
}

func (s *TransitionSuite) SetupTest() {
	s.base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.sub = &Subscription{
		ID:     "sub_1",
		UserID: "user_1",
		PlanID: "plan_1",
		Status: types.SubscriptionStatusIncomplete,
	}
}

func (s *TransitionSuite) TestFirstEventApplies() {
	next, changed, err := s.sub.Apply(Transition{
		Status:                 types.SubscriptionStatusActive,
		EventTime:              s.base,
		ExternalSubscriptionID: "sub_ext_1",
	})
	s.Require().NoError(err)
	s.True(changed)
	s.Equal(types.SubscriptionStatusActive, next.Status)
	s.Equal(s.base, *next.StatusChangedAt)
	s.Equal("sub_ext_1", *next.ExternalSubscriptionID)
	// the receiver is never mutated
	s.Equal(types.SubscriptionStatusIncomplete, s.sub.Status)
	s.Nil(s.sub.StatusChangedAt)
}

func (s *TransitionSuite) TestOlderEventIsDiscarded() {
	s.sub.Status = types.SubscriptionStatusCanceled
	s.sub.StatusChangedAt = lo.ToPtr(s.base)

	next, changed, err := s.sub.Apply(Transition{
		Status:    types.SubscriptionStatusActive,
		EventTime: s.base.Add(-time.Second),
	})
	s.Require().NoError(err)
	s.False(changed)
	s.Equal(types.SubscriptionStatusCanceled, next.Status)
}

func (s *TransitionSuite) TestNewerEventWins() {
	s.sub.Status = types.SubscriptionStatusPastDue
	s.sub.StatusChangedAt = lo.ToPtr(s.base)

	periodStart := s.base.Add(time.Hour)
	periodEnd := periodStart.AddDate(0, 1, 0)
	next, changed, err := s.sub.Apply(Transition{
		Status:      types.SubscriptionStatusActive,
		EventTime:   s.base.Add(time.Hour),
		PeriodStart: &periodStart,
		PeriodEnd:   &periodEnd,
	})
	s.Require().NoError(err)
	s.True(changed)
	s.Equal(types.SubscriptionStatusActive, next.Status)
	s.Equal(periodEnd, *next.CurrentPeriodEnd)
}

func (s *TransitionSuite) TestEqualTimestampKeepsCancellation() {
	s.sub.Status = types.SubscriptionStatusCanceled
	s.sub.StatusChangedAt = lo.ToPtr(s.base)

	_, changed, err := s.sub.Apply(Transition{
		Status:    types.SubscriptionStatusActive,
		EventTime: s.base,
	})
	s.Require().NoError(err)
	s.False(changed)
}

func (s *TransitionSuite) TestEqualTimestampCancellationApplies() {
	s.sub.Status = types.SubscriptionStatusActive
	s.sub.StatusChangedAt = lo.ToPtr(s.base)

	next, changed, err := s.sub.Apply(Transition{
		Status:    types.SubscriptionStatusCanceled,
		EventTime: s.base,
	})
	s.Require().NoError(err)
	s.True(changed)
	s.Equal(types.SubscriptionStatusCanceled, next.Status)
}

func (s *TransitionSuite) TestRejectsForeignProcessorSubscription() {
	s.sub.ExternalSubscriptionID = lo.ToPtr("sub_ext_1")

	_, _, err := s.sub.Apply(Transition{
		Status:                 types.SubscriptionStatusActive,
		EventTime:              s.base,
		ExternalSubscriptionID: "sub_ext_2",
	})
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func TestApplyValidation(t *testing.T) {
	sub := &Subscription{ID: "sub_1", Status: types.SubscriptionStatusActive}

	_, _, err := sub.Apply(Transition{Status: "paused", EventTime: time.Now()})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	_, _, err = sub.Apply(Transition{Status: types.SubscriptionStatusActive})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	start := time.Now()
	end := start.Add(-time.Hour)
	_, _, err = sub.Apply(Transition{
		Status:      types.SubscriptionStatusActive,
		EventTime:   start,
		PeriodStart: &start,
		PeriodEnd:   &end,
	})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
