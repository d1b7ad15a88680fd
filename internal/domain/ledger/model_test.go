package ledger

import (
	"testing"
	"time"

	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type EntrySuite struct {
	suite.Suite
	attempt Attempt
}

func TestEntrySuite(t *testing.T) {
	suite.Run(t, new(EntrySuite))
}

func (s *EntrySuite) SetupTest() {
	s.attempt = Attempt{
		SubscriptionID:      "sub_1",
		UserID:              "user_1",
		ExternalReferenceID: "pi_1",
		Amount:              7999,
		Currency:            "USD",
		PaymentType:         types.PaymentTypeInitial,
	}
}

func (s *EntrySuite) succeeded() *Entry {
	e, err := NewSettled(s.attempt, Outcome{
		Status:            types.LedgerStatusSucceeded,
		ExternalPaymentID: "ch_1",
		ConfirmedAt:       time.Now(),
	})
	s.Require().NoError(err)
	return e
}

func (s *EntrySuite) TestNewPending() {
	e, err := NewPending(s.attempt)
	s.Require().NoError(err)
	s.Equal(types.LedgerStatusPending, e.Status)
	s.Nil(e.ExternalPaymentID)
	s.Nil(e.ConfirmedAt)
	s.Equal("usd", e.Currency)
	s.Zero(e.RefundedAmount)
}

func (s *EntrySuite) TestNewPendingValidation() {
	a := s.attempt
	a.Currency = "dollars"
	_, err := NewPending(a)
	s.True(ierr.IsValidation(err))

	a = s.attempt
	a.PaymentType = "gift"
	_, err = NewPending(a)
	s.True(ierr.IsValidation(err))

	a = s.attempt
	a.SubscriptionID = ""
	_, err = NewPending(a)
	s.True(ierr.IsValidation(err))
}

func (s *EntrySuite) TestFinalizeOnlyFromPending() {
	e := s.succeeded()
	s.Equal(types.LedgerStatusSucceeded, e.Status)
	s.Equal("ch_1", *e.ExternalPaymentID)
	s.NotNil(e.ConfirmedAt)

	_, err := e.Finalize(Outcome{Status: types.LedgerStatusFailed})
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *EntrySuite) TestFinalizeFailureKeepsReason() {
	pending, err := NewPending(s.attempt)
	s.Require().NoError(err)

	failed, err := pending.Finalize(Outcome{
		Status:            types.LedgerStatusFailed,
		ExternalPaymentID: "ch_declined",
		FailureCode:       "card_declined",
		FailureMessage:    "Your card was declined.",
	})
	s.Require().NoError(err)
	s.Equal(types.LedgerStatusFailed, failed.Status)
	s.Equal("card_declined", *failed.FailureCode)
	s.Equal("Your card was declined.", *failed.FailureMessage)
	s.Equal(types.LedgerStatusPending, pending.Status)
}

func (s *EntrySuite) TestFinalizeSucceededRequiresExternalID() {
	pending, err := NewPending(s.attempt)
	s.Require().NoError(err)

	_, err = pending.Finalize(Outcome{Status: types.LedgerStatusSucceeded})
	s.True(ierr.IsValidation(err))

	_, err = pending.Finalize(Outcome{Status: types.LedgerStatusRefunded, ExternalPaymentID: "ch_1"})
	s.True(ierr.IsValidation(err))
}

func (s *EntrySuite) TestPartialThenFullRefund() {
	e := s.succeeded()

	half, err := e.ApplyRefund(3999)
	s.Require().NoError(err)
	s.Equal(int64(3999), half.RefundedAmount)
	s.Equal(types.LedgerStatusSucceeded, half.Status)
	s.Equal(int64(7999), half.Amount)

	full, err := half.ApplyRefund(4000)
	s.Require().NoError(err)
	s.Equal(int64(7999), full.RefundedAmount)
	s.Equal(types.LedgerStatusRefunded, full.Status)
	s.Zero(full.RemainingRefundable())

	_, err = full.ApplyRefund(1)
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))
	s.Equal(types.LedgerStatusRefunded, full.Status)
	s.Equal(int64(7999), full.Amount)
}

func (s *EntrySuite) TestRefundNeverExceedsAmount() {
	e := s.succeeded()

	_, err := e.ApplyRefund(8000)
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))

	_, err = e.ApplyRefund(0)
	s.True(ierr.IsValidation(err))

	_, err = e.ApplyRefund(-5)
	s.True(ierr.IsValidation(err))
	s.Zero(e.RefundedAmount)
}

func (s *EntrySuite) TestRefundRequiresSucceeded() {
	pending, err := NewPending(s.attempt)
	s.Require().NoError(err)

	_, err = pending.ApplyRefund(100)
	s.True(ierr.IsInvalidOperation(err))
}
