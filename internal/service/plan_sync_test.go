package service

import (
	"context"
	"testing"

	"github.com/recruitlink/billing/internal/config"
	"github.com/recruitlink/billing/internal/domain/plan"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/testutil"
	"github.com/recruitlink/billing/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

// PlanSyncTestSuite covers catalog synchronization against the fake processor
type PlanSyncTestSuite struct {
	testutil.BaseServiceTestSuite
	service PlanSyncService
}

func TestPlanSync(t *testing.T) {
	suite.Run(t, new(PlanSyncTestSuite))
}

func (s *PlanSyncTestSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.GetConfig().Billing.Plans = []config.PlanConfig{
		{
			Name:            "Employer Monthly",
			Amount:          2999,
			Currency:        "usd",
			BillingInterval: types.BillingIntervalMonth,
			Features:        []string{"job_posts:5"},
			DisplayOrder:    1,
		},
		{
			Name:            "Employer Annual",
			Amount:          29999,
			Currency:        "usd",
			BillingInterval: types.BillingIntervalYear,
			Features:        []string{"job_posts:unlimited"},
			DisplayOrder:    2,
		},
	}
	s.service = NewPlanSyncService(ServiceParams{
		Logger:   s.GetLogger(),
		Config:   s.GetConfig(),
		DB:       s.GetDB(),
		Gateway:  s.GetGateway(),
		PlanRepo: s.GetStores().PlanRepo,
	})
}

func (s *PlanSyncTestSuite) activePlans() []*plan.Plan {
	plans, err := s.GetStores().PlanRepo.ListActive(s.GetContext())
	s.Require().NoError(err)
	return plans
}

func (s *PlanSyncTestSuite) TestFirstRunCreatesCatalog() {
	report, err := s.service.Sync(s.GetContext())
	s.Require().NoError(err)

	s.Equal(2, report.PlansCreated)
	s.Equal(2, report.ProductsCreated)
	s.Equal(2, report.PricesCreated)
	s.Equal(2, report.PlansVerified)
	s.Equal(4, s.GetGateway().WriteCount())

	for _, p := range s.activePlans() {
		s.Require().True(p.HasExternalPrice())
		price, ok := s.GetGateway().Price(*p.ExternalPriceID)
		s.Require().True(ok)
		s.Equal(p.Amount, price.Amount)
		s.Equal(p.BillingInterval, price.Interval)
		s.Equal(p.ID, price.LocalPlanID())
		s.Equal(types.PlanLookupKey(p.ID), price.LookupKey)
	}
}

func (s *PlanSyncTestSuite) TestSecondRunMakesNoProcessorWrites() {
	_, err := s.service.Sync(s.GetContext())
	s.Require().NoError(err)
	writes := s.GetGateway().WriteCount()

	report, err := s.service.Sync(s.GetContext())
	s.Require().NoError(err)

	s.Equal(writes, s.GetGateway().WriteCount())
	s.Zero(report.PlansCreated)
	s.Zero(report.PricesCreated)
	s.Equal(2, report.PricesReused)
	s.Len(s.activePlans(), 2)
}

func (s *PlanSyncTestSuite) TestInactivePriceIsRecreatedOnExistingProduct() {
	_, err := s.service.Sync(s.GetContext())
	s.Require().NoError(err)

	monthly := s.activePlans()[0]
	price, _ := s.GetGateway().Price(*monthly.ExternalPriceID)
	price.Active = false
	s.GetGateway().SetPrice(price)

	report, err := s.service.Sync(s.GetContext())
	s.Require().NoError(err)

	s.Equal(1, report.PricesCreated)
	s.Zero(report.ProductsCreated)
	updated := s.activePlans()[0]
	s.NotEqual(*monthly.ExternalPriceID, *updated.ExternalPriceID)
	s.Equal(*monthly.ExternalProductID, *updated.ExternalProductID)
}

func (s *PlanSyncTestSuite) TestPriceRecreatedTwiceGetsFreshPrices() {
	_, err := s.service.Sync(s.GetContext())
	s.Require().NoError(err)

	seen := map[string]bool{*s.activePlans()[0].ExternalPriceID: true}
	for i := 0; i < 2; i++ {
		current := s.activePlans()[0]
		price, _ := s.GetGateway().Price(*current.ExternalPriceID)
		price.Active = false
		s.GetGateway().SetPrice(price)

		report, err := s.service.Sync(s.GetContext())
		s.Require().NoError(err)
		s.Equal(1, report.PricesCreated)

		recreated := *s.activePlans()[0].ExternalPriceID
		s.False(seen[recreated], "price %s was handed out before", recreated)
		seen[recreated] = true

		active, _ := s.GetGateway().Price(recreated)
		s.True(active.Active)
	}
}

func (s *PlanSyncTestSuite) TestMissingRecordedPriceIsRecreated() {
	p := plan.New("Employer Monthly", "", 2999, "usd", types.BillingIntervalMonth, nil, 1)
	p.ExternalPriceID = lo.ToPtr("price_deleted")
	s.PlanStore().Put(p)
	s.GetConfig().Billing.Plans = s.GetConfig().Billing.Plans[:1]

	report, err := s.service.Sync(s.GetContext())
	s.Require().NoError(err)

	s.Zero(report.PlansCreated)
	s.Equal(1, report.ProductsCreated)
	s.Equal(1, report.PricesCreated)
	s.NotEqual("price_deleted", *s.activePlans()[0].ExternalPriceID)
}

func (s *PlanSyncTestSuite) TestInterruptedRunRecoversPriceByLookupKey() {
	p := plan.New("Employer Monthly", "", 2999, "usd", types.BillingIntervalMonth, nil, 1)
	s.PlanStore().Put(p)
	s.GetGateway().SetPrice(testutil.ProcessorPrice("price_orphan", "prod_orphan", p.ID, 2999, types.BillingIntervalMonth))
	s.GetConfig().Billing.Plans = s.GetConfig().Billing.Plans[:1]

	report, err := s.service.Sync(s.GetContext())
	s.Require().NoError(err)

	s.Zero(s.GetGateway().WriteCount())
	s.Equal(1, report.PricesReused)
	linked := s.activePlans()[0]
	s.Equal("price_orphan", *linked.ExternalPriceID)
	s.Equal("prod_orphan", *linked.ExternalProductID)
}

func (s *PlanSyncTestSuite) TestDivergentPriceFailsValidation() {
	_, err := s.service.Sync(s.GetContext())
	s.Require().NoError(err)

	monthly := s.activePlans()[0]
	price, _ := s.GetGateway().Price(*monthly.ExternalPriceID)
	price.Amount = 1999
	s.GetGateway().SetPrice(price)

	report, err := s.service.Sync(s.GetContext())

	s.Error(err)
	s.True(ierr.IsSyncValidation(err))
	s.Zero(report.PlansVerified)
}

func (s *PlanSyncTestSuite) TestGatewayFailureAborts() {
	_, err := s.service.Sync(s.GetContext())
	s.Require().NoError(err)

	s.GetGateway().FailOn(testutil.OpRetrievePrice, ierr.NewError("processor unavailable").
		WithHint("Payment processor is unavailable").
		Mark(ierr.ErrHTTPClient))

	_, err = s.service.Sync(s.GetContext())
	s.True(ierr.IsHTTPClient(err))
}

func (s *PlanSyncTestSuite) TestCreateFailureKeepsCompletedSteps() {
	s.GetGateway().FailOn(testutil.OpCreatePrice, ierr.NewError("processor unavailable").
		WithHint("Payment processor is unavailable").
		Mark(ierr.ErrHTTPClient))

	_, err := s.service.Sync(s.GetContext())
	s.Require().Error(err)
	s.Len(s.activePlans(), 2)

	s.GetGateway().FailOn(testutil.OpCreatePrice, nil)
	report, err := s.service.Sync(s.GetContext())
	s.Require().NoError(err)

	// the product from the failed run is not reused because it was never recorded
	s.Equal(2, report.PricesCreated)
	s.Equal(2, report.PlansVerified)
}

func (s *PlanSyncTestSuite) TestCanceledContextStopsBeforeWrites() {
	ctx, cancel := context.WithCancel(s.GetContext())
	cancel()

	_, err := s.service.Sync(ctx)

	s.ErrorIs(err, context.Canceled)
	s.Zero(s.GetGateway().WriteCount())
	s.Empty(s.activePlans())
}

func (s *PlanSyncTestSuite) TestShortIntervalsRequireSandbox() {
	s.GetConfig().Billing.Plans = []config.PlanConfig{{
		Name:            "Daily Test",
		Amount:          1,
		Currency:        "usd",
		BillingInterval: types.BillingIntervalDay,
	}}

	_, err := s.service.Sync(s.GetContext())
	s.True(ierr.IsValidation(err))

	s.GetConfig().Billing.SandboxMode = true
	report, err := s.service.Sync(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, report.PlansVerified)
}
