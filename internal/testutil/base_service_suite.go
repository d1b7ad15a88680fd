package testutil

import (
	"context"
	"time"

	"github.com/recruitlink/billing/internal/config"
	"github.com/recruitlink/billing/internal/domain/customer"
	"github.com/recruitlink/billing/internal/domain/ledger"
	"github.com/recruitlink/billing/internal/domain/plan"
	"github.com/recruitlink/billing/internal/domain/processedevent"
	"github.com/recruitlink/billing/internal/domain/subscription"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/validator"
	"github.com/recruitlink/billing/internal/webhook/publisher"
	"github.com/stretchr/testify/suite"
)

// TestWebhookSecret signs webhook payloads in tests
const TestWebhookSecret = "whsec_test_secret"

// Stores holds all the repository interfaces for testing
type Stores struct {
	PlanRepo           plan.Repository
	SubscriptionRepo   subscription.Repository
	LedgerRepo         ledger.Repository
	CustomerRepo       customer.Repository
	ProcessedEventRepo processedevent.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	db        *MockPostgresClient
	gateway   *FakeGateway
	pubSub    *InMemoryPubSub
	publisher publisher.NotificationPublisher
	logger    *logger.Logger
	config    *config.Configuration
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()
	s.logger = logger.NewNopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupConfig()
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupConfig() {
	s.config = config.GetDefaultConfig()
	s.config.Stripe.SecretKey = "sk_test_unit"
	s.config.Stripe.WebhookSecret = TestWebhookSecret
	s.config.Notifications.Enabled = true
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupStores() {
	planStore := NewInMemoryPlanStore()
	subStore := NewInMemorySubscriptionStore()
	ledgerStore := NewInMemoryLedgerStore()
	customerStore := NewInMemoryCustomerStore()
	processedStore := NewInMemoryProcessedEventStore()

	s.stores = Stores{
		PlanRepo:           planStore,
		SubscriptionRepo:   subStore,
		LedgerRepo:         ledgerStore,
		CustomerRepo:       customerStore,
		ProcessedEventRepo: processedStore,
	}

	s.db = NewMockPostgresClient(s.logger, planStore, subStore, ledgerStore, customerStore, processedStore)
	s.gateway = NewFakeGateway(TestWebhookSecret)
	s.pubSub = NewInMemoryPubSub()

	pub, err := publisher.NewPublisher(s.pubSub, s.config, s.logger)
	if err != nil {
		s.T().Fatalf("failed to create notification publisher: %v", err)
	}
	s.publisher = pub
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.PlanRepo.(*InMemoryPlanStore).Clear()
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.LedgerRepo.(*InMemoryLedgerStore).Clear()
	s.stores.CustomerRepo.(*InMemoryCustomerStore).Clear()
	s.stores.ProcessedEventRepo.(*InMemoryProcessedEventStore).Clear()
	s.pubSub.Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetStores returns the in-memory repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the mock transaction client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetGateway returns the fake processor
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway {
	return s.gateway
}

// GetPubSub returns the notification pubsub
func (s *BaseServiceTestSuite) GetPubSub() *InMemoryPubSub {
	return s.pubSub
}

// GetPublisher returns the notification publisher
func (s *BaseServiceTestSuite) GetPublisher() publisher.NotificationPublisher {
	return s.publisher
}

// GetNow returns the time captured at test setup
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

// PlanStore returns the concrete plan store for seeding
func (s *BaseServiceTestSuite) PlanStore() *InMemoryPlanStore {
	return s.stores.PlanRepo.(*InMemoryPlanStore)
}

// SubscriptionStore returns the concrete subscription store for seeding
func (s *BaseServiceTestSuite) SubscriptionStore() *InMemorySubscriptionStore {
	return s.stores.SubscriptionRepo.(*InMemorySubscriptionStore)
}

// LedgerStore returns the concrete ledger store for inspection
func (s *BaseServiceTestSuite) LedgerStore() *InMemoryLedgerStore {
	return s.stores.LedgerRepo.(*InMemoryLedgerStore)
}

// CustomerStore returns the concrete customer store for seeding
func (s *BaseServiceTestSuite) CustomerStore() *InMemoryCustomerStore {
	return s.stores.CustomerRepo.(*InMemoryCustomerStore)
}

// ProcessedEventStore returns the concrete processed event store
func (s *BaseServiceTestSuite) ProcessedEventStore() *InMemoryProcessedEventStore {
	return s.stores.ProcessedEventRepo.(*InMemoryProcessedEventStore)
}
