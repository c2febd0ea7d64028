package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/cache"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/config"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/alert"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/balance"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/customer"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/invoice"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/taskqueue"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/tenant"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
)

// Stores bundles all repository fakes for one test
type Stores struct {
	TenantRepo   tenant.Repository
	APIKeyRepo   tenant.APIKeyRepository
	CustomerRepo customer.Repository
	MetricRepo   metric.Repository
	PlanRepo     plan.Repository
	SubRepo      subscription.Repository
	InvoiceRepo  invoice.Repository
	BalanceRepo  balance.Repository
	AlertRepo    alert.Repository
	EventRepo    events.Repository
}

// BaseServiceTestSuite provides common setup for all service test suites.
// Every test starts from fresh in-memory stores with the test organization
// already seeded.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	db        *FakeTxClient
	publisher *InMemoryEventPublisher
	taskQueue *taskqueue.InProcessQueue
	cache     cache.Cache
	logger    *logger.Logger
	config    *config.Configuration
	now       time.Time
}

func (s *BaseServiceTestSuite) SetupSuite() {
	s.config = config.GetDefaultConfig()

	var err error
	s.logger, err = logger.NewLogger(s.config.Logging.Level)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.now = time.Now().UTC()
	s.stores = Stores{
		TenantRepo:   NewInMemoryTenantStore(),
		APIKeyRepo:   NewInMemoryAPIKeyStore(),
		CustomerRepo: NewInMemoryCustomerStore(),
		MetricRepo:   NewInMemoryMetricStore(),
		PlanRepo:     NewInMemoryPlanStore(),
		SubRepo:      NewInMemorySubscriptionStore(),
		InvoiceRepo:  NewInMemoryInvoiceStore(),
		BalanceRepo:  NewInMemoryBalanceStore(),
		AlertRepo:    NewInMemoryAlertStore(),
		EventRepo:    NewInMemoryEventStore(),
	}
	s.db = NewFakeTxClient()
	s.publisher = NewInMemoryEventPublisher()
	s.taskQueue = taskqueue.NewInProcessQueue()
	s.cache = cache.NewInMemoryCache()
	s.seedOrganization()
}

func (s *BaseServiceTestSuite) seedOrganization() {
	org := &tenant.Organization{
		ID:                     TestOrgID,
		Name:                   "Test Organization",
		DefaultCurrency:        "usd",
		PaymentGracePeriodDays: 1,
		Timezone:               "UTC",
		CreatedAt:              s.now,
		UpdatedAt:              s.now,
	}
	s.Require().NoError(s.stores.TenantRepo.CreateOrganization(s.ctx, org))
}

// GetContext returns the test context scoped to the test organization
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the fake transaction client
func (s *BaseServiceTestSuite) GetDB() *FakeTxClient {
	return s.db
}

// GetPublisher returns the capturing event publisher
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryEventPublisher {
	return s.publisher
}

// GetTaskQueue returns the in-process task queue
func (s *BaseServiceTestSuite) GetTaskQueue() *taskqueue.InProcessQueue {
	return s.taskQueue
}

// GetCache returns the test cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetNow returns the time captured at test setup
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
