package service

import (
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/testutil"
)

// newTestParams assembles ServiceParams from the base suite's in-memory
// stores; individual suites override collaborators as needed
func newTestParams(b *testutil.BaseServiceTestSuite) ServiceParams {
	stores := b.GetStores()
	return ServiceParams{
		Logger:         b.GetLogger(),
		Config:         b.GetConfig(),
		DB:             b.GetDB(),
		TenantRepo:     stores.TenantRepo,
		APIKeyRepo:     stores.APIKeyRepo,
		CustomerRepo:   stores.CustomerRepo,
		MetricRepo:     stores.MetricRepo,
		PlanRepo:       stores.PlanRepo,
		SubRepo:        stores.SubRepo,
		InvoiceRepo:    stores.InvoiceRepo,
		BalanceRepo:    stores.BalanceRepo,
		AlertRepo:      stores.AlertRepo,
		EventRepo:      stores.EventRepo,
		EventPublisher: b.GetPublisher(),
		Cache:          b.GetCache(),
		TaskQueue:      b.GetTaskQueue(),
	}
}
