package service

import (
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/cache"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/config"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/alert"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/balance"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/customer"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/invoice"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/payment"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/taskqueue"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/tax"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/tenant"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/postgres"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/publisher"
)

// ServiceParams bundles every dependency a service may need. Services that
// need a sibling service construct it from the same params, so the object
// graph stays acyclic at the type level.
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
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

	// Collaborators
	EventPublisher  publisher.EventPublisher
	Cache           cache.Cache
	TaskQueue       taskqueue.TaskQueue
	TaxProviders    []tax.Provider
	PaymentProvider payment.Provider
}
