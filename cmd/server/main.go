package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/api"
	v1 "github.com/whiteghostDev/Saas-lotus-sub000/internal/api/v1"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/cache"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/clickhouse"
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
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/materializer"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/postgres"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/publisher"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/pubsub"
	kafkaPubsub "github.com/whiteghostDev/Saas-lotus-sub000/internal/pubsub/kafka"
	memoryPubsub "github.com/whiteghostDev/Saas-lotus-sub000/internal/pubsub/memory"
	chRepo "github.com/whiteghostDev/Saas-lotus-sub000/internal/repository/clickhouse"
	pgRepo "github.com/whiteghostDev/Saas-lotus-sub000/internal/repository/postgres"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/sentry"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/webhook"
)

func init() {
	// All billing math and anchors assume UTC
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			provideLogger,
			sentry.NewSentryService,

			// Stores
			postgres.NewClient,
			func(c *postgres.Client) postgres.IClient { return c },
			clickhouse.NewClickHouseStore,
			cache.NewInMemoryCache,

			// Stream
			providePubSub,
			func(ps pubsub.PubSub) pubsub.Publisher { return ps },
			func(ps pubsub.PubSub) pubsub.Subscriber { return ps },
			publisher.NewEventPublisher,

			// Task broker
			taskqueue.NewInProcessQueue,
			func(q *taskqueue.InProcessQueue) taskqueue.TaskQueue { return q },

			// Repositories
			pgRepo.NewTenantRepository,
			pgRepo.NewAPIKeyRepository,
			pgRepo.NewCustomerRepository,
			pgRepo.NewMetricRepository,
			pgRepo.NewPlanRepository,
			pgRepo.NewSubscriptionRepository,
			pgRepo.NewInvoiceRepository,
			pgRepo.NewBalanceRepository,
			pgRepo.NewAlertRepository,
			chRepo.NewEventRepository,

			// Collaborators
			providePaymentProvider,
			provideServiceParams,

			// Services
			service.NewAuthService,
			service.NewCustomerService,
			service.NewMetricService,
			service.NewPlanService,
			service.NewSubscriptionService,
			service.NewEventService,
			service.NewInvoiceService,
			service.NewBalanceService,
			service.NewAccessService,
			service.NewAlertService,
			service.NewPeriodicService,

			provideMaterializer,
			webhook.NewDispatcher,
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			registerTasks,
			startAPIServer,
			startMaterializer,
			startPeriodicDriver,
		),
	)
	app.Run()
}

func provideLogger(cfg *config.Configuration) (*logger.Logger, error) {
	return logger.NewLogger(cfg.Logging.Level)
}

// providePubSub picks the stream backend: kafka in server mode, process
// local channels in local mode
func providePubSub(cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	if cfg.Deployment.Mode == "server" {
		return kafkaPubsub.NewPubSub(cfg, log)
	}
	return memoryPubsub.NewPubSub(log), nil
}

func providePaymentProvider(cfg *config.Configuration) payment.Provider {
	if cfg.Payment.Provider == "remote" {
		return payment.NewRemoteProvider("remote", cfg.Payment.BaseURL)
	}
	return payment.NoopProvider{}
}

func provideServiceParams(
	cfg *config.Configuration,
	log *logger.Logger,
	db postgres.IClient,
	tenantRepo tenant.Repository,
	apiKeyRepo tenant.APIKeyRepository,
	customerRepo customer.Repository,
	metricRepo metric.Repository,
	planRepo plan.Repository,
	subRepo subscription.Repository,
	invoiceRepo invoice.Repository,
	balanceRepo balance.Repository,
	alertRepo alert.Repository,
	eventRepo events.Repository,
	eventPublisher publisher.EventPublisher,
	c cache.Cache,
	queue taskqueue.TaskQueue,
	paymentProvider payment.Provider,
) service.ServiceParams {
	return service.ServiceParams{
		Logger:          log,
		Config:          cfg,
		DB:              db,
		TenantRepo:      tenantRepo,
		APIKeyRepo:      apiKeyRepo,
		CustomerRepo:    customerRepo,
		MetricRepo:      metricRepo,
		PlanRepo:        planRepo,
		SubRepo:         subRepo,
		InvoiceRepo:     invoiceRepo,
		BalanceRepo:     balanceRepo,
		AlertRepo:       alertRepo,
		EventRepo:       eventRepo,
		EventPublisher:  eventPublisher,
		Cache:           c,
		TaskQueue:       queue,
		TaxProviders:    []tax.Provider{},
		PaymentProvider: paymentProvider,
	}
}

func provideMaterializer(
	sub pubsub.Subscriber,
	eventRepo events.Repository,
	metricRepo metric.Repository,
	subRepo subscription.Repository,
	queue taskqueue.TaskQueue,
	log *logger.Logger,
) *materializer.Materializer {
	return materializer.NewMaterializer(sub, eventRepo, metricRepo, subRepo, queue, log)
}

func provideHandlers(
	cfg *config.Configuration,
	log *logger.Logger,
	authService service.AuthService,
	customerService service.CustomerService,
	metricService service.MetricService,
	planService service.PlanService,
	subscriptionService service.SubscriptionService,
	eventService service.EventService,
	invoiceService service.InvoiceService,
	balanceService service.BalanceService,
	accessService service.AccessService,
	alertService service.AlertService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(),
		Events:       v1.NewEventsHandler(eventService, log),
		Customer:     v1.NewCustomerHandler(customerService, balanceService, log),
		Metric:       v1.NewMetricHandler(metricService, alertService, log),
		Plan:         v1.NewPlanHandler(planService, log),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, log),
		Invoice:      v1.NewInvoiceHandler(invoiceService, log),
		Balance:      v1.NewBalanceHandler(balanceService, log),
		Access:       v1.NewAccessHandler(accessService, log),
		Alert:        v1.NewAlertHandler(alertService, log),
		APIKey:       v1.NewAPIKeyHandler(authService, log),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, auth service.AuthService, log *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, cfg, auth, log)
}

// registerTasks binds task names to their handlers on the in-process broker
func registerTasks(
	queue taskqueue.TaskQueue,
	alertService service.AlertService,
	dispatcher *webhook.Dispatcher,
) {
	queue.Register(taskqueue.TaskUsageAlertCheck, alertService.HandleCheck)
	dispatcher.Register(queue)
}

func startAPIServer(lc fx.Lifecycle, r *gin.Engine, cfg *config.Configuration, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting api server", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("api server failed: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down api server")
			return nil
		},
	})
}

func startMaterializer(lc fx.Lifecycle, m *materializer.Materializer, log *logger.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := m.Start(ctx); err != nil {
					log.Errorw("materializer stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func startPeriodicDriver(lc fx.Lifecycle, periodic service.PeriodicService, log *logger.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go periodic.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
