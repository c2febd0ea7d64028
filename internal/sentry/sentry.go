package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/config"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
)

// Service wraps the sentry client. All methods are no-ops when reporting is
// disabled in config, so callers never need to branch on it.
type Service struct {
	cfg *config.Configuration
	log *logger.Logger
}

func NewSentryService(cfg *config.Configuration, log *logger.Logger) *Service {
	return &Service{cfg: cfg, log: log}
}

// RegisterHooks initializes the sentry client on start and flushes queued
// events on shutdown
func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !svc.cfg.Sentry.Enabled {
				svc.log.Info("sentry is disabled")
				return nil
			}

			err := sentry.Init(sentry.ClientOptions{
				Dsn:              svc.cfg.Sentry.DSN,
				Environment:      svc.cfg.Sentry.Environment,
				EnableTracing:    true,
				TracesSampleRate: svc.cfg.Sentry.SampleRate,
				TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
					if ctx.Span.Name == "GET /health" {
						return 0.0
					}
					return svc.cfg.Sentry.SampleRate
				}),
			})
			if err != nil {
				svc.log.Errorw("failed to initialize sentry", "error", err)
				return err
			}
			svc.log.Infow("sentry initialized",
				"environment", svc.cfg.Sentry.Environment,
				"sample_rate", svc.cfg.Sentry.SampleRate,
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if svc.cfg.Sentry.Enabled {
				sentry.Flush(2 * time.Second)
			}
			return nil
		},
	})
}

// CaptureException reports an error
func (s *Service) CaptureException(err error) {
	if !s.cfg.Sentry.Enabled {
		return
	}
	sentry.CaptureException(err)
}

// StartSpan starts a span in the current transaction, tagging it with the
// given data
func (s *Service) StartSpan(ctx context.Context, operation string, data map[string]interface{}) (*sentry.Span, context.Context) {
	if !s.cfg.Sentry.Enabled {
		return nil, ctx
	}

	span := sentry.StartSpan(ctx, operation)
	span.Description = operation
	for k, v := range data {
		span.SetData(k, v)
	}
	return span, span.Context()
}

// MonitorIngestLag records how far behind real time the stream consumer is
// running, tagged for alerting
func (s *Service) MonitorIngestLag(ctx context.Context, eventName string, ingestedAt time.Time) (*sentry.Span, context.Context) {
	if !s.cfg.Sentry.Enabled {
		return nil, ctx
	}

	span := sentry.StartSpan(ctx, "event.process")
	span.Op = "event.process"
	span.SetData("event_name", eventName)

	lag := time.Since(ingestedAt)
	span.SetData("lag_ms", lag.Milliseconds())

	if tx := sentry.TransactionFromContext(ctx); tx != nil {
		switch {
		case lag >= 5*time.Minute:
			tx.SetTag("event.lag.severity", "critical")
		case lag >= time.Minute:
			tx.SetTag("event.lag.severity", "warning")
		default:
			tx.SetTag("event.lag.severity", "normal")
		}
	}

	return span, span.Context()
}

// Flush waits up to timeout seconds for queued events to be sent
func (s *Service) Flush(timeout uint) bool {
	if !s.cfg.Sentry.Enabled {
		return true
	}
	return sentry.Flush(time.Duration(timeout) * time.Second)
}
