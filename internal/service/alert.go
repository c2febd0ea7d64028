package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/alert"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/taskqueue"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/meters"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// AlertCheckPayload is the task payload the materializer enqueues after it
// folds an event into an aggregate
type AlertCheckPayload struct {
	OrganizationID string `json:"organization_id"`
	CustomerID     string `json:"customer_id"`
	MetricID       string `json:"metric_id"`
}

type AlertService interface {
	Create(ctx context.Context, metricID, planVersionID string, threshold decimal.Decimal) (*alert.UsageAlert, error)
	ListByMetric(ctx context.Context, metricID string) ([]*alert.UsageAlert, error)
	Delete(ctx context.Context, id string) error

	// HandleCheck evaluates every alert on the metric against the
	// customer's current usage; crossed alerts record their trigger and
	// dispatch a webhook task
	HandleCheck(ctx context.Context, payload json.RawMessage) error
}

type alertService struct {
	ServiceParams
}

func NewAlertService(params ServiceParams) AlertService {
	return &alertService{ServiceParams: params}
}

func (s *alertService) Create(ctx context.Context, metricID, planVersionID string, threshold decimal.Decimal) (*alert.UsageAlert, error) {
	if !threshold.IsPositive() {
		return nil, ierr.NewError("threshold must be positive").
			Mark(ierr.ErrValidation)
	}
	if _, err := s.MetricRepo.Get(ctx, metricID); err != nil {
		return nil, err
	}
	if _, err := s.PlanRepo.GetVersion(ctx, planVersionID); err != nil {
		return nil, err
	}

	a := alert.New(ctx, metricID, planVersionID, threshold)
	if err := s.AlertRepo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *alertService) ListByMetric(ctx context.Context, metricID string) ([]*alert.UsageAlert, error) {
	return s.AlertRepo.ListByMetric(ctx, metricID)
}

func (s *alertService) Delete(ctx context.Context, id string) error {
	return s.AlertRepo.Delete(ctx, id)
}

func (s *alertService) HandleCheck(ctx context.Context, payload json.RawMessage) error {
	var check AlertCheckPayload
	if err := json.Unmarshal(payload, &check); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed alert check payload").
			Mark(ierr.ErrValidation)
	}
	ctx = types.SetOrganizationID(ctx, check.OrganizationID)

	alerts, err := s.AlertRepo.ListByMetric(ctx, check.MetricID)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		return nil
	}

	met, err := s.MetricRepo.Get(ctx, check.MetricID)
	if err != nil {
		return err
	}
	handler, err := meters.NewHandler(met, s.EventRepo)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	records, err := s.SubRepo.ListRecords(ctx, &subscription.RecordFilter{
		CustomerID: check.CustomerID,
		ActiveAt:   &now,
	})
	if err != nil {
		return err
	}

	for _, a := range alerts {
		if a.TriggeredAt != nil {
			continue
		}
		for _, rec := range records {
			if rec.BillingPlanID != a.PlanVersionID {
				continue
			}
			usage, err := handler.CurrentUsage(ctx, rec)
			if err != nil {
				return err
			}
			if usage.LessThan(a.Threshold) {
				continue
			}

			triggered := now
			a.TriggeredAt = &triggered
			if err := s.AlertRepo.Update(ctx, a); err != nil {
				return err
			}
			s.Logger.Infow("usage alert triggered",
				"usage_alert_id", a.ID,
				"customer_id", check.CustomerID,
				"metric_id", check.MetricID,
				"usage", usage,
				"threshold", a.Threshold,
			)
			if err := s.TaskQueue.Enqueue(ctx, taskqueue.TaskWebhookDispatch, map[string]any{
				"topic":          types.TopicUsageAlert,
				"usage_alert_id": a.ID,
				"customer_id":    check.CustomerID,
				"metric_id":      check.MetricID,
				"sr_id":          rec.ID,
				"usage":          usage.String(),
				"threshold":      a.Threshold.String(),
			}); err != nil {
				s.Logger.Errorw("usage alert dispatch failed",
					"usage_alert_id", a.ID,
					"error", err,
				)
			}
			break
		}
	}
	return nil
}
