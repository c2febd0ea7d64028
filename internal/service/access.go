package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/meters"
)

// RecordAccess is one active record's view of a metric's limits
type RecordAccess struct {
	SubscriptionRecordID string            `json:"sr_id"`
	PlanVersionID        string            `json:"plan_version_id"`
	MetricUsage          decimal.Decimal   `json:"metric_usage"`
	MetricFreeLimit      decimal.Decimal   `json:"metric_free_limit"`
	MetricTotalLimit     *decimal.Decimal  `json:"metric_total_limit,omitempty"`
	Access               bool              `json:"access"`
	Filters              map[string]string `json:"subscription_filters,omitempty"`
}

// MetricAccessResponse aggregates access across the customer's records
type MetricAccessResponse struct {
	CustomerID string         `json:"customer_id"`
	MetricID   string         `json:"metric_id"`
	Access     bool           `json:"access"`
	Records    []RecordAccess `json:"access_per_subscription"`
}

// RecordFeatureAccess is one active record's view of a feature grant
type RecordFeatureAccess struct {
	SubscriptionRecordID string            `json:"sr_id"`
	PlanVersionID        string            `json:"plan_version_id"`
	Access               bool              `json:"access"`
	Filters              map[string]string `json:"subscription_filters,omitempty"`
}

// FeatureAccessResponse reports whether any active plan grants the feature
type FeatureAccessResponse struct {
	CustomerID string                `json:"customer_id"`
	FeatureID  string                `json:"feature_id"`
	Access     bool                  `json:"access"`
	Records    []RecordFeatureAccess `json:"access_per_subscription"`
}

// AccessService answers the hot-path entitlement checks. Answers may trail
// ingestion by the materializer lag; callers needing strict freshness should
// compare against the partition high-water mark.
type AccessService interface {
	MetricAccess(ctx context.Context, customerID, metricID string, filters map[string]string) (*MetricAccessResponse, error)
	FeatureAccess(ctx context.Context, customerID, featureID string, filters map[string]string) (*FeatureAccessResponse, error)
}

type accessService struct {
	ServiceParams
}

func NewAccessService(params ServiceParams) AccessService {
	return &accessService{ServiceParams: params}
}

func (s *accessService) MetricAccess(ctx context.Context, customerID, metricID string, filters map[string]string) (*MetricAccessResponse, error) {
	met, err := s.MetricRepo.Get(ctx, metricID)
	if err != nil {
		return nil, err
	}

	handler, err := meters.NewHandler(met, s.EventRepo)
	if err != nil {
		return nil, err
	}

	records, err := s.activeMatchingRecords(ctx, customerID, filters)
	if err != nil {
		return nil, err
	}

	resp := &MetricAccessResponse{
		CustomerID: customerID,
		MetricID:   metricID,
	}

	for _, rec := range records {
		version, err := s.PlanRepo.GetVersion(ctx, rec.BillingPlanID)
		if err != nil {
			if ierr.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		component := version.ComponentForMetric(metricID)
		if component == nil {
			continue
		}

		usage, err := handler.CurrentUsage(ctx, rec)
		if err != nil {
			return nil, err
		}

		totalLimit := component.TotalLimit()
		access := totalLimit == nil || usage.LessThan(*totalLimit)

		resp.Records = append(resp.Records, RecordAccess{
			SubscriptionRecordID: rec.ID,
			PlanVersionID:        version.ID,
			MetricUsage:          usage,
			MetricFreeLimit:      component.FreeLimit(),
			MetricTotalLimit:     totalLimit,
			Access:               access,
			Filters:              rec.Filters,
		})
		if access {
			resp.Access = true
		}
	}
	return resp, nil
}

func (s *accessService) FeatureAccess(ctx context.Context, customerID, featureID string, filters map[string]string) (*FeatureAccessResponse, error) {
	records, err := s.activeMatchingRecords(ctx, customerID, filters)
	if err != nil {
		return nil, err
	}

	resp := &FeatureAccessResponse{
		CustomerID: customerID,
		FeatureID:  featureID,
	}
	for _, rec := range records {
		version, err := s.PlanRepo.GetVersion(ctx, rec.BillingPlanID)
		if err != nil {
			if ierr.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		granted := version.HasFeature(featureID)
		resp.Records = append(resp.Records, RecordFeatureAccess{
			SubscriptionRecordID: rec.ID,
			PlanVersionID:        version.ID,
			Access:               granted,
			Filters:              rec.Filters,
		})
		if granted {
			resp.Access = true
		}
	}
	return resp, nil
}

// activeMatchingRecords returns the customer's currently active records
// whose filters are a superset of the requested filters
func (s *accessService) activeMatchingRecords(ctx context.Context, customerID string, filters map[string]string) ([]*subscription.SubscriptionRecord, error) {
	now := time.Now().UTC()
	records, err := s.SubRepo.ListRecords(ctx, &subscription.RecordFilter{
		CustomerID: customerID,
		ActiveAt:   &now,
	})
	if err != nil {
		return nil, err
	}

	var out []*subscription.SubscriptionRecord
	for _, rec := range records {
		if rec.MatchesFilters(filters) {
			out = append(out, rec)
		}
	}
	return out, nil
}
