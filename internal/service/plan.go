package service

import (
	"context"
	"time"

	planDomain "github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// CreatePlanParams creates a plan together with its first version
type CreatePlanParams struct {
	PlanName     string
	PlanDuration types.PlanDuration
	IsAddOn      bool
	Tags         []string

	Version CreateVersionParams
}

// CreateVersionParams carries one pricing configuration
type CreateVersionParams struct {
	Currency          string
	Components        []planDomain.PlanComponent
	RecurringCharges  []planDomain.RecurringCharge
	Features          []planDomain.Feature
	PriceAdjustment   *planDomain.PriceAdjustment
	DayAnchor         int
	MonthAnchor       int
	ActiveFrom        time.Time
	TargetCustomerIDs []string
	LocalizedName     string
	AddOnSpec         *planDomain.AddOnSpecification
}

type PlanService interface {
	Create(ctx context.Context, params CreatePlanParams) (*planDomain.Plan, *planDomain.PlanVersion, error)
	Get(ctx context.Context, id string) (*planDomain.Plan, error)
	List(ctx context.Context) ([]*planDomain.Plan, error)

	// AddVersion appends a new version; its number is one past the latest
	AddVersion(ctx context.Context, planID string, params CreateVersionParams) (*planDomain.PlanVersion, error)
	GetActiveVersion(ctx context.Context, planID string) (*planDomain.PlanVersion, error)
	ListVersions(ctx context.Context, planID string) ([]*planDomain.PlanVersion, error)
	// RetireVersion closes a version to new subscriptions, optionally
	// pointing renewals at a replacement
	RetireVersion(ctx context.Context, versionID, replaceWithID string) (*planDomain.PlanVersion, error)
}

type planService struct {
	ServiceParams
}

func NewPlanService(params ServiceParams) PlanService {
	return &planService{ServiceParams: params}
}

func (s *planService) Create(ctx context.Context, params CreatePlanParams) (*planDomain.Plan, *planDomain.PlanVersion, error) {
	if params.PlanName == "" {
		return nil, nil, ierr.NewError("plan_name is required").
			Mark(ierr.ErrValidation)
	}
	if !params.PlanDuration.Validate() {
		return nil, nil, ierr.NewError("invalid plan_duration").
			WithHintf("%s is not a plan duration", params.PlanDuration).
			Mark(ierr.ErrValidation)
	}
	if params.IsAddOn && params.Version.AddOnSpec == nil {
		return nil, nil, ierr.NewError("add-on plan requires an addon_spec").
			Mark(ierr.ErrValidation)
	}

	pl := &planDomain.Plan{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		PlanName:     params.PlanName,
		PlanDuration: params.PlanDuration,
		IsAddOn:      params.IsAddOn,
		Tags:         params.Tags,
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}

	version, err := s.newVersion(ctx, pl.ID, 1, params.Version)
	if err != nil {
		return nil, nil, err
	}

	if err := s.PlanRepo.CreatePlan(ctx, pl); err != nil {
		return nil, nil, err
	}
	if err := s.PlanRepo.CreateVersion(ctx, version); err != nil {
		return nil, nil, err
	}

	s.Logger.Infow("created plan",
		"plan_id", pl.ID,
		"plan_name", pl.PlanName,
		"plan_duration", pl.PlanDuration,
		"version_id", version.ID,
	)
	return pl, version, nil
}

func (s *planService) newVersion(ctx context.Context, planID string, number int, params CreateVersionParams) (*planDomain.PlanVersion, error) {
	activeFrom := params.ActiveFrom
	if activeFrom.IsZero() {
		activeFrom = time.Now().UTC()
	}

	version := &planDomain.PlanVersion{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN_VERSION),
		PlanID:            planID,
		Version:           number,
		Currency:          params.Currency,
		Components:        params.Components,
		RecurringCharges:  params.RecurringCharges,
		Features:          params.Features,
		PriceAdjustment:   params.PriceAdjustment,
		DayAnchor:         params.DayAnchor,
		MonthAnchor:       params.MonthAnchor,
		ActiveFrom:        activeFrom,
		TargetCustomerIDs: params.TargetCustomerIDs,
		LocalizedName:     params.LocalizedName,
		AddOnSpec:         params.AddOnSpec,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}

	for i := range version.Components {
		if version.Components[i].ID == "" {
			version.Components[i].ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_COMPONENT)
		}
		if _, err := s.MetricRepo.Get(ctx, version.Components[i].MetricID); err != nil {
			return nil, err
		}
	}
	for i := range version.RecurringCharges {
		if version.RecurringCharges[i].ID == "" {
			version.RecurringCharges[i].ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RECURRING_CHARGE)
		}
	}
	for i := range version.Features {
		if version.Features[i].ID == "" {
			version.Features[i].ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FEATURE)
		}
	}

	if err := version.Validate(); err != nil {
		return nil, err
	}
	return version, nil
}

func (s *planService) Get(ctx context.Context, id string) (*planDomain.Plan, error) {
	return s.PlanRepo.GetPlan(ctx, id)
}

func (s *planService) List(ctx context.Context) ([]*planDomain.Plan, error) {
	return s.PlanRepo.ListPlans(ctx)
}

func (s *planService) AddVersion(ctx context.Context, planID string, params CreateVersionParams) (*planDomain.PlanVersion, error) {
	if _, err := s.PlanRepo.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	existing, err := s.PlanRepo.ListVersions(ctx, planID)
	if err != nil {
		return nil, err
	}
	highest := 0
	for _, v := range existing {
		if v.Version > highest {
			highest = v.Version
		}
	}

	version, err := s.newVersion(ctx, planID, highest+1, params)
	if err != nil {
		return nil, err
	}
	if err := s.PlanRepo.CreateVersion(ctx, version); err != nil {
		return nil, err
	}
	return version, nil
}

func (s *planService) GetActiveVersion(ctx context.Context, planID string) (*planDomain.PlanVersion, error) {
	return s.PlanRepo.GetActiveVersion(ctx, planID)
}

func (s *planService) ListVersions(ctx context.Context, planID string) ([]*planDomain.PlanVersion, error) {
	return s.PlanRepo.ListVersions(ctx, planID)
}

func (s *planService) RetireVersion(ctx context.Context, versionID, replaceWithID string) (*planDomain.PlanVersion, error) {
	version, err := s.PlanRepo.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if replaceWithID != "" {
		replacement, err := s.PlanRepo.GetVersion(ctx, replaceWithID)
		if err != nil {
			return nil, err
		}
		if replacement.PlanID != version.PlanID {
			return nil, ierr.NewError("replacement belongs to another plan").
				Mark(ierr.ErrValidation)
		}
		version.ReplaceWithID = replaceWithID
	}

	now := time.Now().UTC()
	version.ActiveTo = &now
	if err := s.PlanRepo.UpdateVersion(ctx, version); err != nil {
		return nil, err
	}
	return version, nil
}
