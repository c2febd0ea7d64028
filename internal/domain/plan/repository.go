package plan

import "context"

type Repository interface {
	CreatePlan(ctx context.Context, plan *Plan) error
	GetPlan(ctx context.Context, id string) (*Plan, error)
	ListPlans(ctx context.Context) ([]*Plan, error)

	CreateVersion(ctx context.Context, version *PlanVersion) error
	GetVersion(ctx context.Context, id string) (*PlanVersion, error)
	// GetActiveVersion returns the currently active version of the plan
	GetActiveVersion(ctx context.Context, planID string) (*PlanVersion, error)
	ListVersions(ctx context.Context, planID string) ([]*PlanVersion, error)
	UpdateVersion(ctx context.Context, version *PlanVersion) error
}
