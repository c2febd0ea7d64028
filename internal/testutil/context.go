package testutil

import (
	"context"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

const (
	// TestOrgID is the organization all test fixtures live under
	TestOrgID = "org_00000000000000000000000000000001"
)

// SetupContext returns a context carrying the test organization and a
// request id, mirroring what the auth middleware sets in production
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetOrganizationID(ctx, TestOrgID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}
