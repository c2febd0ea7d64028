package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID      ContextKey = "ctx_request_id"
	CtxOrganizationID ContextKey = "ctx_organization_id"
	CtxAPIKeyPrefix   ContextKey = "ctx_api_key_prefix"
)

func GetOrganizationID(ctx context.Context) string {
	if orgID, ok := ctx.Value(CtxOrganizationID).(string); ok {
		return orgID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetAPIKeyPrefix(ctx context.Context) string {
	if prefix, ok := ctx.Value(CtxAPIKeyPrefix).(string); ok {
		return prefix
	}
	return ""
}

// SetOrganizationID sets the organization ID in the context
func SetOrganizationID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, CtxOrganizationID, orgID)
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}
