package dto

import (
	"time"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/validator"
)

type CreateAPIKeyRequest struct {
	Name      string     `json:"name" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (r *CreateAPIKeyRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// CreateAPIKeyResponse carries the full key material, shown exactly once
type CreateAPIKeyResponse struct {
	Prefix    string     `json:"prefix"`
	Key       string     `json:"key"`
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
