package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/api/dto"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type APIKeyHandler struct {
	service service.AuthService
	log     *logger.Logger
}

func NewAPIKeyHandler(service service.AuthService, log *logger.Logger) *APIKeyHandler {
	return &APIKeyHandler{service: service, log: log}
}

// Create mints a key for the caller's organization. The raw key appears in
// this response only.
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req dto.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	ctx := c.Request.Context()
	key, raw, err := h.service.CreateAPIKey(ctx, types.GetOrganizationID(ctx), req.Name, req.ExpiresAt)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dto.CreateAPIKeyResponse{
		Prefix:    key.Prefix,
		Key:       raw,
		Name:      key.Name,
		ExpiresAt: key.ExpiresAt,
	})
}

func (h *APIKeyHandler) Revoke(c *gin.Context) {
	if err := h.service.RevokeAPIKey(c.Request.Context(), c.Param("prefix")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
