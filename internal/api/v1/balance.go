package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/api/dto"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
)

type BalanceHandler struct {
	service service.BalanceService
	log     *logger.Logger
}

func NewBalanceHandler(service service.BalanceService, log *logger.Logger) *BalanceHandler {
	return &BalanceHandler{service: service, log: log}
}

func (h *BalanceHandler) Create(c *gin.Context) {
	var req dto.CreateBalanceAdjustmentRequest
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

	grant, err := h.service.CreateGrant(c.Request.Context(), req.ToParams())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, grant)
}

func (h *BalanceHandler) List(c *gin.Context) {
	customerID := c.Query("customer_id")
	if customerID == "" {
		c.Error(ierr.NewError("customer_id is required").
			WithHint("Pass customer_id as a query parameter").
			Mark(ierr.ErrValidation))
		return
	}

	grants, err := h.service.List(c.Request.Context(), customerID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance_adjustments": grants})
}

func (h *BalanceHandler) Get(c *gin.Context) {
	grant, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

// Void forfeits the remaining amount of an active grant
func (h *BalanceHandler) Void(c *gin.Context) {
	grant, err := h.service.VoidGrant(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, grant)
}
