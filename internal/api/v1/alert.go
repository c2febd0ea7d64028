package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/api/dto"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
)

type AlertHandler struct {
	service service.AlertService
	log     *logger.Logger
}

func NewAlertHandler(service service.AlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{service: service, log: log}
}

func (h *AlertHandler) Create(c *gin.Context) {
	var req dto.CreateAlertRequest
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

	a, err := h.service.Create(c.Request.Context(), req.MetricID, req.PlanVersionID, req.Threshold)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *AlertHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
