package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/api/dto"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
)

type MetricHandler struct {
	service service.MetricService
	alerts  service.AlertService
	log     *logger.Logger
}

func NewMetricHandler(service service.MetricService, alerts service.AlertService, log *logger.Logger) *MetricHandler {
	return &MetricHandler{service: service, alerts: alerts, log: log}
}

func (h *MetricHandler) Create(c *gin.Context) {
	var req dto.CreateMetricRequest
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

	met, err := h.service.Create(c.Request.Context(), req.ToParams())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, met)
}

func (h *MetricHandler) Get(c *gin.Context) {
	met, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, met)
}

func (h *MetricHandler) List(c *gin.Context) {
	metrics, err := h.service.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": metrics})
}

func (h *MetricHandler) Archive(c *gin.Context) {
	if err := h.service.Archive(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "archived"})
}

func (h *MetricHandler) ListAlerts(c *gin.Context) {
	alerts, err := h.alerts.ListByMetric(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage_alerts": alerts})
}
