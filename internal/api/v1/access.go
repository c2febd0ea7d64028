package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
)

type AccessHandler struct {
	service service.AccessService
	log     *logger.Logger
}

func NewAccessHandler(service service.AccessService, log *logger.Logger) *AccessHandler {
	return &AccessHandler{service: service, log: log}
}

// MetricAccess answers whether the customer may keep consuming a metric,
// with per record usage against limits
func (h *AccessHandler) MetricAccess(c *gin.Context) {
	customerID := c.Query("customer_id")
	metricID := c.Query("metric_id")
	if customerID == "" || metricID == "" {
		c.Error(ierr.NewError("customer_id and metric_id are required").
			WithHint("Pass customer_id and metric_id as query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.MetricAccess(c.Request.Context(), customerID, metricID, c.QueryMap("subscription_filters"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AccessHandler) FeatureAccess(c *gin.Context) {
	customerID := c.Query("customer_id")
	featureID := c.Query("feature_id")
	if customerID == "" || featureID == "" {
		c.Error(ierr.NewError("customer_id and feature_id are required").
			WithHint("Pass customer_id and feature_id as query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.FeatureAccess(c.Request.Context(), customerID, featureID, c.QueryMap("subscription_filters"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
