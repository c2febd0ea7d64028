package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/api/dto"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type EventsHandler struct {
	service service.EventService
	log     *logger.Logger
}

func NewEventsHandler(service service.EventService, log *logger.Logger) *EventsHandler {
	return &EventsHandler{service: service, log: log}
}

// Track ingests one event or a batch. Per event failures never fail the
// request: a fully rejected batch returns 400, anything else 201.
func (h *EventsHandler) Track(c *gin.Context) {
	var req dto.TrackEventsRequest
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

	result, err := h.service.TrackEvents(c.Request.Context(), req.Events())
	if err != nil {
		c.Error(err)
		return
	}

	status := http.StatusCreated
	if result.Status == service.IngestNone {
		status = http.StatusBadRequest
	}
	c.JSON(status, result)
}

// GetUsage aggregates one metric's usage over a window
func (h *EventsHandler) GetUsage(c *gin.Context) {
	metricID := c.Query("metric_id")
	customerID := c.Query("customer_id")
	if metricID == "" {
		c.Error(ierr.NewError("metric_id is required").
			WithHint("Pass metric_id as a query parameter").
			Mark(ierr.ErrValidation))
		return
	}

	start, err := parseTimeQuery(c, "start_time")
	if err != nil {
		c.Error(err)
		return
	}
	end, err := parseTimeQuery(c, "end_time")
	if err != nil {
		c.Error(err)
		return
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}

	granularity := types.MetricGranularity(c.Query("granularity"))
	result, err := h.service.GetUsage(c.Request.Context(), metricID, customerID, start, end, granularity)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseTimeQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHintf("%s must be RFC 3339", name).
			Mark(ierr.ErrValidation)
	}
	return t, nil
}
