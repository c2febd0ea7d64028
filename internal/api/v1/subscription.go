package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/api/dto"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type SubscriptionHandler struct {
	service service.SubscriptionService
	log     *logger.Logger
}

func NewSubscriptionHandler(service service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, log: log}
}

func (h *SubscriptionHandler) Attach(c *gin.Context) {
	var req dto.AttachSubscriptionRequest
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

	rec, err := h.service.AttachPlan(c.Request.Context(), req.ToParams())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *SubscriptionHandler) List(c *gin.Context) {
	filter := &subscription.RecordFilter{
		CustomerID: c.Query("customer_id"),
	}
	rangeStart, err := parseTimeQuery(c, "range_start")
	if err != nil {
		c.Error(err)
		return
	}
	rangeEnd, err := parseTimeQuery(c, "range_end")
	if err != nil {
		c.Error(err)
		return
	}
	if !rangeStart.IsZero() {
		filter.RangeStart = &rangeStart
	}
	if !rangeEnd.IsZero() {
		filter.RangeEnd = &rangeEnd
	}

	records, err := h.service.ListRecords(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	// Status is derived from the window, so it filters in memory
	if status := c.Query("status"); status != "" {
		now := time.Now().UTC()
		records = lo.Filter(records, func(r *subscription.SubscriptionRecord, _ int) bool {
			return r.Status(now) == types.SubscriptionRecordStatus(status)
		})
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": records})
}

func (h *SubscriptionHandler) Get(c *gin.Context) {
	rec, err := h.service.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// fillTargetFromQuery lets callers address records by query string instead
// of repeating the identifiers in the body
func fillTargetFromQuery(c *gin.Context, customerID, planID *string, filters *map[string]string) {
	if *customerID == "" {
		*customerID = c.Query("customer_id")
	}
	if *planID == "" {
		*planID = c.Query("plan_id")
	}
	if len(*filters) == 0 {
		if qf := c.QueryMap("subscription_filters"); len(qf) > 0 {
			*filters = qf
		}
	}
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	var req dto.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	fillTargetFromQuery(c, &req.CustomerID, &req.PlanID, &req.Filters)
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	records, err := h.service.Cancel(c.Request.Context(), req.ToParams())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": records})
}

func (h *SubscriptionHandler) Update(c *gin.Context) {
	var req dto.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	fillTargetFromQuery(c, &req.CustomerID, &req.PlanID, &req.Filters)
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	var (
		records []*subscription.SubscriptionRecord
		err     error
	)
	if req.IsSwitch() {
		records, err = h.service.SwitchPlan(c.Request.Context(), req.ToSwitchParams())
	} else {
		records, err = h.service.UpdateRecord(c.Request.Context(), req.ToUpdateParams())
	}
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": records})
}

func (h *SubscriptionHandler) AttachAddOn(c *gin.Context) {
	var req dto.AttachAddOnRequest
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

	rec, err := h.service.AttachAddOn(c.Request.Context(), req.ToParams())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *SubscriptionHandler) UpdateAddOn(c *gin.Context) {
	var req dto.UpdateAddOnRequest
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

	rec, err := h.service.UpdateAddOn(c.Request.Context(), req.ToParams())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *SubscriptionHandler) CancelAddOn(c *gin.Context) {
	var req dto.CancelAddOnRequest
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

	rec, err := h.service.CancelAddOn(c.Request.Context(), req.ToParams())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
