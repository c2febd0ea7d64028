package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/api/dto"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
)

type CustomerHandler struct {
	service service.CustomerService
	balance service.BalanceService
	log     *logger.Logger
}

func NewCustomerHandler(service service.CustomerService, balance service.BalanceService, log *logger.Logger) *CustomerHandler {
	return &CustomerHandler{service: service, balance: balance, log: log}
}

func (h *CustomerHandler) Create(c *gin.Context) {
	var req dto.CreateCustomerRequest
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

	cust, err := h.service.Create(c.Request.Context(), req.ToParams())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, cust)
}

func (h *CustomerHandler) BatchCreate(c *gin.Context) {
	var req dto.BatchCreateCustomersRequest
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

	result, err := h.service.BatchCreate(c.Request.Context(), req.ToParams())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *CustomerHandler) Get(c *gin.Context) {
	cust, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

func (h *CustomerHandler) List(c *gin.Context) {
	customers, err := h.service.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

func (h *CustomerHandler) Update(c *gin.Context) {
	var req dto.UpdateCustomerRequest
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

	cust, err := h.service.Update(c.Request.Context(), req.ToParams(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

// Balance reports the customer's remaining credit in one currency
func (h *CustomerHandler) Balance(c *gin.Context) {
	currency := c.Query("currency")
	if currency == "" {
		c.Error(ierr.NewError("currency is required").
			WithHint("Pass currency as a query parameter").
			Mark(ierr.ErrValidation))
		return
	}

	amount, err := h.balance.AvailableBalance(c.Request.Context(), c.Param("id"), currency)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"customer_id": c.Param("id"),
		"currency":    currency,
		"balance":     amount,
	})
}
