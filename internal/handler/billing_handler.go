package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maktab-hq/maktab-api/internal/models"
	"github.com/maktab-hq/maktab-api/internal/service"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
	"github.com/maktab-hq/maktab-api/pkg/response"
)

// BillingHandler exposes fee statement and payment endpoints.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler constructs BillingHandler.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// Statement godoc
// @Summary Fee statement for one student and month
// @Tags Billing
// @Produce json
// @Param id path string true "Student ID"
// @Param month query int false "Month (defaults to current)"
// @Param year query int false "Year (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /billing/students/{id}/statement [get]
func (h *BillingHandler) Statement(c *gin.Context) {
	period, err := periodFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	statement, err := h.billing.Statement(c.Request.Context(), requestScope(c), c.Param("id"), period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statement, nil)
}

// RecordPayment godoc
// @Summary Record a fee payment
// @Description Creates the month's invoice on first payment and appends an immutable transaction
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body service.RecordFeePaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /billing/payments [post]
func (h *BillingHandler) RecordPayment(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.RecordFeePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	statement, err := h.billing.RecordPayment(c.Request.Context(), requestScope(c), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, statement)
}

// Transactions godoc
// @Summary Payment history for one student and month
// @Tags Billing
// @Produce json
// @Param id path string true "Student ID"
// @Param month query int false "Month"
// @Param year query int false "Year"
// @Success 200 {object} response.Envelope
// @Router /billing/students/{id}/transactions [get]
func (h *BillingHandler) Transactions(c *gin.Context) {
	period, err := periodFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	txns, err := h.billing.Transactions(c.Request.Context(), requestScope(c), c.Param("id"), period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, txns, nil)
}

// ProjectRevenue godoc
// @Summary Project expected revenue for a class over a month range
// @Tags Billing
// @Produce json
// @Param class_id query string true "Class ID"
// @Param from_month query int true "Range start month"
// @Param from_year query int true "Range start year"
// @Param to_month query int true "Range end month"
// @Param to_year query int true "Range end year"
// @Success 200 {object} response.Envelope
// @Router /billing/revenue-projection [get]
func (h *BillingHandler) ProjectRevenue(c *gin.Context) {
	classID := c.Query("class_id")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class_id is required"))
		return
	}
	from, err := models.NewPeriod(intQuery(c, "from_month", 0), intQuery(c, "from_year", 0))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error()))
		return
	}
	to, err := models.NewPeriod(intQuery(c, "to_month", 0), intQuery(c, "to_year", 0))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error()))
		return
	}
	projection, err := h.billing.ProjectRevenue(c.Request.Context(), requestScope(c), classID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projection, nil)
}
