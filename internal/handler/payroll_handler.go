package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maktab-hq/maktab-api/internal/service"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
	"github.com/maktab-hq/maktab-api/pkg/response"
)

// PayrollHandler exposes payroll computation and settlement endpoints.
type PayrollHandler struct {
	payroll *service.PayrollService
}

// NewPayrollHandler constructs PayrollHandler.
func NewPayrollHandler(payroll *service.PayrollService) *PayrollHandler {
	return &PayrollHandler{payroll: payroll}
}

// Compute godoc
// @Summary Payroll computation for one employee and month
// @Description Attendance-derived deductions plus carried balance; read-only
// @Tags Payroll
// @Produce json
// @Param id path string true "Employee ID"
// @Param month query int false "Month"
// @Param year query int false "Year"
// @Success 200 {object} response.Envelope
// @Router /payroll/employees/{id} [get]
func (h *PayrollHandler) Compute(c *gin.Context) {
	period, err := periodFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	computation, err := h.payroll.Compute(c.Request.Context(), requestScope(c), c.Param("id"), period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, computation, nil)
}

// Settle godoc
// @Summary Settle a payroll period
// @Description Records a salary payment, creating the period's ledger row on first settlement
// @Tags Payroll
// @Accept json
// @Produce json
// @Param payload body service.SettlePayrollRequest true "Settlement payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payroll/settlements [post]
func (h *PayrollHandler) Settle(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.SettlePayrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	computation, err := h.payroll.Settle(c.Request.Context(), requestScope(c), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, computation, nil)
}

// Sheet godoc
// @Summary Payroll sheet for every active employee
// @Description Employees without an active salary definition appear as skipped entries
// @Tags Payroll
// @Produce json
// @Param month query int false "Month"
// @Param year query int false "Year"
// @Success 200 {object} response.Envelope
// @Router /payroll/sheet [get]
func (h *PayrollHandler) Sheet(c *gin.Context) {
	period, err := periodFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	outcomes, err := h.payroll.Sheet(c.Request.Context(), requestScope(c), period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcomes, nil)
}

// Transactions godoc
// @Summary Salary payment history for one employee and month
// @Tags Payroll
// @Produce json
// @Param id path string true "Employee ID"
// @Param month query int false "Month"
// @Param year query int false "Year"
// @Success 200 {object} response.Envelope
// @Router /payroll/employees/{id}/transactions [get]
func (h *PayrollHandler) Transactions(c *gin.Context) {
	period, err := periodFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	txns, err := h.payroll.Transactions(c.Request.Context(), requestScope(c), c.Param("id"), period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, txns, nil)
}
