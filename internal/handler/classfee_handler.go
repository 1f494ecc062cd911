package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maktab-hq/maktab-api/internal/service"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
	"github.com/maktab-hq/maktab-api/pkg/response"
)

// ClassFeeHandler exposes fee schedule, charge and fine endpoints.
type ClassFeeHandler struct {
	fees *service.ClassFeeService
}

// NewClassFeeHandler constructs ClassFeeHandler.
func NewClassFeeHandler(fees *service.ClassFeeService) *ClassFeeHandler {
	return &ClassFeeHandler{fees: fees}
}

// Schedule godoc
// @Summary Fee schedule for a class
// @Tags ClassFees
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/fees [get]
func (h *ClassFeeHandler) Schedule(c *gin.Context) {
	fee, err := h.fees.Schedule(c.Request.Context(), requestScope(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// SetSchedule godoc
// @Summary Install or replace a class fee schedule
// @Tags ClassFees
// @Accept json
// @Produce json
// @Param payload body service.SetClassFeeRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /classes/fees [put]
func (h *ClassFeeHandler) SetSchedule(c *gin.Context) {
	var req service.SetClassFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	fee, err := h.fees.SetSchedule(c.Request.Context(), requestScope(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// Charges godoc
// @Summary Active extra charges for a class
// @Tags ClassFees
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/charges [get]
func (h *ClassFeeHandler) Charges(c *gin.Context) {
	charges, err := h.fees.Charges(c.Request.Context(), requestScope(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charges, nil)
}

// CreateCharge godoc
// @Summary Add an extra charge to a class
// @Tags ClassFees
// @Accept json
// @Produce json
// @Param payload body service.CreateChargeRequest true "Charge payload"
// @Success 201 {object} response.Envelope
// @Router /classes/charges [post]
func (h *ClassFeeHandler) CreateCharge(c *gin.Context) {
	var req service.CreateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	charge, err := h.fees.CreateCharge(c.Request.Context(), requestScope(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, charge)
}

// DeactivateCharge godoc
// @Summary Retire an extra charge
// @Tags ClassFees
// @Produce json
// @Param id path string true "Charge ID"
// @Success 204 {object} response.Envelope
// @Router /classes/charges/{id} [delete]
func (h *ClassFeeHandler) DeactivateCharge(c *gin.Context) {
	if err := h.fees.DeactivateCharge(c.Request.Context(), requestScope(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetOptIn godoc
// @Summary Subscribe or unsubscribe a student from an optional charge
// @Tags ClassFees
// @Accept json
// @Produce json
// @Param payload body handler.optInPayload true "Opt-in payload"
// @Success 204 {object} response.Envelope
// @Router /classes/charges/opt-in [post]
func (h *ClassFeeHandler) SetOptIn(c *gin.Context) {
	var payload optInPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.fees.SetOptIn(c.Request.Context(), requestScope(c), payload.StudentID, payload.ChargeID, payload.OptedIn); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type optInPayload struct {
	StudentID string `json:"student_id" binding:"required"`
	ChargeID  string `json:"charge_id" binding:"required"`
	OptedIn   bool   `json:"opted_in"`
}

// Fines godoc
// @Summary Outstanding fines for a student
// @Tags ClassFees
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/fines [get]
func (h *ClassFeeHandler) Fines(c *gin.Context) {
	fines, err := h.fees.Fines(c.Request.Context(), requestScope(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fines, nil)
}

// IssueFine godoc
// @Summary Levy a fine against a student
// @Tags ClassFees
// @Accept json
// @Produce json
// @Param payload body service.IssueFineRequest true "Fine payload"
// @Success 201 {object} response.Envelope
// @Router /fines [post]
func (h *ClassFeeHandler) IssueFine(c *gin.Context) {
	var req service.IssueFineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	fine, err := h.fees.IssueFine(c.Request.Context(), requestScope(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fine)
}

// SettleFine godoc
// @Summary Mark a fine paid
// @Tags ClassFees
// @Produce json
// @Param id path string true "Fine ID"
// @Success 204 {object} response.Envelope
// @Router /fines/{id}/settle [post]
func (h *ClassFeeHandler) SettleFine(c *gin.Context) {
	if err := h.fees.SettleFine(c.Request.Context(), requestScope(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// WaiveFine godoc
// @Summary Waive a fine without payment
// @Tags ClassFees
// @Produce json
// @Param id path string true "Fine ID"
// @Success 204 {object} response.Envelope
// @Router /fines/{id}/waive [post]
func (h *ClassFeeHandler) WaiveFine(c *gin.Context) {
	if err := h.fees.WaiveFine(c.Request.Context(), requestScope(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
