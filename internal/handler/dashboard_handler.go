package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maktab-hq/maktab-api/internal/middleware"
	"github.com/maktab-hq/maktab-api/internal/service"
	"github.com/maktab-hq/maktab-api/pkg/response"
)

// DashboardHandler exposes role-specific landing views.
type DashboardHandler struct {
	dashboards *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboards *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// Admin godoc
// @Summary Admin dashboard
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboards/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	board, cached, err := h.dashboards.Admin(c.Request.Context(), requestScope(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, board, nil, middleware.Meta(c))
}

// Teacher godoc
// @Summary Teacher dashboard
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboards/teacher [get]
func (h *DashboardHandler) Teacher(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	board, err := h.dashboards.Teacher(c.Request.Context(), requestScope(c), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil)
}

// Student godoc
// @Summary Student dashboard
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboards/student [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	board, err := h.dashboards.Student(c.Request.Context(), requestScope(c), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil)
}
