// Package revenue provides station revenue report HTTP handlers.
package revenue

import (
	"github.com/gin-gonic/gin"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/common/response"
	"github.com/tdnguyen-dev/evswap-station/internal/middleware"
	revenueService "github.com/tdnguyen-dev/evswap-station/internal/service/revenue"
)

// Handler serves revenue report endpoints.
type Handler struct {
	revenueService *revenueService.RevenueService
}

// NewHandler creates a revenue handler.
func NewHandler(revenueSvc *revenueService.RevenueService) *Handler {
	return &Handler{revenueService: revenueSvc}
}

// StationReport returns revenue stats for a station and period
// @Summary Station revenue report
// @Tags revenue
// @Produce json
// @Security Bearer
// @Param station_id query string true "station id"
// @Param period query string false "today, week or month" default(today)
// @Success 200 {object} response.Response{data=revenueService.Stats}
// @Router /api/v1/revenue [get]
func (h *Handler) StationReport(c *gin.Context) {
	stationID := c.Query("station_id")
	if stationID == "" {
		response.BadRequest(c, "station_id is required")
		return
	}
	period := c.DefaultQuery("period", revenueService.PeriodToday)

	stats, err := h.revenueService.StationReport(c.Request.Context(), stationID, period)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, stats)
}

// RegisterRoutes registers revenue routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, jwtManager *jwt.Manager) {
	r.GET("/revenue", middleware.StaffAuth(jwtManager), h.StationReport)
}
