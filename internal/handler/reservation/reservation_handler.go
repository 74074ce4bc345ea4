// Package reservation provides the staff reservation queue HTTP handlers.
package reservation

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/common/response"
	"github.com/tdnguyen-dev/evswap-station/internal/middleware"
	reservationService "github.com/tdnguyen-dev/evswap-station/internal/service/reservation"
)

// Handler serves reservation endpoints.
type Handler struct {
	reservationService *reservationService.ReservationService
}

// NewHandler creates a reservation handler.
func NewHandler(reservationSvc *reservationService.ReservationService) *Handler {
	return &Handler{reservationService: reservationSvc}
}

// List returns the reservation queue for a station
// @Summary List reservations
// @Tags reservation
// @Produce json
// @Security Bearer
// @Param station_id query string true "station id"
// @Param date query string false "slot date YYYY-MM-DD"
// @Param status query string false "status name"
// @Success 200 {object} response.Response{data=[]reservationService.ReservationInfo}
// @Router /api/v1/reservations [get]
func (h *Handler) List(c *gin.Context) {
	var req reservationService.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "station_id is required")
		return
	}

	reservations, err := h.reservationService.List(c.Request.Context(), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, reservations)
}

// Get returns one reservation
// @Summary Get reservation
// @Tags reservation
// @Produce json
// @Security Bearer
// @Param id path string true "reservation id"
// @Success 200 {object} response.Response{data=reservationService.ReservationInfo}
// @Router /api/v1/reservations/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	reservation, err := h.reservationService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, reservation)
}

type checkInRequest struct {
	QRPayload string `json:"qr_payload" binding:"required"`
}

// CheckIn checks a driver in from a scanned QR code
// @Summary Check in a reservation
// @Tags reservation
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "reservation id"
// @Param request body checkInRequest true "scanned QR payload"
// @Success 200 {object} response.Response{data=reservationService.CheckInResult}
// @Router /api/v1/reservations/{id}/check-in [post]
func (h *Handler) CheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "qr_payload is required")
		return
	}

	staffID := strconv.FormatInt(middleware.GetUserID(c), 10)
	result, err := h.reservationService.CheckIn(c.Request.Context(), c.Param("id"), req.QRPayload, staffID)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, result)
}

// Cancel cancels a pending reservation
// @Summary Cancel reservation
// @Tags reservation
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "reservation id"
// @Param request body reservationService.CancelRequest true "cancel reason"
// @Success 200 {object} response.Response
// @Router /api/v1/reservations/{id} [delete]
func (h *Handler) Cancel(c *gin.Context) {
	var req reservationService.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "reason is required")
		return
	}

	if err := h.reservationService.Cancel(c.Request.Context(), c.Param("id"), &req); err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, nil)
}

// RenderQR returns the reservation QR code as a data URI
// @Summary Render reservation QR
// @Tags reservation
// @Produce json
// @Security Bearer
// @Param id path string true "reservation id"
// @Success 200 {object} response.Response{data=string}
// @Router /api/v1/reservations/{id}/qr [get]
func (h *Handler) RenderQR(c *gin.Context) {
	dataURI, err := h.reservationService.RenderQR(c.Request.Context(), c.Param("id"))
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, dataURI)
}

// RegisterRoutes registers reservation routes. The queue and check-in are
// staff operations; drivers can view and cancel their own reservations.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, jwtManager *jwt.Manager) {
	reservations := r.Group("/reservations")
	{
		reservations.GET("", middleware.StaffAuth(jwtManager), h.List)
		reservations.GET("/:id", middleware.AnyAuth(jwtManager), h.Get)
		reservations.GET("/:id/qr", middleware.AnyAuth(jwtManager), h.RenderQR)
		reservations.POST("/:id/check-in", middleware.StaffAuth(jwtManager), h.CheckIn)
		reservations.DELETE("/:id", middleware.AnyAuth(jwtManager), h.Cancel)
	}
}
