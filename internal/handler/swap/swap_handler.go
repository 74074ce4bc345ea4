// Package swap provides swap workflow HTTP handlers.
package swap

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/common/response"
	"github.com/tdnguyen-dev/evswap-station/internal/middleware"
	swapService "github.com/tdnguyen-dev/evswap-station/internal/service/swap"
)

// Handler serves swap workflow endpoints.
type Handler struct {
	swapService *swapService.SwapService
}

// NewHandler creates a swap handler.
func NewHandler(swapSvc *swapService.SwapService) *Handler {
	return &Handler{swapService: swapSvc}
}

// Start creates a swap transaction for a checked-in reservation
// @Summary Start a swap
// @Tags swap
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body swapService.StartSwapRequest true "start payload"
// @Success 200 {object} response.Response{data=swapService.SwapInfo}
// @Router /api/v1/swaps [post]
func (h *Handler) Start(c *gin.Context) {
	var req swapService.StartSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	swap, err := h.swapService.StartSwap(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, swap)
}

// Finalize performs the physical swap
// @Summary Finalize a swap from a reservation
// @Tags swap
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body swapService.FinalizeRequest true "finalize payload"
// @Success 200 {object} response.Response{data=coreapi.SwapResult}
// @Router /api/v1/swaps/finalize [post]
func (h *Handler) Finalize(c *gin.Context) {
	var req swapService.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	result, err := h.swapService.FinalizeFromReservation(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, result)
}

type completeRequest struct {
	DriverPhone string `json:"driver_phone"`
}

// Complete transitions a swap to Completed
// @Summary Complete a swap
// @Tags swap
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "swap id"
// @Param request body completeRequest false "optional driver phone for the receipt SMS"
// @Success 200 {object} response.Response{data=swapService.SwapInfo}
// @Router /api/v1/swaps/{id}/complete [put]
func (h *Handler) Complete(c *gin.Context) {
	var req completeRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	swap, err := h.swapService.CompleteSwap(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req.DriverPhone)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, swap)
}

// Current returns the caller's in-progress swap
// @Summary Current swap
// @Tags swap
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=swapService.SwapInfo}
// @Router /api/v1/swaps/current [get]
func (h *Handler) Current(c *gin.Context) {
	swap, err := h.swapService.Current(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, swap)
}

// History returns a page of past swaps
// @Summary Swap history
// @Tags swap
// @Produce json
// @Security Bearer
// @Param page query int false "page" default(1)
// @Param page_size query int false "page size" default(20)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/swaps/history [get]
func (h *Handler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	swaps, total, err := h.swapService.History(c.Request.Context(), c.Query("user_id"), page, pageSize)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.SuccessPage(c, swaps, total, page, pageSize)
}

// RegisterRoutes registers swap routes. Mutations are staff operations;
// drivers read their own current swap and history.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, jwtManager *jwt.Manager) {
	swaps := r.Group("/swaps")
	{
		swaps.POST("", middleware.StaffAuth(jwtManager), h.Start)
		swaps.POST("/finalize", middleware.StaffAuth(jwtManager), h.Finalize)
		swaps.PUT("/:id/complete", middleware.StaffAuth(jwtManager), h.Complete)
		swaps.GET("/current", middleware.AnyAuth(jwtManager), h.Current)
		swaps.GET("/history", middleware.AnyAuth(jwtManager), h.History)
	}
}
