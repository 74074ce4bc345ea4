// Package inventory provides battery stock HTTP handlers.
package inventory

import (
	"github.com/gin-gonic/gin"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/common/response"
	"github.com/tdnguyen-dev/evswap-station/internal/middleware"
	inventoryService "github.com/tdnguyen-dev/evswap-station/internal/service/inventory"
)

// Handler serves inventory endpoints.
type Handler struct {
	inventoryService *inventoryService.InventoryService
}

// NewHandler creates an inventory handler.
func NewHandler(inventorySvc *inventoryService.InventoryService) *Handler {
	return &Handler{inventoryService: inventorySvc}
}

// List returns station inventory with telemetry merged in
// @Summary List battery units
// @Tags inventory
// @Produce json
// @Security Bearer
// @Param station_id query string true "station id"
// @Param model_id query string false "battery model id"
// @Param filter query string false "all, capacity band, model family or condition"
// @Param sort query string false "health, cycles, temperature, voltage, model, status"
// @Success 200 {object} response.Response{data=[]coreapi.BatteryUnit}
// @Router /api/v1/inventory [get]
func (h *Handler) List(c *gin.Context) {
	var req inventoryService.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "station_id is required")
		return
	}

	units, err := h.inventoryService.List(c.Request.Context(), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, units)
}

// Summary returns classification counts for a station
// @Summary Inventory summary
// @Tags inventory
// @Produce json
// @Security Bearer
// @Param station_id query string true "station id"
// @Success 200 {object} response.Response{data=inventoryService.Stats}
// @Router /api/v1/inventory/summary [get]
func (h *Handler) Summary(c *gin.Context) {
	stationID := c.Query("station_id")
	if stationID == "" {
		response.BadRequest(c, "station_id is required")
		return
	}

	stats, err := h.inventoryService.Summary(c.Request.Context(), stationID)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, stats)
}

// AddStock registers new battery units
// @Summary Add stock
// @Tags inventory
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body inventoryService.AddStockRequest true "stock payload"
// @Success 200 {object} response.Response{data=coreapi.StockResult}
// @Router /api/v1/inventory/stock [post]
func (h *Handler) AddStock(c *gin.Context) {
	var req inventoryService.AddStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	result, err := h.inventoryService.AddStock(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, result)
}

// RemoveStock retires battery units
// @Summary Remove stock
// @Tags inventory
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body inventoryService.RemoveStockRequest true "stock payload"
// @Success 200 {object} response.Response{data=coreapi.StockResult}
// @Router /api/v1/inventory/stock/remove [post]
func (h *Handler) RemoveStock(c *gin.Context) {
	var req inventoryService.RemoveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	result, err := h.inventoryService.RemoveStock(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, result)
}

// ChangeStatus moves units between status buckets
// @Summary Change unit status in bulk
// @Tags inventory
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body inventoryService.ChangeStatusRequest true "status move payload"
// @Success 200 {object} response.Response{data=coreapi.StockResult}
// @Router /api/v1/inventory/status [patch]
func (h *Handler) ChangeStatus(c *gin.Context) {
	var req inventoryService.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	result, err := h.inventoryService.ChangeStatus(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, result)
}

// RegisterRoutes registers inventory routes. Reads are open to staff and
// admin, stock mutations are admin only.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, jwtManager *jwt.Manager) {
	inventory := r.Group("/inventory")
	{
		inventory.GET("", middleware.StaffAuth(jwtManager), h.List)
		inventory.GET("/summary", middleware.StaffAuth(jwtManager), h.Summary)
		inventory.POST("/stock", middleware.AdminAuth(jwtManager), h.AddStock)
		inventory.POST("/stock/remove", middleware.AdminAuth(jwtManager), h.RemoveStock)
		inventory.PATCH("/status", middleware.AdminAuth(jwtManager), h.ChangeStatus)
	}
}
