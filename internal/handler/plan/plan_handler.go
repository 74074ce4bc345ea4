// Package plan provides subscription plan HTTP handlers.
package plan

import (
	"github.com/gin-gonic/gin"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/common/response"
	"github.com/tdnguyen-dev/evswap-station/internal/middleware"
	planService "github.com/tdnguyen-dev/evswap-station/internal/service/plan"
)

// Handler serves subscription plan endpoints.
type Handler struct {
	planService *planService.PlanService
}

// NewHandler creates a plan handler.
func NewHandler(planSvc *planService.PlanService) *Handler {
	return &Handler{planService: planSvc}
}

// List returns all plans with normalized pricing
// @Summary List subscription plans
// @Tags plan
// @Produce json
// @Success 200 {object} response.Response{data=[]planService.PlanInfo}
// @Router /api/v1/plans [get]
func (h *Handler) List(c *gin.Context) {
	plans, err := h.planService.List(c.Request.Context())
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, plans)
}

// Get returns one plan
// @Summary Get subscription plan
// @Tags plan
// @Produce json
// @Param id path string true "plan id"
// @Success 200 {object} response.Response{data=planService.PlanInfo}
// @Router /api/v1/plans/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	plan, err := h.planService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, plan)
}

// Subscribe enrolls the caller in a plan
// @Summary Subscribe to a plan
// @Tags plan
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body planService.SubscribeRequest true "plan id"
// @Success 200 {object} response.Response{data=planService.SubscribeResult}
// @Router /api/v1/plans/subscribe [post]
func (h *Handler) Subscribe(c *gin.Context) {
	var req planService.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "plan_id is required")
		return
	}

	result, err := h.planService.Subscribe(c.Request.Context(), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, result)
}

// RegisterRoutes registers plan routes. Browsing plans needs no account,
// subscribing is a driver operation.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, jwtManager *jwt.Manager) {
	plans := r.Group("/plans")
	{
		plans.GET("", h.List)
		plans.GET("/:id", h.Get)
		plans.POST("/subscribe", middleware.DriverAuth(jwtManager), h.Subscribe)
	}
}
