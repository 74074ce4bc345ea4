// Package auth provides account and session HTTP handlers.
package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/common/response"
	"github.com/tdnguyen-dev/evswap-station/internal/middleware"
	authService "github.com/tdnguyen-dev/evswap-station/internal/service/auth"
)

// Handler serves account endpoints.
type Handler struct {
	authService *authService.AuthService
}

// NewHandler creates an auth handler.
func NewHandler(authSvc *authService.AuthService) *Handler {
	return &Handler{authService: authSvc}
}

// Register creates a driver account
// @Summary Register a driver account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body authService.RegisterRequest true "registration payload"
// @Success 200 {object} response.Response{data=authService.UserInfo}
// @Router /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req authService.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, user)
}

// Login authenticates with phone and password
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body authService.LoginRequest true "login payload"
// @Success 200 {object} response.Response{data=authService.LoginResult}
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req authService.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, result)
}

type sendCodeRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// SendVerifyCode sends an SMS verification code
// @Summary Send verification code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body sendCodeRequest true "phone"
// @Success 200 {object} response.Response
// @Router /api/v1/auth/code [post]
func (h *Handler) SendVerifyCode(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	if err := h.authService.SendVerifyCode(c.Request.Context(), req.Phone); err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, nil)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken exchanges a refresh token for a new pair
// @Summary Refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body refreshRequest true "refresh token"
// @Success 200 {object} response.Response{data=jwt.TokenPair}
// @Router /api/v1/auth/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	pair, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, pair)
}

// Logout ends the caller's session
// @Summary Logout
// @Tags auth
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), userID); err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, nil)
}

// GetProfile returns the caller's account
// @Summary Get profile
// @Tags auth
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=authService.UserInfo}
// @Router /api/v1/auth/profile [get]
func (h *Handler) GetProfile(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "")
		return
	}

	user, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, user)
}

// UpdateProfile updates mutable profile fields
// @Summary Update profile
// @Tags auth
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body authService.UpdateProfileRequest true "profile fields"
// @Success 200 {object} response.Response{data=authService.UserInfo}
// @Router /api/v1/auth/profile [put]
func (h *Handler) UpdateProfile(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "")
		return
	}

	var req authService.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, user)
}

// RegisterRoutes registers auth routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, jwtManager *jwt.Manager) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/code", h.SendVerifyCode)
		auth.POST("/refresh", h.RefreshToken)

		auth.POST("/logout", middleware.AnyAuth(jwtManager), h.Logout)
		auth.GET("/profile", middleware.AnyAuth(jwtManager), h.GetProfile)
		auth.PUT("/profile", middleware.AnyAuth(jwtManager), h.UpdateProfile)
	}
}
