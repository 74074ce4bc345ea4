// Package payment provides payment HTTP handlers, including the VNPay
// gateway callbacks.
package payment

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/common/response"
	"github.com/tdnguyen-dev/evswap-station/internal/middleware"
	paymentService "github.com/tdnguyen-dev/evswap-station/internal/service/payment"
)

// Handler serves payment endpoints.
type Handler struct {
	paymentService *paymentService.PaymentService
}

// NewHandler creates a payment handler.
func NewHandler(paymentSvc *paymentService.PaymentService) *Handler {
	return &Handler{paymentService: paymentSvc}
}

// CreateVNPay creates a pending payment and returns the redirect URL
// @Summary Create a VNPay payment
// @Tags payment
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body paymentService.CreateVNPayRequest true "payment payload"
// @Success 200 {object} response.Response{data=paymentService.CreateVNPayResult}
// @Router /api/v1/payments/vnpay [post]
func (h *Handler) CreateVNPay(c *gin.Context) {
	var req paymentService.CreateVNPayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	result, err := h.paymentService.CreateVNPayPayment(c.Request.Context(), middleware.GetUserID(c), c.ClientIP(), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, result)
}

// VNPayReturn handles the browser redirect back from VNPay
// @Summary VNPay return URL
// @Tags payment
// @Produce json
// @Success 200 {object} response.Response{data=paymentService.CallbackResult}
// @Router /api/v1/payments/vnpay/return [get]
func (h *Handler) VNPayReturn(c *gin.Context) {
	result, err := h.paymentService.HandleCallback(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, result)
}

// VNPayIPN handles the server-to-server notification from VNPay. The gateway
// expects its own response contract, not the API envelope.
// @Summary VNPay IPN
// @Tags payment
// @Produce json
// @Router /api/v1/payments/vnpay/ipn [get]
func (h *Handler) VNPayIPN(c *gin.Context) {
	result, err := h.paymentService.HandleCallback(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		appErr := errors.GetAppError(err)
		if errors.Is(err, errors.ErrPaymentSignInvalid) {
			c.JSON(200, gin.H{"RspCode": "97", "Message": "Invalid signature"})
			return
		}
		c.JSON(200, gin.H{"RspCode": "99", "Message": appErr.Message})
		return
	}

	if result.Success {
		c.JSON(200, gin.H{"RspCode": "00", "Message": "Confirm Success"})
	} else {
		c.JSON(200, gin.H{"RspCode": "00", "Message": "Confirm Fail Recorded"})
	}
}

// ConfirmCash records a counter cash payment
// @Summary Confirm cash payment
// @Tags payment
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body paymentService.ConfirmCashRequest true "cash payload"
// @Success 200 {object} response.Response{data=paymentService.PaymentInfo}
// @Router /api/v1/payments/cash [post]
func (h *Handler) ConfirmCash(c *gin.Context) {
	var req paymentService.ConfirmCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	payment, err := h.paymentService.ConfirmCashPayment(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, payment)
}

// GetBySwap returns the live payment for a swap
// @Summary Get payment by swap
// @Tags payment
// @Produce json
// @Security Bearer
// @Param swap_id path string true "swap id"
// @Success 200 {object} response.Response{data=paymentService.PaymentInfo}
// @Router /api/v1/payments/swap/{swap_id} [get]
func (h *Handler) GetBySwap(c *gin.Context) {
	payment, err := h.paymentService.GetBySwap(c.Request.Context(), c.Param("swap_id"))
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, payment)
}

// List returns payments with filters
// @Summary List payments
// @Tags payment
// @Produce json
// @Security Bearer
// @Param page query int false "page" default(1)
// @Param page_size query int false "page size" default(20)
// @Param status query int false "payment status"
// @Param channel query string false "payment channel"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/payments [get]
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filters := map[string]interface{}{}
	if statusStr := c.Query("status"); statusStr != "" {
		if status, err := strconv.Atoi(statusStr); err == nil {
			filters["status"] = int8(status)
		}
	}
	if channel := c.Query("channel"); channel != "" {
		filters["channel"] = channel
	}

	payments, total, err := h.paymentService.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.SuccessPage(c, payments, total, page, pageSize)
}

// RegisterRoutes registers payment routes. The VNPay callbacks are
// unauthenticated, the gateway signs its requests instead.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, jwtManager *jwt.Manager) {
	payments := r.Group("/payments")
	{
		payments.GET("/vnpay/return", h.VNPayReturn)
		payments.GET("/vnpay/ipn", h.VNPayIPN)

		payments.POST("/vnpay", middleware.DriverAuth(jwtManager), h.CreateVNPay)
		payments.POST("/cash", middleware.StaffAuth(jwtManager), h.ConfirmCash)
		payments.GET("/swap/:swap_id", middleware.AnyAuth(jwtManager), h.GetBySwap)
		payments.GET("", middleware.AdminAuth(jwtManager), h.List)
	}
}
