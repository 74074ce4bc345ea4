// Package vehicle provides driver vehicle HTTP handlers.
package vehicle

import (
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/common/response"
	"github.com/tdnguyen-dev/evswap-station/internal/middleware"
	vehicleService "github.com/tdnguyen-dev/evswap-station/internal/service/vehicle"
)

// Handler serves vehicle endpoints.
type Handler struct {
	vehicleService *vehicleService.VehicleService
}

// NewHandler creates a vehicle handler.
func NewHandler(vehicleSvc *vehicleService.VehicleService) *Handler {
	return &Handler{vehicleService: vehicleSvc}
}

// List returns the caller's vehicles
// @Summary List vehicles
// @Tags vehicle
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=[]coreapi.Vehicle}
// @Router /api/v1/vehicles [get]
func (h *Handler) List(c *gin.Context) {
	vehicles, err := h.vehicleService.List(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, vehicles)
}

// Get returns one vehicle
// @Summary Get vehicle
// @Tags vehicle
// @Produce json
// @Security Bearer
// @Param id path string true "vehicle id"
// @Success 200 {object} response.Response{data=coreapi.Vehicle}
// @Router /api/v1/vehicles/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	vehicle, err := h.vehicleService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, vehicle)
}

// Register creates a vehicle from a multipart form
// @Summary Register vehicle
// @Tags vehicle
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param vin formData string true "vehicle VIN"
// @Param plate formData string true "license plate"
// @Param vehicle_model_id formData string true "vehicle model id"
// @Param photo formData file false "vehicle photo"
// @Param registration_photo formData file false "registration card photo"
// @Success 200 {object} response.Response{data=coreapi.Vehicle}
// @Router /api/v1/vehicles [post]
func (h *Handler) Register(c *gin.Context) {
	req := &vehicleService.RegisterRequest{
		VIN:            c.PostForm("vin"),
		Plate:          c.PostForm("plate"),
		VehicleModelID: c.PostForm("vehicle_model_id"),
	}

	photo, err := readFormFile(c, "photo")
	if err != nil {
		response.BadRequest(c, "cannot read photo")
		return
	}
	req.Photo = photo

	registrationPhoto, err := readFormFile(c, "registration_photo")
	if err != nil {
		response.BadRequest(c, "cannot read registration photo")
		return
	}
	req.RegistrationPhoto = registrationPhoto

	vehicle, err := h.vehicleService.Register(c.Request.Context(), req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, vehicle)
}

// Update modifies vehicle fields
// @Summary Update vehicle
// @Tags vehicle
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "vehicle id"
// @Param request body vehicleService.UpdateRequest true "vehicle fields"
// @Success 200 {object} response.Response{data=coreapi.Vehicle}
// @Router /api/v1/vehicles/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req vehicleService.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	vehicle, err := h.vehicleService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, vehicle)
}

// ScanRegistration extracts prefill data from a registration card image
// @Summary Scan registration card
// @Tags vehicle
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param image formData file true "registration card image"
// @Success 200 {object} response.Response{data=coreapi.ScanResult}
// @Router /api/v1/vehicles/scan-registration [post]
func (h *Handler) ScanRegistration(c *gin.Context) {
	photo, err := readFormFile(c, "image")
	if err != nil || photo == nil {
		response.BadRequest(c, "image is required")
		return
	}

	result, err := h.vehicleService.ScanRegistration(c.Request.Context(), photo)
	if err != nil {
		appErr := errors.GetAppError(err)
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	response.Success(c, result)
}

// readFormFile loads an optional multipart file into memory. A missing file
// returns nil with no error.
func readFormFile(c *gin.Context, field string) (*vehicleService.Photo, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		if err == multipart.ErrMessageTooLarge {
			return nil, err
		}
		return nil, nil
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &vehicleService.Photo{FileName: fileHeader.Filename, Data: data}, nil
}

// RegisterRoutes registers vehicle routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, jwtManager *jwt.Manager) {
	vehicles := r.Group("/vehicles", middleware.AnyAuth(jwtManager))
	{
		vehicles.GET("", h.List)
		vehicles.POST("", h.Register)
		vehicles.POST("/scan-registration", h.ScanRegistration)
		vehicles.GET("/:id", h.Get)
		vehicles.PUT("/:id", h.Update)
	}
}
