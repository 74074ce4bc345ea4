// Package vehicle manages driver vehicles and registration scanning.
package vehicle

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/logger"
	"github.com/tdnguyen-dev/evswap-station/internal/common/utils"
	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
	"github.com/tdnguyen-dev/evswap-station/pkg/oss"
)

// VehicleService manages vehicles against the core platform with photo
// storage in OSS.
type VehicleService struct {
	core          *coreapi.Client
	uploader      oss.Uploader
	minConfidence float64
	maxPhotoBytes int64
}

// NewVehicleService creates a vehicle service.
func NewVehicleService(core *coreapi.Client, uploader oss.Uploader, minConfidence float64, maxPhotoMB int) *VehicleService {
	if maxPhotoMB <= 0 {
		maxPhotoMB = 10
	}
	return &VehicleService{
		core:          core,
		uploader:      uploader,
		minConfidence: minConfidence,
		maxPhotoBytes: int64(maxPhotoMB) << 20,
	}
}

// List returns the caller's vehicles.
func (s *VehicleService) List(ctx context.Context, coreUserID string) ([]coreapi.Vehicle, error) {
	query := url.Values{}
	if coreUserID != "" {
		query.Set("userId", coreUserID)
	}

	var vehicles []coreapi.Vehicle
	if err := s.core.Get(ctx, "/api/v1/vehicles", query, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// Get loads one vehicle.
func (s *VehicleService) Get(ctx context.Context, vehicleID string) (*coreapi.Vehicle, error) {
	var vehicle coreapi.Vehicle
	err := s.core.Get(ctx, "/api/v1/vehicles/"+url.PathEscape(vehicleID), nil, &vehicle)
	if err != nil {
		if errors.Is(err, errors.ErrCoreNotFound) {
			return nil, errors.ErrVehicleNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// Photo is an uploaded image.
type Photo struct {
	FileName string
	Data     []byte
}

// RegisterRequest is the vehicle registration payload.
type RegisterRequest struct {
	VIN               string
	Plate             string
	VehicleModelID    string
	Photo             *Photo
	RegistrationPhoto *Photo
}

// Register creates a vehicle. Photos are stored in object storage and the
// platform receives their URLs.
func (s *VehicleService) Register(ctx context.Context, req *RegisterRequest) (*coreapi.Vehicle, error) {
	vin := strings.ToUpper(strings.TrimSpace(req.VIN))
	if !utils.ValidateVIN(vin) {
		return nil, errors.ErrInvalidParams.WithMessage("invalid VIN")
	}
	if !utils.ValidatePlate(req.Plate) {
		return nil, errors.ErrInvalidParams.WithMessage("invalid license plate")
	}
	if req.VehicleModelID == "" {
		return nil, errors.ErrInvalidParams.WithMessage("vehicle model is required")
	}

	photoURL, err := s.storePhoto(ctx, "vehicles", req.Photo)
	if err != nil {
		return nil, err
	}
	registrationURL, err := s.storePhoto(ctx, "registrations", req.RegistrationPhoto)
	if err != nil {
		return nil, err
	}

	body := map[string]string{
		"vin":            vin,
		"plate":          req.Plate,
		"vehicleModelId": req.VehicleModelID,
	}
	if photoURL != "" {
		body["photoUrl"] = photoURL
	}
	if registrationURL != "" {
		body["registrationPhotoUrl"] = registrationURL
	}

	var vehicle coreapi.Vehicle
	if err := s.core.Post(ctx, "/api/v1/vehicles", body, &vehicle); err != nil {
		if errors.Is(err, errors.ErrSwapConflict) {
			return nil, errors.ErrVinExists
		}
		return nil, err
	}

	logger.Info("vehicle registered",
		logger.String("vehicle_id", vehicle.ID),
		logger.String("vin", vin),
	)
	return &vehicle, nil
}

// UpdateRequest is the vehicle update payload. The VIN is not updatable.
type UpdateRequest struct {
	VIN            string `json:"vin"`
	Plate          string `json:"plate"`
	VehicleModelID string `json:"vehicle_model_id"`
}

// Update modifies vehicle fields. Any attempt to change the VIN after
// registration is rejected.
func (s *VehicleService) Update(ctx context.Context, vehicleID string, req *UpdateRequest) (*coreapi.Vehicle, error) {
	current, err := s.Get(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	if req.VIN != "" && !strings.EqualFold(req.VIN, current.VIN) {
		return nil, errors.ErrVinImmutable
	}

	body := map[string]string{}
	if req.Plate != "" {
		if !utils.ValidatePlate(req.Plate) {
			return nil, errors.ErrInvalidParams.WithMessage("invalid license plate")
		}
		body["plate"] = req.Plate
	}
	if req.VehicleModelID != "" {
		body["vehicleModelId"] = req.VehicleModelID
	}
	if len(body) == 0 {
		return current, nil
	}

	var vehicle coreapi.Vehicle
	if err := s.core.Patch(ctx, "/api/v1/vehicles/"+url.PathEscape(vehicleID), body, &vehicle); err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// ScanRegistration sends a registration card image to the platform OCR and
// returns the prefill data. Low confidence results are rejected so the
// driver enters details by hand instead of trusting bad OCR.
func (s *VehicleService) ScanRegistration(ctx context.Context, photo *Photo) (*coreapi.ScanResult, error) {
	if photo == nil || len(photo.Data) == 0 {
		return nil, errors.ErrInvalidParams.WithMessage("image is required")
	}
	if int64(len(photo.Data)) > s.maxPhotoBytes {
		return nil, errors.ErrInvalidParams.WithMessage("image too large")
	}
	if err := oss.ValidateImageFile(photo.FileName, bytes.NewReader(photo.Data)); err != nil {
		return nil, errors.ErrInvalidParams.WithMessage(err.Error())
	}

	var result coreapi.ScanResult
	err := s.core.DoMultipart(ctx, "/api/v1/vehicles/scan-registration", nil,
		[]coreapi.FilePart{{FieldName: "image", FileName: photo.FileName, Data: photo.Data}},
		&result,
	)
	if err != nil {
		return nil, errors.ErrScanFailed.WithError(err)
	}

	if result.ErrorMessage != "" {
		return nil, errors.ErrScanFailed.WithMessage(result.ErrorMessage)
	}
	if result.Confidence < s.minConfidence {
		logger.Info("registration scan below confidence threshold",
			logger.Float64("confidence", result.Confidence),
			logger.Float64("threshold", s.minConfidence),
		)
		return nil, errors.ErrScanLowConfidence
	}

	result.VIN = strings.ToUpper(strings.TrimSpace(result.VIN))
	return &result, nil
}

func (s *VehicleService) storePhoto(ctx context.Context, prefix string, photo *Photo) (string, error) {
	if photo == nil || len(photo.Data) == 0 {
		return "", nil
	}
	if int64(len(photo.Data)) > s.maxPhotoBytes {
		return "", errors.ErrInvalidParams.WithMessage("image too large")
	}
	if err := oss.ValidateImageFile(photo.FileName, bytes.NewReader(photo.Data)); err != nil {
		return "", errors.ErrInvalidParams.WithMessage(err.Error())
	}

	key := oss.GenerateObjectKey(prefix, photo.FileName)
	photoURL, err := s.uploader.Upload(ctx, key, bytes.NewReader(photo.Data))
	if err != nil {
		return "", errors.ErrPhotoUploadFailed.WithError(err)
	}
	return photoURL, nil
}
