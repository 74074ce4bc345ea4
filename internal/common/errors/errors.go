// Package errors defines business error codes and error handling.
package errors

import (
	"fmt"
)

// AppError is the application error carried between service and handler layers.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new application error.
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an underlying error.
func Wrap(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithMessage returns a copy with a different message.
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// WithError returns a copy carrying the original error.
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Generic error codes (1000-1999)
var (
	ErrUnknown          = New(1000, "unknown error")
	ErrInvalidParams    = New(1001, "invalid parameters")
	ErrNotFound         = New(1002, "resource not found")
	ErrAlreadyExists    = New(1003, "resource already exists")
	ErrDatabaseError    = New(1004, "database error")
	ErrCacheError       = New(1005, "cache error")
	ErrInternalError    = New(1006, "internal error")
	ErrUpstreamError    = New(1007, "core platform error")
	ErrRateLimitExceed  = New(1008, "too many requests")
	ErrOperationFailed  = New(1009, "operation failed")
	ErrDataInconsistent = New(1010, "data inconsistency detected")
)

// Auth error codes (2000-2999)
var (
	ErrUnauthorized     = New(2000, "not logged in")
	ErrTokenExpired     = New(2001, "session expired, please log in again")
	ErrTokenInvalid     = New(2002, "invalid token")
	ErrTokenRefreshFail = New(2003, "failed to refresh token")
	ErrPermissionDenied = New(2004, "permission denied")
	ErrAccountDisabled  = New(2005, "account disabled")
	ErrPasswordError    = New(2006, "wrong password")
	ErrUserNotFound     = New(2007, "user not found")
	ErrUserExists       = New(2008, "user already exists")
)

// Reservation error codes (3000-3999)
var (
	ErrReservationNotFound    = New(3000, "reservation not found")
	ErrReservationStatusError = New(3001, "reservation is not in a valid state for this action")
	ErrReservationExpired     = New(3002, "reservation expired")
	ErrAlreadyCheckedIn       = New(3003, "reservation already checked in")
	ErrCancelNotAllowed       = New(3004, "only pending reservations can be cancelled")
	ErrInvalidCancelReason    = New(3005, "invalid cancel reason")
	ErrCheckInWindowClosed    = New(3006, "check-in outside the allowed time window")
)

// Battery inventory error codes (4000-4999)
var (
	ErrBatteryNotFound      = New(4000, "battery unit not found")
	ErrBatteryStatusInvalid = New(4001, "invalid battery status")
	ErrStockInsufficient    = New(4002, "not enough units in the requested status")
	ErrStationNotFound      = New(4003, "station not found")
	ErrModelNotFound        = New(4004, "battery model not found")
	ErrStockQuantityInvalid = New(4005, "quantity must be positive")
)

// Swap workflow error codes (5000-5999)
var (
	ErrSwapNotFound         = New(5000, "swap transaction not found")
	ErrSwapStatusError      = New(5001, "swap is not in a valid state for this action")
	ErrSwapAlreadyCompleted = New(5002, "swap already completed")
	ErrSwapNotPaid          = New(5003, "swap has not been paid")
	ErrBatteryIncompatible  = New(5004, "battery model is not compatible with the vehicle")
	ErrSwapContractRejected = New(5005, "core platform rejected every payload variant")
	ErrSwapConflict         = New(5006, "swap was modified by another staff terminal")
	ErrSwapAmountMismatch   = New(5007, "total amount does not equal swap fee plus km charge")
)

// Payment error codes (6000-6999)
var (
	ErrPaymentNotFound      = New(6000, "payment not found")
	ErrPaymentFailed        = New(6001, "payment failed")
	ErrPaymentExpired       = New(6002, "payment expired")
	ErrPaymentAmountError   = New(6003, "payment amount mismatch")
	ErrPaymentSignInvalid   = New(6004, "invalid payment gateway signature")
	ErrPaymentCallbackError = New(6005, "payment callback error")
	ErrPaymentMethodError   = New(6006, "unsupported payment method")
	ErrPaymentDuplicate     = New(6007, "swap already has a pending or paid payment")
)

// Vehicle error codes (7000-7999)
var (
	ErrVehicleNotFound   = New(7000, "vehicle not found")
	ErrVinImmutable      = New(7001, "VIN cannot be changed after registration")
	ErrVinExists         = New(7002, "VIN already registered")
	ErrScanFailed        = New(7003, "registration document scan failed")
	ErrScanLowConfidence = New(7004, "scan confidence too low, please enter details manually")
	ErrPhotoUploadFailed = New(7005, "photo upload failed")
)

// Subscription plan error codes (8000-8999)
var (
	ErrPlanNotFound      = New(8000, "subscription plan not found")
	ErrPlanPricingError  = New(8001, "plan pricing could not be determined")
	ErrSubscribeFailed   = New(8002, "failed to create subscription")
	ErrSwapQuotaExceeded = New(8003, "monthly swap quota exceeded")
)

// Core platform client error codes (9000-9999). These mirror the HTTP error
// taxonomy of the upstream API so services can branch on the error class.
var (
	ErrCoreAuthExpired = New(9000, "core platform session expired")
	ErrCoreForbidden   = New(9001, "access to this core platform resource is denied")
	ErrCoreValidation  = New(9002, "core platform rejected the request payload")
	ErrCoreNotFound    = New(9003, "resource no longer exists on the core platform")
	ErrCoreUnavailable = New(9004, "core platform unavailable, please retry later")
)

// IsAppError reports whether err is an application error.
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError converts err to an application error, wrapping unknown errors.
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrUnknown.WithError(err)
}

// Is reports whether err carries the same business code as target.
func Is(err error, target *AppError) bool {
	appErr, ok := err.(*AppError)
	return ok && target != nil && appErr.Code == target.Code
}
