package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t, "[5000] swap transaction not found", ErrSwapNotFound.Error())

	wrapped := ErrDatabaseError.WithError(fmt.Errorf("connection reset"))
	assert.Equal(t, "[1004] database error: connection reset", wrapped.Error())
}

func TestWithMessageDoesNotMutate(t *testing.T) {
	custom := ErrInvalidParams.WithMessage("vin is required")

	assert.Equal(t, "vin is required", custom.Message)
	assert.Equal(t, ErrInvalidParams.Code, custom.Code)
	// the shared sentinel keeps its original message
	assert.Equal(t, "invalid parameters", ErrInvalidParams.Message)
}

func TestWithErrorDoesNotMutate(t *testing.T) {
	cause := fmt.Errorf("boom")
	wrapped := ErrInternalError.WithError(cause)

	assert.Equal(t, cause, wrapped.Err)
	assert.Nil(t, ErrInternalError.Err)
}

func TestIsComparesBusinessCodes(t *testing.T) {
	assert.True(t, Is(ErrSwapNotFound, ErrSwapNotFound))
	assert.True(t, Is(ErrSwapNotFound.WithMessage("gone"), ErrSwapNotFound))
	assert.True(t, Is(ErrSwapNotFound.WithError(fmt.Errorf("x")), ErrSwapNotFound))

	assert.False(t, Is(ErrSwapNotFound, ErrPaymentNotFound))
	assert.False(t, Is(fmt.Errorf("plain"), ErrSwapNotFound))
	assert.False(t, Is(nil, ErrSwapNotFound))
	assert.False(t, Is(ErrSwapNotFound, nil))
}

func TestGetAppError(t *testing.T) {
	appErr := GetAppError(ErrPlanNotFound)
	assert.Equal(t, ErrPlanNotFound.Code, appErr.Code)

	unknown := GetAppError(fmt.Errorf("something odd"))
	assert.Equal(t, ErrUnknown.Code, unknown.Code)
	require.NotNil(t, unknown.Err)
	assert.Equal(t, "something odd", unknown.Err.Error())
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	wrapped := ErrCoreUnavailable.WithError(cause)

	assert.True(t, stderrors.Is(wrapped, cause))
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(ErrUnknown))
	assert.False(t, IsAppError(fmt.Errorf("plain")))
}

func TestCodeRangesAreDistinct(t *testing.T) {
	// spot check representative codes from each range
	assert.Equal(t, 1001, ErrInvalidParams.Code)
	assert.Equal(t, 2006, ErrPasswordError.Code)
	assert.Equal(t, 3003, ErrAlreadyCheckedIn.Code)
	assert.Equal(t, 4002, ErrStockInsufficient.Code)
	assert.Equal(t, 5005, ErrSwapContractRejected.Code)
	assert.Equal(t, 6004, ErrPaymentSignInvalid.Code)
	assert.Equal(t, 7001, ErrVinImmutable.Code)
	assert.Equal(t, 8001, ErrPlanPricingError.Code)
	assert.Equal(t, 9004, ErrCoreUnavailable.Code)
}
