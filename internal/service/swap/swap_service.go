// Package swap drives the battery swap workflow.
package swap

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"gorm.io/gorm"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/logger"
	"github.com/tdnguyen-dev/evswap-station/internal/common/metrics"
	"github.com/tdnguyen-dev/evswap-station/internal/common/utils"
	"github.com/tdnguyen-dev/evswap-station/internal/models"
	"github.com/tdnguyen-dev/evswap-station/internal/repository"
	"github.com/tdnguyen-dev/evswap-station/internal/service/inventory"
	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
	"github.com/tdnguyen-dev/evswap-station/pkg/sms"
)

// serialFieldVariants is the fixed, ordered list of field names tried for the
// old battery serial when finalizing a swap. The platform contract for this
// field is ambiguous; each variant carries the same value under a different
// key and the first accepted one wins. Keep the list ordered and bounded so
// it can shrink to a single entry once the contract stabilizes.
var serialFieldVariants = []string{
	"oldBatterySerial",
	"oldSerial",
	"serial",
	"oldBatteryCode",
	"oldBatterySn",
	"batterySerial",
}

// SwapService is the swap workflow engine.
type SwapService struct {
	core        *coreapi.Client
	inventory   *inventory.InventoryService
	paymentRepo *repository.PaymentRepository
	opLogRepo   *repository.OperationLogRepository
	smsSender   sms.Sender
	maxVariants int
	notify      bool
}

// NewSwapService creates a swap service.
func NewSwapService(
	core *coreapi.Client,
	inventorySvc *inventory.InventoryService,
	paymentRepo *repository.PaymentRepository,
	opLogRepo *repository.OperationLogRepository,
	smsSender sms.Sender,
	maxVariants int,
	notify bool,
) *SwapService {
	if maxVariants <= 0 || maxVariants > len(serialFieldVariants) {
		maxVariants = len(serialFieldVariants)
	}
	return &SwapService{
		core:        core,
		inventory:   inventorySvc,
		paymentRepo: paymentRepo,
		opLogRepo:   opLogRepo,
		smsSender:   smsSender,
		maxVariants: maxVariants,
		notify:      notify,
	}
}

// SwapInfo is the swap transaction view returned to clients.
type SwapInfo struct {
	ID                    string `json:"id"`
	TransactionNumber     string `json:"transaction_number"`
	UserID                string `json:"user_id"`
	ReservationID         string `json:"reservation_id,omitempty"`
	StationID             string `json:"station_id"`
	VehicleID             string `json:"vehicle_id"`
	IssuedBatterySerial   string `json:"issued_battery_serial,omitempty"`
	ReturnedBatterySerial string `json:"returned_battery_serial,omitempty"`
	Status                int    `json:"status"`
	StatusName            string `json:"status_name"`
	PaymentType           int    `json:"payment_type"`
	SwapFee               int64  `json:"swap_fee"`
	KmChargeAmount        int64  `json:"km_charge_amount"`
	TotalAmount           int64  `json:"total_amount"`
	IsPaid                bool   `json:"is_paid"`
	StartedAt             string `json:"started_at"`
	CompletedAt           string `json:"completed_at,omitempty"`
}

// StatusNames maps swap status codes to display names.
var StatusNames = map[int]string{
	coreapi.SwapStatusStarted:         "Started",
	coreapi.SwapStatusCheckedIn:       "CheckedIn",
	coreapi.SwapStatusBatteryIssued:   "BatteryIssued",
	coreapi.SwapStatusBatteryReturned: "BatteryReturned",
	coreapi.SwapStatusCompleted:       "Completed",
	coreapi.SwapStatusCancelled:       "Cancelled",
}

// StartSwapRequest is the start payload.
type StartSwapRequest struct {
	ReservationID string `json:"reservation_id" binding:"required"`
	StationID     string `json:"station_id" binding:"required"`
}

// StartSwap creates a transaction in CheckedIn state for a checked-in
// reservation.
func (s *SwapService) StartSwap(ctx context.Context, staffID int64, req *StartSwapRequest) (*SwapInfo, error) {
	body := map[string]string{
		"reservationId": req.ReservationID,
		"stationId":     req.StationID,
		"staffId":       strconv.FormatInt(staffID, 10),
	}

	var tx coreapi.SwapTransaction
	if err := s.core.Post(ctx, "/api/v1/swaps", body, &tx); err != nil {
		if errors.Is(err, errors.ErrCoreNotFound) {
			return nil, errors.ErrReservationNotFound
		}
		return nil, err
	}

	s.audit(ctx, staffID, req.StationID, models.ActionSwapStart, tx.ID, "reservation="+req.ReservationID)
	if m := metrics.Get(); m != nil {
		m.RecordSwap(req.StationID, "started")
	}
	return toInfo(&tx), nil
}

// FinalizeRequest is the finalize payload.
type FinalizeRequest struct {
	ReservationID    string `json:"reservation_id" binding:"required"`
	OldBatterySerial string `json:"old_battery_serial" binding:"required"`
	StationID        string `json:"station_id"`
}

// FinalizeFromReservation performs the physical swap on the platform. It
// checks battery model compatibility first, then negotiates the payload
// shape: a 400 or 422 answer means the field name was wrong and the next
// variant is tried, any other error aborts immediately. On success the
// issued unit is moved to Issued and the returned unit to Charging.
func (s *SwapService) FinalizeFromReservation(ctx context.Context, staffID int64, req *FinalizeRequest) (*coreapi.SwapResult, error) {
	if err := s.checkCompatibility(ctx, req.ReservationID); err != nil {
		return nil, err
	}

	var result coreapi.SwapResult
	var lastErr error
	for attempt, field := range serialFieldVariants {
		if attempt >= s.maxVariants {
			break
		}

		body := map[string]string{
			"reservationId": req.ReservationID,
			field:           req.OldBatterySerial,
		}
		if req.StationID != "" {
			body["stationId"] = req.StationID
		}

		err := s.core.Post(ctx, "/api/v1/swaps/finalize-from-reservation", body, &result)
		if err == nil {
			logger.Info("swap finalized",
				logger.ReservationID(req.ReservationID),
				logger.SwapID(result.SwapID),
				logger.String("accepted_field", field),
				logger.Int("attempts", attempt+1),
			)
			s.moveBatteries(ctx, result.SwapID)
			s.audit(ctx, staffID, req.StationID, models.ActionSwapFinalize, result.SwapID,
				fmt.Sprintf("old=%s new=%s field=%s", result.OldBattery.Serial, result.NewBattery.Serial, field))
			return &result, nil
		}

		if !errors.Is(err, errors.ErrCoreValidation) {
			// wrong state, missing reservation or platform failure, not a
			// payload shape problem
			return nil, err
		}

		logger.Debug("finalize payload variant rejected",
			logger.ReservationID(req.ReservationID),
			logger.String("field", field),
		)
		lastErr = err
	}

	logger.Error("all finalize payload variants rejected",
		logger.ReservationID(req.ReservationID),
		logger.Int("attempts", s.maxVariants),
	)
	return nil, errors.ErrSwapContractRejected.WithError(lastErr)
}

// checkCompatibility verifies that the reserved battery model matches the
// model the driver's vehicle takes. A mismatch is a first-class error, not a
// generic failure.
func (s *SwapService) checkCompatibility(ctx context.Context, reservationID string) error {
	var reservation coreapi.Reservation
	err := s.core.Get(ctx, "/api/v1/slot-reservations/"+url.PathEscape(reservationID), nil, &reservation)
	if err != nil {
		if errors.Is(err, errors.ErrCoreNotFound) {
			return errors.ErrReservationNotFound
		}
		return err
	}

	query := url.Values{}
	query.Set("userId", reservation.UserID)
	var vehicles []coreapi.Vehicle
	if err := s.core.Get(ctx, "/api/v1/vehicles", query, &vehicles); err != nil {
		// compatibility is a pre-check; the platform enforces it again on
		// finalize, so a failed vehicle lookup does not block the swap
		logger.Warn("vehicle lookup failed, skipping compatibility pre-check",
			logger.ReservationID(reservationID),
			logger.Err(err),
		)
		return nil
	}

	for i := range vehicles {
		if vehicles[i].BatteryModelID == reservation.BatteryModelID {
			return nil
		}
	}
	if len(vehicles) == 0 {
		return nil
	}
	return errors.ErrBatteryIncompatible
}

// moveBatteries shifts the swapped units between inventory buckets. The
// workflow engine does not own inventory counts, it delegates to the
// inventory service. Failures are logged, not fatal: the swap itself is
// already committed upstream.
func (s *SwapService) moveBatteries(ctx context.Context, swapID string) {
	tx, err := s.getTransaction(ctx, swapID)
	if err != nil {
		logger.Warn("cannot load swap for battery bucket move", logger.SwapID(swapID), logger.Err(err))
		return
	}

	if tx.IssuedBatteryID != nil {
		if err := s.inventory.ChangeUnitStatus(ctx, *tx.IssuedBatteryID, coreapi.BatteryStatusIssued); err != nil {
			logger.Warn("failed to mark issued battery", logger.SwapID(swapID), logger.Err(err))
		}
	}
	if tx.ReturnedBatteryID != nil {
		if err := s.inventory.ChangeUnitStatus(ctx, *tx.ReturnedBatteryID, coreapi.BatteryStatusCharging); err != nil {
			logger.Warn("failed to mark returned battery", logger.SwapID(swapID), logger.Err(err))
		}
	}
}

// CompleteSwap transitions a swap to Completed. The transition is gated on a
// recorded Paid payment unless the swap is covered by a subscription, and the
// amount invariant is enforced before the platform call.
func (s *SwapService) CompleteSwap(ctx context.Context, staffID int64, swapID, driverPhone string) (*SwapInfo, error) {
	tx, err := s.getTransaction(ctx, swapID)
	if err != nil {
		return nil, err
	}

	switch tx.Status {
	case coreapi.SwapStatusCompleted:
		return nil, errors.ErrSwapAlreadyCompleted
	case coreapi.SwapStatusCancelled:
		return nil, errors.ErrSwapStatusError
	case coreapi.SwapStatusBatteryReturned:
		// the only state complete is reachable from
	default:
		return nil, errors.ErrSwapStatusError.WithMessage("battery must be returned before completion")
	}

	if tx.TotalAmount != tx.SwapFee+tx.KmChargeAmount {
		return nil, errors.ErrSwapAmountMismatch
	}

	// subscription swaps settle against the plan, there is no local payment
	if !tx.IsPaid && tx.PaymentType != coreapi.PaymentTypeSubscription {
		payment, err := s.paymentRepo.GetBySwapID(ctx, swapID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, errors.ErrSwapNotPaid
			}
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		if payment.Status != models.PaymentStatusPaid {
			return nil, errors.ErrSwapNotPaid
		}
		if payment.Amount != tx.TotalAmount {
			return nil, errors.ErrPaymentAmountError
		}
	}

	var updated coreapi.SwapTransaction
	if err := s.core.Put(ctx, "/api/v1/swaps/"+url.PathEscape(swapID)+"/complete", nil, &updated); err != nil {
		if errors.Is(err, errors.ErrSwapConflict) {
			return nil, errors.ErrSwapConflict
		}
		return nil, err
	}

	s.audit(ctx, staffID, updated.StationID, models.ActionSwapComplete, swapID,
		fmt.Sprintf("total=%d paymentType=%d", updated.TotalAmount, updated.PaymentType))
	if m := metrics.Get(); m != nil {
		m.RecordSwap(updated.StationID, "completed")
	}

	if s.notify && driverPhone != "" {
		amount := utils.FormatVND(updated.TotalAmount)
		if err := s.smsSender.SendSwapComplete(ctx, driverPhone, updated.TransactionNumber, amount); err != nil {
			logger.Warn("failed to send completion sms", logger.SwapID(swapID), logger.Err(err))
		}
	}

	return toInfo(&updated), nil
}

// Current returns the caller's in-progress swap, if any.
func (s *SwapService) Current(ctx context.Context, coreUserID string) (*SwapInfo, error) {
	query := url.Values{}
	if coreUserID != "" {
		query.Set("userId", coreUserID)
	}

	var tx coreapi.SwapTransaction
	err := s.core.Get(ctx, "/api/v1/swaps/current", query, &tx)
	if err != nil {
		if errors.Is(err, errors.ErrCoreNotFound) {
			return nil, errors.ErrSwapNotFound
		}
		return nil, err
	}
	return toInfo(&tx), nil
}

// History returns a page of past swaps.
func (s *SwapService) History(ctx context.Context, coreUserID string, page, pageSize int) ([]*SwapInfo, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(pageSize))
	if coreUserID != "" {
		query.Set("userId", coreUserID)
	}

	var result coreapi.SwapHistoryPage
	if err := s.core.Get(ctx, "/api/v1/swaps/history", query, &result); err != nil {
		return nil, 0, err
	}

	infos := make([]*SwapInfo, 0, len(result.Items))
	for i := range result.Items {
		infos = append(infos, toInfo(&result.Items[i]))
	}
	return infos, result.Total, nil
}

// ListByStation returns swaps for a station in a period, used by revenue
// reporting.
func (s *SwapService) ListByStation(ctx context.Context, stationID, from, to string) ([]coreapi.SwapTransaction, error) {
	query := url.Values{}
	query.Set("stationId", stationID)
	if from != "" {
		query.Set("from", from)
	}
	if to != "" {
		query.Set("to", to)
	}

	var txs []coreapi.SwapTransaction
	if err := s.core.Get(ctx, "/api/v1/swaps", query, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *SwapService) getTransaction(ctx context.Context, swapID string) (*coreapi.SwapTransaction, error) {
	var tx coreapi.SwapTransaction
	err := s.core.Get(ctx, "/api/v1/swaps/"+url.PathEscape(swapID), nil, &tx)
	if err != nil {
		if errors.Is(err, errors.ErrCoreNotFound) {
			return nil, errors.ErrSwapNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (s *SwapService) audit(ctx context.Context, staffID int64, stationID, action, target, detail string) {
	entry := &models.OperationLog{
		UserID: staffID,
		Role:   "staff",
		Action: action,
		Target: target,
		Detail: detail,
	}
	if stationID != "" {
		entry.StationID = &stationID
	}
	if err := s.opLogRepo.Create(ctx, entry); err != nil {
		logger.Warn("failed to write operation log", logger.String("action", action), logger.Err(err))
	}
}

func toInfo(tx *coreapi.SwapTransaction) *SwapInfo {
	statusName, ok := StatusNames[tx.Status]
	if !ok {
		statusName = fmt.Sprintf("Unknown(%d)", tx.Status)
	}

	info := &SwapInfo{
		ID:                tx.ID,
		TransactionNumber: tx.TransactionNumber,
		UserID:            tx.UserID,
		StationID:         tx.StationID,
		VehicleID:         tx.VehicleID,
		Status:            tx.Status,
		StatusName:        statusName,
		PaymentType:       tx.PaymentType,
		SwapFee:           tx.SwapFee,
		KmChargeAmount:    tx.KmChargeAmount,
		TotalAmount:       tx.TotalAmount,
		IsPaid:            tx.IsPaid,
		StartedAt:         tx.StartedAt.Format("2006-01-02 15:04:05"),
	}
	if tx.ReservationID != nil {
		info.ReservationID = *tx.ReservationID
	}
	if tx.IssuedBatterySerial != nil {
		info.IssuedBatterySerial = *tx.IssuedBatterySerial
	}
	if tx.ReturnedBatterySerial != nil {
		info.ReturnedBatterySerial = *tx.ReturnedBatterySerial
	}
	if tx.CompletedAt != nil {
		info.CompletedAt = tx.CompletedAt.Format("2006-01-02 15:04:05")
	}
	return info
}
