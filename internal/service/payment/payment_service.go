// Package payment handles swap payments through VNPay and the counter.
package payment

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"gorm.io/gorm"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/logger"
	"github.com/tdnguyen-dev/evswap-station/internal/common/metrics"
	"github.com/tdnguyen-dev/evswap-station/internal/common/utils"
	"github.com/tdnguyen-dev/evswap-station/internal/models"
	"github.com/tdnguyen-dev/evswap-station/internal/repository"
	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
	"github.com/tdnguyen-dev/evswap-station/pkg/vnpay"
)

// PaymentService manages payment records and the VNPay flow.
type PaymentService struct {
	db          *gorm.DB
	paymentRepo *repository.PaymentRepository
	opLogRepo   *repository.OperationLogRepository
	core        *coreapi.Client
	vnpay       *vnpay.Client
}

// NewPaymentService creates a payment service.
func NewPaymentService(
	db *gorm.DB,
	paymentRepo *repository.PaymentRepository,
	opLogRepo *repository.OperationLogRepository,
	core *coreapi.Client,
	vnpayClient *vnpay.Client,
) *PaymentService {
	return &PaymentService{
		db:          db,
		paymentRepo: paymentRepo,
		opLogRepo:   opLogRepo,
		core:        core,
		vnpay:       vnpayClient,
	}
}

// PaymentInfo is the payment view returned to clients.
type PaymentInfo struct {
	ID        int64      `json:"id"`
	PaymentNo string     `json:"payment_no"`
	SwapID    string     `json:"swap_id"`
	Channel   string     `json:"channel"`
	Amount    int64      `json:"amount"`
	Status    int8       `json:"status"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateVNPayRequest is the payment creation payload.
type CreateVNPayRequest struct {
	SwapID   string `json:"swap_id" binding:"required"`
	BankCode string `json:"bank_code"`
}

// CreateVNPayResult carries the redirect URL.
type CreateVNPayResult struct {
	Payment *PaymentInfo `json:"payment"`
	PayURL  string       `json:"pay_url"`
}

// CreateVNPayPayment creates a pending payment for a swap and builds the
// VNPay redirect URL. A swap can hold only one live payment at a time.
func (s *PaymentService) CreateVNPayPayment(ctx context.Context, userID int64, clientIP string, req *CreateVNPayRequest) (*CreateVNPayResult, error) {
	tx, err := s.getSwap(ctx, req.SwapID)
	if err != nil {
		return nil, err
	}
	if tx.IsPaid {
		return nil, errors.ErrPaymentDuplicate
	}
	if tx.Status < coreapi.SwapStatusBatteryReturned || tx.Status == coreapi.SwapStatusCancelled {
		return nil, errors.ErrSwapStatusError.WithMessage("swap is not ready for payment")
	}
	if tx.TotalAmount <= 0 {
		return nil, errors.ErrPaymentAmountError
	}

	if _, err := s.paymentRepo.GetBySwapID(ctx, req.SwapID); err == nil {
		return nil, errors.ErrPaymentDuplicate
	} else if err != gorm.ErrRecordNotFound {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	txnRef := utils.GenerateOrderNo("EV")
	payment := &models.Payment{
		PaymentNo: utils.GenerateOrderNo("P"),
		SwapID:    req.SwapID,
		UserID:    userID,
		StationID: tx.StationID,
		Channel:   models.PaymentChannelVNPay,
		Amount:    tx.TotalAmount,
		Status:    models.PaymentStatusPending,
		VnpTxnRef: &txnRef,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	payURL, err := s.vnpay.BuildPaymentURL(&vnpay.PaymentRequest{
		TxnRef:    txnRef,
		Amount:    payment.Amount,
		OrderInfo: fmt.Sprintf("Battery swap %s", tx.TransactionNumber),
		IPAddress: clientIP,
		BankCode:  req.BankCode,
	})
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	logger.Info("vnpay payment created",
		logger.SwapID(req.SwapID),
		logger.UserID(userID),
		logger.String("txn_ref", txnRef),
		logger.Int64("amount", payment.Amount),
	)

	return &CreateVNPayResult{
		Payment: toInfo(payment),
		PayURL:  payURL,
	}, nil
}

// CallbackResult is what the handlers render after processing a VNPay
// return or IPN.
type CallbackResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	SwapID        string `json:"swap_id"`
	Amount        int64  `json:"amount"`
	ResponseCode  string `json:"response_code"`
}

// HandleCallback processes a VNPay return/IPN query string. The signature is
// verified first; a bad signature is rejected before any state is touched.
// Processing is idempotent, replays of a settled payment are acknowledged
// without changes. Failure results surface the same transaction id as
// successes so the driver terminal can show a coherent receipt either way.
func (s *PaymentService) HandleCallback(ctx context.Context, query url.Values) (*CallbackResult, error) {
	parsed, err := s.vnpay.VerifyCallback(query)
	if err != nil {
		return nil, errors.ErrPaymentSignInvalid.WithError(err)
	}

	result := &CallbackResult{
		Success:       parsed.Success,
		TransactionID: parsed.TxnRef,
		Amount:        parsed.Amount,
		ResponseCode:  parsed.ResponseCode,
	}

	err = s.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		payment, err := s.paymentRepo.GetByTxnRefForUpdate(ctx, dbTx, parsed.TxnRef)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.ErrPaymentNotFound
			}
			return errors.ErrDatabaseError.WithError(err)
		}
		result.SwapID = payment.SwapID

		if payment.Status != models.PaymentStatusPending {
			// replayed notification, nothing to do
			result.Success = payment.Status == models.PaymentStatusPaid
			return nil
		}

		if parsed.Success && parsed.Amount != payment.Amount {
			logger.Error("vnpay amount mismatch",
				logger.String("txn_ref", parsed.TxnRef),
				logger.Int64("expected", payment.Amount),
				logger.Int64("received", parsed.Amount),
			)
			return errors.ErrPaymentAmountError
		}

		now := time.Now()
		payment.VnpTransNo = &parsed.TransactionNo
		payment.VnpBankCode = &parsed.BankCode
		payment.VnpResponse = &parsed.ResponseCode
		if parsed.Success {
			payment.Status = models.PaymentStatusPaid
			payment.PaidAt = &now
		} else {
			payment.Status = models.PaymentStatusFailed
			reason := "vnpay response " + parsed.ResponseCode
			payment.FailureReason = &reason
		}

		return s.paymentRepo.UpdateWithTx(ctx, dbTx, payment)
	})
	if err != nil {
		return nil, err
	}

	if m := metrics.Get(); m != nil {
		status := "failed"
		if result.Success {
			status = "paid"
		}
		m.RecordPayment(models.PaymentChannelVNPay, status)
	}

	if result.Success {
		s.markSwapPaid(ctx, result.SwapID)
	}

	logger.Info("vnpay callback processed",
		logger.String("txn_ref", parsed.TxnRef),
		logger.Bool("success", result.Success),
	)
	return result, nil
}

// ConfirmCashRequest is the counter payment payload.
type ConfirmCashRequest struct {
	SwapID string `json:"swap_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}

// ConfirmCashPayment records a counter cash payment taken by staff.
func (s *PaymentService) ConfirmCashPayment(ctx context.Context, staffID int64, req *ConfirmCashRequest) (*PaymentInfo, error) {
	tx, err := s.getSwap(ctx, req.SwapID)
	if err != nil {
		return nil, err
	}
	if tx.IsPaid {
		return nil, errors.ErrPaymentDuplicate
	}
	if tx.Status < coreapi.SwapStatusBatteryReturned || tx.Status == coreapi.SwapStatusCancelled {
		return nil, errors.ErrSwapStatusError.WithMessage("swap is not ready for payment")
	}
	if req.Amount != tx.TotalAmount {
		return nil, errors.ErrPaymentAmountError
	}

	if _, err := s.paymentRepo.GetBySwapID(ctx, req.SwapID); err == nil {
		return nil, errors.ErrPaymentDuplicate
	} else if err != gorm.ErrRecordNotFound {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	now := time.Now()
	payment := &models.Payment{
		PaymentNo: utils.GenerateOrderNo("P"),
		SwapID:    req.SwapID,
		UserID:    staffID,
		StationID: tx.StationID,
		Channel:   models.PaymentChannelCash,
		Amount:    req.Amount,
		Status:    models.PaymentStatusPaid,
		PaidAt:    &now,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if m := metrics.Get(); m != nil {
		m.RecordPayment(models.PaymentChannelCash, "paid")
	}
	s.markSwapPaid(ctx, req.SwapID)

	entry := &models.OperationLog{
		UserID:    staffID,
		Role:      "staff",
		StationID: &tx.StationID,
		Action:    models.ActionPaymentConfirm,
		Target:    req.SwapID,
		Detail:    fmt.Sprintf("cash amount=%d", req.Amount),
	}
	if err := s.opLogRepo.Create(ctx, entry); err != nil {
		logger.Warn("failed to write operation log", logger.Err(err))
	}

	return toInfo(payment), nil
}

// GetBySwap returns the live payment for a swap.
func (s *PaymentService) GetBySwap(ctx context.Context, swapID string) (*PaymentInfo, error) {
	payment, err := s.paymentRepo.GetBySwapID(ctx, swapID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return toInfo(payment), nil
}

// List returns payments matching the filters.
func (s *PaymentService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]*PaymentInfo, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	payments, total, err := s.paymentRepo.List(ctx, (page-1)*pageSize, pageSize, filters)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}

	infos := make([]*PaymentInfo, 0, len(payments))
	for _, p := range payments {
		infos = append(infos, toInfo(p))
	}
	return infos, total, nil
}

// ExpirePending expires stale pending payments, run from the scheduler.
func (s *PaymentService) ExpirePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	count, err := s.paymentRepo.MarkExpired(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}
	if count > 0 {
		logger.Info("expired pending payments", logger.Int64("count", count))
	}
	return count, nil
}

// markSwapPaid reports the settled payment to the platform. The local record
// is authoritative for the completion gate, so an upstream failure is logged
// and retried on the next completion attempt rather than failing the driver.
func (s *PaymentService) markSwapPaid(ctx context.Context, swapID string) {
	err := s.core.Post(ctx, "/api/v1/swaps/"+url.PathEscape(swapID)+"/mark-paid", nil, nil)
	if err != nil {
		logger.Warn("failed to mark swap paid upstream", logger.SwapID(swapID), logger.Err(err))
	}
}

func (s *PaymentService) getSwap(ctx context.Context, swapID string) (*coreapi.SwapTransaction, error) {
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

func toInfo(p *models.Payment) *PaymentInfo {
	return &PaymentInfo{
		ID:        p.ID,
		PaymentNo: p.PaymentNo,
		SwapID:    p.SwapID,
		Channel:   p.Channel,
		Amount:    p.Amount,
		Status:    p.Status,
		PaidAt:    p.PaidAt,
		CreatedAt: p.CreatedAt,
	}
}
