package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tdnguyen-dev/evswap-station/internal/models"
)

// PaymentRepository persists payment records.
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a payment repository.
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// GetByID loads a payment by id.
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByPaymentNo loads a payment by payment number.
func (r *PaymentRepository) GetByPaymentNo(ctx context.Context, paymentNo string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("payment_no = ?", paymentNo).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByTxnRef loads a payment by the VNPay transaction reference.
func (r *PaymentRepository) GetByTxnRef(ctx context.Context, txnRef string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("vnp_txn_ref = ?", txnRef).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetBySwapID loads the effective payment for a swap, ignoring failed and
// refunded attempts.
func (r *PaymentRepository) GetBySwapID(ctx context.Context, swapID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("swap_id = ? AND status NOT IN ?", swapID, []int8{models.PaymentStatusFailed, models.PaymentStatusRefunded}).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByTxnRefForUpdate loads a payment by txn ref with a row lock. SQLite
// locks the whole database per transaction and rejects FOR UPDATE syntax.
func (r *PaymentRepository) GetByTxnRefForUpdate(ctx context.Context, tx *gorm.DB, txnRef string) (*models.Payment, error) {
	query := tx.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var payment models.Payment
	err := query.
		Where("vnp_txn_ref = ?", txnRef).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Update saves all payment fields.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

// UpdateWithTx saves all payment fields inside a transaction.
func (r *PaymentRepository) UpdateWithTx(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	return tx.WithContext(ctx).Save(payment).Error
}

// MarkExpired expires pending payments older than cutoff.
func (r *PaymentRepository) MarkExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("status = ? AND created_at < ?", models.PaymentStatusPending, cutoff).
		Update("status", models.PaymentStatusExpired)
	return result.RowsAffected, result.Error
}

// List returns payments matching the filters with pagination.
func (r *PaymentRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Payment, int64, error) {
	var payments []*models.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Payment{})

	if userID, ok := filters["user_id"].(int64); ok && userID > 0 {
		query = query.Where("user_id = ?", userID)
	}
	if stationID, ok := filters["station_id"].(string); ok && stationID != "" {
		query = query.Where("station_id = ?", stationID)
	}
	if swapID, ok := filters["swap_id"].(string); ok && swapID != "" {
		query = query.Where("swap_id = ?", swapID)
	}
	if channel, ok := filters["channel"].(string); ok && channel != "" {
		query = query.Where("channel = ?", channel)
	}
	if status, ok := filters["status"].(int8); ok {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}
