package models

import (
	"time"
)

// Payment is a local payment record for a swap transaction. A swap has at
// most one payment that is not failed or refunded.
type Payment struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentNo     string     `gorm:"type:varchar(40);uniqueIndex;not null" json:"payment_no"`
	SwapID        string     `gorm:"type:varchar(64);index;not null" json:"swap_id"`
	UserID        int64      `gorm:"index;not null" json:"user_id"`
	StationID     string     `gorm:"type:varchar(40);index;not null" json:"station_id"`
	Channel       string     `gorm:"type:varchar(20);not null" json:"channel"`
	Amount        int64      `gorm:"not null" json:"amount"` // VND, no decimals
	Status        int8       `gorm:"type:smallint;not null;default:0;index" json:"status"`
	VnpTxnRef     *string    `gorm:"type:varchar(64);uniqueIndex" json:"vnp_txn_ref,omitempty"`
	VnpTransNo    *string    `gorm:"type:varchar(64)" json:"vnp_trans_no,omitempty"`
	VnpBankCode   *string    `gorm:"type:varchar(20)" json:"vnp_bank_code,omitempty"`
	VnpResponse   *string    `gorm:"type:varchar(10)" json:"vnp_response,omitempty"`
	FailureReason *string    `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name.
func (Payment) TableName() string {
	return "payments"
}

// Payment status values.
const (
	PaymentStatusPending  = 0
	PaymentStatusPaid     = 1
	PaymentStatusFailed   = 2
	PaymentStatusRefunded = 3
	PaymentStatusExpired  = 4
)

// Payment channels.
const (
	PaymentChannelVNPay        = "vnpay"
	PaymentChannelCash         = "cash"
	PaymentChannelSubscription = "subscription"
)
