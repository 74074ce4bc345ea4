package models

import (
	"time"
)

// OperationLog is an audit trail entry for staff and admin actions.
type OperationLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Role      string    `gorm:"type:varchar(20);not null" json:"role"`
	StationID *string   `gorm:"type:varchar(40);index" json:"station_id,omitempty"`
	Action    string    `gorm:"type:varchar(50);index;not null" json:"action"`
	Target    string    `gorm:"type:varchar(100);not null;default:''" json:"target"`
	Detail    string    `gorm:"type:text" json:"detail,omitempty"`
	IP        string    `gorm:"type:varchar(45)" json:"ip,omitempty"`
	RequestID string    `gorm:"type:varchar(40)" json:"request_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName returns the table name.
func (OperationLog) TableName() string {
	return "operation_logs"
}

// Operation log actions.
const (
	ActionSwapStart      = "swap.start"
	ActionSwapFinalize   = "swap.finalize"
	ActionSwapComplete   = "swap.complete"
	ActionStockAdd       = "stock.add"
	ActionStockRemove    = "stock.remove"
	ActionBatteryUpdate  = "battery.update"
	ActionVehicleCreate  = "vehicle.create"
	ActionPaymentConfirm = "payment.confirm"
)
