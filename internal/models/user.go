// Package models defines the database models.
package models

import (
	"time"
)

// User is a gateway account. Drivers, station staff and admins all live here,
// keyed to the upstream core platform by CoreUserID.
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Phone        string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone"`
	Email        *string    `gorm:"type:varchar(100);uniqueIndex" json:"email,omitempty"`
	PasswordHash string     `gorm:"type:varchar(100);not null" json:"-"`
	FullName     string     `gorm:"type:varchar(100);not null;default:''" json:"full_name"`
	Avatar       *string    `gorm:"type:varchar(255)" json:"avatar,omitempty"`
	Role         string     `gorm:"type:varchar(20);not null;default:'driver';index" json:"role"`
	StationID    *string    `gorm:"type:varchar(40);index" json:"station_id,omitempty"`
	CoreUserID   *string    `gorm:"type:varchar(64);uniqueIndex" json:"core_user_id,omitempty"`
	PlanID       *string    `gorm:"type:varchar(64)" json:"plan_id,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	Status       int8       `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name.
func (User) TableName() string {
	return "users"
}

// User status values.
const (
	UserStatusDisabled = 0
	UserStatusActive   = 1
)
