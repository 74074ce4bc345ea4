package coreapi

import "time"

// Reservation status codes used by the platform.
const (
	ReservationStatusPending   = 0
	ReservationStatusCheckedIn = 1
	ReservationStatusCompleted = 2
	ReservationStatusCancelled = 3
	ReservationStatusExpired   = 4
)

// Reservation cancel reasons.
const (
	CancelReasonUserCancelled = "UserCancelled"
	CancelReasonNoShow        = "NoShow"
	CancelReasonSystemError   = "SystemError"
	CancelReasonOther         = "Other"
)

// Reservation is a battery slot reservation.
type Reservation struct {
	ID                string     `json:"id"`
	ReservationID     string     `json:"reservationId"`
	UserID            string     `json:"userId"`
	StationID         string     `json:"stationId"`
	BatteryModelID    string     `json:"batteryModelId"`
	BatteryUnitID     *string    `json:"batteryUnitId,omitempty"`
	SlotDate          string     `json:"slotDate"`
	SlotStartTime     string     `json:"slotStartTime"`
	SlotEndTime       string     `json:"slotEndTime"`
	QRCode            string     `json:"qrCode"`
	Status            int        `json:"status"`
	CheckedInAt       *time.Time `json:"checkedInAt,omitempty"`
	VerifiedByStaffID *string    `json:"verifiedByStaffId,omitempty"`
	CancelReason      *string    `json:"cancelReason,omitempty"`
	CancelNote        *string    `json:"cancelNote,omitempty"`
	CancelledAt       *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Battery unit status codes.
const (
	BatteryStatusEmpty       = 0
	BatteryStatusCharging    = 1
	BatteryStatusFull        = 2
	BatteryStatusMaintenance = 3
	BatteryStatusIssued      = 4
)

// BatteryUnit is a physical battery at a station.
type BatteryUnit struct {
	ID               string    `json:"id"`
	Serial           string    `json:"serial"`
	BatteryModelID   string    `json:"batteryModelId"`
	BatteryModelName string    `json:"batteryModelName"`
	StationID        string    `json:"stationId"`
	SlotNumber       int       `json:"slotNumber"`
	Status           int       `json:"status"`
	IsReserved       bool      `json:"isReserved"`
	HealthPercent    float64   `json:"healthPercent"`
	Voltage          float64   `json:"voltage"`
	Temperature      float64   `json:"temperature"`
	CycleCount       int       `json:"cycleCount"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Swap transaction status codes.
const (
	SwapStatusStarted         = 0
	SwapStatusCheckedIn       = 1
	SwapStatusBatteryIssued   = 2
	SwapStatusBatteryReturned = 3
	SwapStatusCompleted       = 4
	SwapStatusCancelled       = 5
)

// Swap payment types.
const (
	PaymentTypeSubscription = 0
	PaymentTypeCard         = 1
	PaymentTypeCash         = 2
)

// SwapTransaction is one battery swap.
type SwapTransaction struct {
	ID                    string     `json:"id"`
	TransactionNumber     string     `json:"transactionNumber"`
	UserID                string     `json:"userId"`
	ReservationID         *string    `json:"reservationId,omitempty"`
	StationID             string     `json:"stationId"`
	VehicleID             string     `json:"vehicleId"`
	IssuedBatteryID       *string    `json:"issuedBatteryId,omitempty"`
	IssuedBatterySerial   *string    `json:"issuedBatterySerial,omitempty"`
	ReturnedBatteryID     *string    `json:"returnedBatteryId,omitempty"`
	ReturnedBatterySerial *string    `json:"returnedBatterySerial,omitempty"`
	Status                int        `json:"status"`
	PaymentType           int        `json:"paymentType"`
	SwapFee               int64      `json:"swapFee"`
	KmChargeAmount        int64      `json:"kmChargeAmount"`
	TotalAmount           int64      `json:"totalAmount"`
	IsPaid                bool       `json:"isPaid"`
	StartedAt             time.Time  `json:"startedAt"`
	CheckedInAt           *time.Time `json:"checkedInAt,omitempty"`
	BatteryIssuedAt       *time.Time `json:"batteryIssuedAt,omitempty"`
	BatteryReturnedAt     *time.Time `json:"batteryReturnedAt,omitempty"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
	CancelledAt           *time.Time `json:"cancelledAt,omitempty"`
}

// BatteryDescriptor is the short battery summary in swap results.
type BatteryDescriptor struct {
	Serial    string `json:"serial"`
	ModelName string `json:"modelName"`
	Status    int    `json:"status"`
}

// SwapResult is the finalize-from-reservation response.
type SwapResult struct {
	SwapID     string            `json:"swapId"`
	OldBattery BatteryDescriptor `json:"oldBattery"`
	NewBattery BatteryDescriptor `json:"newBattery"`
}

// SwapHistoryPage is a page of swap transactions.
type SwapHistoryPage struct {
	Items    []SwapTransaction `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// SubscriptionPlan is a platform subscription plan as returned upstream.
// Pricing fields may be absent and have to be synthesized from the loosely
// typed benefit text, see the plan service.
type SubscriptionPlan struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Benefits         string  `json:"benefits"`
	MaxSwapsPerMonth int     `json:"maxSwapsPerMonth"`
	Price            *int64  `json:"price,omitempty"`
	Currency         *string `json:"currency,omitempty"`
	BillingPeriod    *string `json:"billingPeriod,omitempty"`
	DepositAmount    *int64  `json:"depositAmount,omitempty"`
}

// Vehicle is a driver vehicle registered on the platform.
type Vehicle struct {
	ID                   string    `json:"id"`
	VIN                  string    `json:"vin"`
	Plate                string    `json:"plate"`
	VehicleModelID       string    `json:"vehicleModelId"`
	VehicleModelName     string    `json:"vehicleModelName"`
	BatteryModelID       string    `json:"batteryModelId"`
	PhotoURL             string    `json:"photoUrl"`
	RegistrationPhotoURL string    `json:"registrationPhotoUrl"`
	CreatedAt            time.Time `json:"createdAt"`
}

// ScanResult is the OCR result for a vehicle registration card.
type ScanResult struct {
	VIN          string  `json:"vin"`
	Plate        string  `json:"plate"`
	Brand        string  `json:"brand"`
	VehicleModel string  `json:"vehicleModel"`
	Confidence   float64 `json:"confidence"`
	RawData      string  `json:"rawData"`
	ErrorMessage string  `json:"errorMessage"`
}

// StockSummary is the platform's own per-station unit count, served
// separately from the unit list.
type StockSummary struct {
	StationID string `json:"stationId"`
	Total     int    `json:"total"`
}

// StockResult is the response of bulk inventory mutations.
type StockResult struct {
	QuantityAdded   int `json:"quantityAdded,omitempty"`
	QuantityRemoved int `json:"quantityRemoved,omitempty"`
	QuantityChanged int `json:"quantityChanged,omitempty"`
	Total           int `json:"total,omitempty"`
}
