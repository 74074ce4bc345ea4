// Package reservation provides the slot reservation workflow.
package reservation

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/logger"
	"github.com/tdnguyen-dev/evswap-station/internal/common/qrcode"
	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
)

// StatusMapping translates status names to the numeric codes the core
// platform expects on list queries.
var StatusMapping = map[string]int{
	"Pending":   coreapi.ReservationStatusPending,
	"CheckedIn": coreapi.ReservationStatusCheckedIn,
	"Completed": coreapi.ReservationStatusCompleted,
	"Cancelled": coreapi.ReservationStatusCancelled,
	"Expired":   coreapi.ReservationStatusExpired,
}

// StatusNames is the reverse of StatusMapping.
var StatusNames = map[int]string{
	coreapi.ReservationStatusPending:   "Pending",
	coreapi.ReservationStatusCheckedIn: "CheckedIn",
	coreapi.ReservationStatusCompleted: "Completed",
	coreapi.ReservationStatusCancelled: "Cancelled",
	coreapi.ReservationStatusExpired:   "Expired",
}

var validCancelReasons = map[string]bool{
	coreapi.CancelReasonUserCancelled: true,
	coreapi.CancelReasonNoShow:        true,
	coreapi.CancelReasonSystemError:   true,
	coreapi.CancelReasonOther:         true,
}

// ReservationService drives reservations against the core platform.
type ReservationService struct {
	core                 *coreapi.Client
	qrGenerator          *qrcode.Generator
	checkInWindowMinutes int
}

// NewReservationService creates a reservation service.
func NewReservationService(core *coreapi.Client, qrGenerator *qrcode.Generator, checkInWindowMinutes int) *ReservationService {
	return &ReservationService{
		core:                 core,
		qrGenerator:          qrGenerator,
		checkInWindowMinutes: checkInWindowMinutes,
	}
}

// ReservationInfo is the reservation view returned to clients.
type ReservationInfo struct {
	ID                string     `json:"id"`
	ReservationID     string     `json:"reservation_id"`
	StationID         string     `json:"station_id"`
	BatteryModelID    string     `json:"battery_model_id"`
	BatteryUnitID     string     `json:"battery_unit_id,omitempty"`
	SlotDate          string     `json:"slot_date"`
	SlotStartTime     string     `json:"slot_start_time"`
	SlotEndTime       string     `json:"slot_end_time"`
	Status            string     `json:"status"`
	QRCode            string     `json:"qr_code,omitempty"`
	CheckedInAt       *time.Time `json:"checked_in_at,omitempty"`
	VerifiedByStaffID string     `json:"verified_by_staff_id,omitempty"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
	CancelNote        string     `json:"cancel_note,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ListRequest filters the reservation queue.
type ListRequest struct {
	StationID string `form:"station_id" binding:"required"`
	Date      string `form:"date"`
	Status    string `form:"status"`
	UserID    string `form:"user_id"`
}

// List returns reservations for a station queue. Callers must be
// authenticated; there is no silent empty result for missing identity.
func (s *ReservationService) List(ctx context.Context, req *ListRequest) ([]*ReservationInfo, error) {
	query := url.Values{}
	query.Set("stationId", req.StationID)
	if req.Date != "" {
		query.Set("date", req.Date)
	}
	if req.Status != "" {
		code, ok := StatusMapping[req.Status]
		if !ok {
			return nil, errors.ErrInvalidParams.WithMessage(fmt.Sprintf("unknown reservation status %q", req.Status))
		}
		query.Set("status", fmt.Sprintf("%d", code))
	}
	if req.UserID != "" {
		query.Set("userId", req.UserID)
	}

	var reservations []coreapi.Reservation
	if err := s.core.Get(ctx, "/api/v1/slot-reservations", query, &reservations); err != nil {
		return nil, err
	}

	infos := make([]*ReservationInfo, 0, len(reservations))
	for i := range reservations {
		infos = append(infos, s.toInfo(&reservations[i]))
	}
	return infos, nil
}

// Get loads one reservation.
func (s *ReservationService) Get(ctx context.Context, reservationID string) (*ReservationInfo, error) {
	var reservation coreapi.Reservation
	err := s.core.Get(ctx, "/api/v1/slot-reservations/"+url.PathEscape(reservationID), nil, &reservation)
	if err != nil {
		if errors.Is(err, errors.ErrCoreNotFound) {
			return nil, errors.ErrReservationNotFound
		}
		return nil, err
	}
	return s.toInfo(&reservation), nil
}

// CheckInResult is the staff check-in response.
type CheckInResult struct {
	Reservation   *ReservationInfo `json:"reservation"`
	BatteryUnitID string           `json:"battery_unit_id,omitempty"`
}

// CheckIn posts the scanned QR payload. The platform validates the payload,
// moves the reservation to CheckedIn and assigns a battery. A reservation
// already taken by another terminal surfaces as a conflict, not a crash.
func (s *ReservationService) CheckIn(ctx context.Context, reservationID, qrPayload, staffID string) (*CheckInResult, error) {
	current, err := s.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case "CheckedIn":
		return nil, errors.ErrAlreadyCheckedIn
	case "Completed", "Cancelled", "Expired":
		return nil, errors.ErrReservationStatusError
	}
	if err := s.checkWindow(current); err != nil {
		return nil, err
	}

	body := map[string]string{
		"qrPayload": qrPayload,
		"staffId":   staffID,
	}
	var updated coreapi.Reservation
	err = s.core.Post(ctx, "/api/v1/slot-reservations/"+url.PathEscape(reservationID)+"/check-in", body, &updated)
	if err != nil {
		if errors.Is(err, errors.ErrSwapConflict) {
			return nil, errors.ErrAlreadyCheckedIn
		}
		return nil, err
	}

	logger.Info("reservation checked in",
		logger.ReservationID(reservationID),
		logger.StationID(updated.StationID),
		logger.String("staff_id", staffID),
	)

	result := &CheckInResult{Reservation: s.toInfo(&updated)}
	if updated.BatteryUnitID != nil {
		result.BatteryUnitID = *updated.BatteryUnitID
	}
	return result, nil
}

// CancelRequest is the cancel payload.
type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
	Note   string `json:"note"`
}

// Cancel cancels a pending reservation with one of the enumerated reasons.
func (s *ReservationService) Cancel(ctx context.Context, reservationID string, req *CancelRequest) error {
	if !validCancelReasons[req.Reason] {
		return errors.ErrInvalidCancelReason
	}

	current, err := s.Get(ctx, reservationID)
	if err != nil {
		return err
	}
	if current.Status != "Pending" {
		return errors.ErrCancelNotAllowed
	}

	body := map[string]string{
		"reason": req.Reason,
		"note":   req.Note,
	}
	if err := s.core.Delete(ctx, "/api/v1/slot-reservations/"+url.PathEscape(reservationID), body); err != nil {
		return err
	}

	logger.Info("reservation cancelled",
		logger.ReservationID(reservationID),
		logger.String("reason", req.Reason),
	)
	return nil
}

// RenderQR renders the reservation QR payload as a base64 PNG for display at
// the driver terminal.
func (s *ReservationService) RenderQR(ctx context.Context, reservationID string) (string, error) {
	reservation, err := s.Get(ctx, reservationID)
	if err != nil {
		return "", err
	}
	if reservation.QRCode == "" {
		return "", errors.ErrReservationStatusError.WithMessage("reservation has no QR payload")
	}
	return s.qrGenerator.GenerateBase64(reservation.QRCode)
}

// checkWindow rejects check-in attempts outside the slot window plus the
// configured grace period on either side.
func (s *ReservationService) checkWindow(reservation *ReservationInfo) error {
	if s.checkInWindowMinutes <= 0 {
		return nil
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", reservation.SlotDate+" "+reservation.SlotStartTime, time.Local)
	if err != nil {
		// slot times come from the platform; an unparseable value should not
		// block staff, only skip the local window check
		logger.Warn("unparseable slot time",
			logger.ReservationID(reservation.ReservationID),
			logger.String("slot_date", reservation.SlotDate),
			logger.String("slot_start", reservation.SlotStartTime),
		)
		return nil
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", reservation.SlotDate+" "+reservation.SlotEndTime, time.Local)
	if err != nil {
		end = start
	}

	grace := time.Duration(s.checkInWindowMinutes) * time.Minute
	now := time.Now()
	if now.Before(start.Add(-grace)) || now.After(end.Add(grace)) {
		return errors.ErrCheckInWindowClosed
	}
	return nil
}

func (s *ReservationService) toInfo(r *coreapi.Reservation) *ReservationInfo {
	status, ok := StatusNames[r.Status]
	if !ok {
		status = fmt.Sprintf("Unknown(%d)", r.Status)
	}

	info := &ReservationInfo{
		ID:             r.ID,
		ReservationID:  r.ReservationID,
		StationID:      r.StationID,
		BatteryModelID: r.BatteryModelID,
		SlotDate:       r.SlotDate,
		SlotStartTime:  r.SlotStartTime,
		SlotEndTime:    r.SlotEndTime,
		Status:         status,
		QRCode:         r.QRCode,
		CheckedInAt:    r.CheckedInAt,
		CancelledAt:    r.CancelledAt,
		CreatedAt:      r.CreatedAt,
	}
	if r.BatteryUnitID != nil {
		info.BatteryUnitID = *r.BatteryUnitID
	}
	if r.VerifiedByStaffID != nil {
		info.VerifiedByStaffID = *r.VerifiedByStaffID
	}
	if r.CancelReason != nil {
		info.CancelReason = *r.CancelReason
	}
	if r.CancelNote != nil {
		info.CancelNote = *r.CancelNote
	}
	return info
}
