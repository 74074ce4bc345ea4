// Package revenue computes station revenue reports.
package revenue

import (
	"context"
	"time"

	"github.com/tdnguyen-dev/evswap-station/internal/service/swap"
	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
)

// Stats is the revenue summary for a period.
type Stats struct {
	PeriodStart      time.Time `json:"period_start"`
	TransactionCount int       `json:"transaction_count"`
	TotalRevenue     int64     `json:"total_revenue"`
	PaidRevenue      int64     `json:"paid_revenue"`
	PendingRevenue   int64     `json:"pending_revenue"`
	UnpaidRevenue    int64     `json:"unpaid_revenue"`
	OnlineRevenue    int64     `json:"online_revenue"`
	CounterRevenue   int64     `json:"counter_revenue"`
	CancelledCount   int       `json:"cancelled_count"`
}

// ComputeStats aggregates transactions started at or after periodStart.
//
// Buckets are deterministic:
//   - paid: isPaid is true
//   - pending: not paid and the swap is still in progress
//   - unpaid: not paid and the swap reached a terminal state
//
// The online/counter split partitions by payment type, subscription and card
// count as online, cash as counter.
func ComputeStats(transactions []coreapi.SwapTransaction, periodStart time.Time) *Stats {
	stats := &Stats{PeriodStart: periodStart}

	for i := range transactions {
		tx := &transactions[i]
		if tx.StartedAt.Before(periodStart) {
			continue
		}

		stats.TransactionCount++
		stats.TotalRevenue += tx.TotalAmount

		if tx.Status == coreapi.SwapStatusCancelled {
			stats.CancelledCount++
		}

		switch {
		case tx.IsPaid:
			stats.PaidRevenue += tx.TotalAmount
		case tx.Status < coreapi.SwapStatusCompleted:
			stats.PendingRevenue += tx.TotalAmount
		default:
			stats.UnpaidRevenue += tx.TotalAmount
		}

		switch tx.PaymentType {
		case coreapi.PaymentTypeCash:
			stats.CounterRevenue += tx.TotalAmount
		default:
			stats.OnlineRevenue += tx.TotalAmount
		}
	}
	return stats
}

// RevenueService produces station revenue reports.
type RevenueService struct {
	swapService *swap.SwapService
}

// NewRevenueService creates a revenue service.
func NewRevenueService(swapService *swap.SwapService) *RevenueService {
	return &RevenueService{swapService: swapService}
}

// Report periods.
const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// StationReport computes revenue stats for a station and period.
func (s *RevenueService) StationReport(ctx context.Context, stationID, period string) (*Stats, error) {
	periodStart := periodStartFor(period, time.Now())

	transactions, err := s.swapService.ListByStation(ctx, stationID,
		periodStart.Format(time.RFC3339), "")
	if err != nil {
		return nil, err
	}

	return ComputeStats(transactions, periodStart), nil
}

// periodStartFor resolves a period name to its start instant. Unknown names
// fall back to today.
func periodStartFor(period string, now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch period {
	case PeriodWeek:
		// week starts Monday
		offset := (int(midnight.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset)
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		return midnight
	}
}
