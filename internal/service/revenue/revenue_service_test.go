package revenue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
)

func tx(amount int64, status int, isPaid bool, paymentType int, startedAt time.Time) coreapi.SwapTransaction {
	return coreapi.SwapTransaction{
		ID:          "swap-1",
		TotalAmount: amount,
		Status:      status,
		IsPaid:      isPaid,
		PaymentType: paymentType,
		StartedAt:   startedAt,
	}
}

func TestComputeStatsBuckets(t *testing.T) {
	periodStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local)
	inPeriod := periodStart.Add(6 * time.Hour)

	transactions := []coreapi.SwapTransaction{
		// paid online
		tx(50000, coreapi.SwapStatusCompleted, true, coreapi.PaymentTypeSubscription, inPeriod),
		// in progress and unpaid, counts as pending
		tx(30000, coreapi.SwapStatusBatteryReturned, false, coreapi.PaymentTypeCash, inPeriod),
		// terminal and unpaid
		tx(20000, coreapi.SwapStatusCompleted, false, coreapi.PaymentTypeCash, inPeriod),
		// cancelled, unpaid, still part of the totals
		tx(10000, coreapi.SwapStatusCancelled, false, coreapi.PaymentTypeCard, inPeriod),
	}

	stats := ComputeStats(transactions, periodStart)

	assert.Equal(t, 4, stats.TransactionCount)
	assert.Equal(t, int64(110000), stats.TotalRevenue)
	assert.Equal(t, int64(50000), stats.PaidRevenue)
	assert.Equal(t, int64(30000), stats.PendingRevenue)
	assert.Equal(t, int64(30000), stats.UnpaidRevenue)
	assert.Equal(t, int64(60000), stats.OnlineRevenue)
	assert.Equal(t, int64(50000), stats.CounterRevenue)
	assert.Equal(t, 1, stats.CancelledCount)
}

func TestComputeStatsSkipsEarlierTransactions(t *testing.T) {
	periodStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local)

	transactions := []coreapi.SwapTransaction{
		tx(50000, coreapi.SwapStatusCompleted, true, coreapi.PaymentTypeCash, periodStart.Add(-time.Minute)),
		tx(40000, coreapi.SwapStatusCompleted, true, coreapi.PaymentTypeCash, periodStart),
	}

	stats := ComputeStats(transactions, periodStart)

	assert.Equal(t, 1, stats.TransactionCount)
	assert.Equal(t, int64(40000), stats.TotalRevenue)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil, time.Now())
	assert.Equal(t, 0, stats.TransactionCount)
	assert.Equal(t, int64(0), stats.TotalRevenue)
}

func TestPeriodStartFor(t *testing.T) {
	// Wednesday 2026-08-26 15:30
	now := time.Date(2026, 8, 26, 15, 30, 0, 0, time.Local)

	tests := []struct {
		period string
		want   time.Time
	}{
		{PeriodToday, time.Date(2026, 8, 26, 0, 0, 0, 0, time.Local)},
		{PeriodWeek, time.Date(2026, 8, 24, 0, 0, 0, 0, time.Local)}, // Monday
		{PeriodMonth, time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local)},
		{"bogus", time.Date(2026, 8, 26, 0, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, periodStartFor(tt.period, now), "period=%s", tt.period)
	}
}

func TestPeriodStartForWeekOnMonday(t *testing.T) {
	monday := time.Date(2026, 8, 24, 9, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.Local), periodStartFor(PeriodWeek, monday))
}
