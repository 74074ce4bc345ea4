package plan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
)

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func TestNormalizePricingExplicitFields(t *testing.T) {
	p := &coreapi.SubscriptionPlan{
		ID:            "plan-1",
		Price:         int64Ptr(1200000),
		Currency:      strPtr("VND"),
		BillingPeriod: strPtr("Monthly"),
		// benefits text carries a different number, explicit fields win
		Benefits: "Giá 45.000đ mỗi lượt",
	}

	pricing, err := NormalizePricing(p)
	require.NoError(t, err)
	assert.Equal(t, int64(1200000), pricing.Price)
	assert.Equal(t, "VND", pricing.Currency)
	assert.Equal(t, BillingMonthly, pricing.BillingPeriod)
}

func TestNormalizePricingExplicitPriceInfersPeriodFromQuota(t *testing.T) {
	p := &coreapi.SubscriptionPlan{Price: int64Ptr(900000), MaxSwapsPerMonth: 30}

	pricing, err := NormalizePricing(p)
	require.NoError(t, err)
	assert.Equal(t, BillingMonthly, pricing.BillingPeriod)
}

func TestNormalizePricingFromBenefitsText(t *testing.T) {
	tests := []struct {
		benefits string
		quota    int
		price    int64
		period   string
	}{
		{"Thanh toán 45.000đ/lượt đổi pin", 0, 45000, BillingPerSwap},
		{"Gói 1.200.000 VND mỗi tháng; 30 lượt", 30, 1200000, BillingMonthly},
		{"50000đ per swap", 0, 50000, BillingPerSwap},
		{"1,200,000₫ hàng tháng", 20, 1200000, BillingMonthly},
	}
	for _, tt := range tests {
		p := &coreapi.SubscriptionPlan{Benefits: tt.benefits, MaxSwapsPerMonth: tt.quota}
		pricing, err := NormalizePricing(p)
		require.NoError(t, err, "benefits=%q", tt.benefits)
		assert.Equal(t, tt.price, pricing.Price, "benefits=%q", tt.benefits)
		assert.Equal(t, tt.period, pricing.BillingPeriod, "benefits=%q", tt.benefits)
		assert.Equal(t, "VND", pricing.Currency)
	}
}

func TestNormalizePricingNoSource(t *testing.T) {
	tests := []string{
		"Ưu tiên xếp hàng; hỗ trợ 24/7", // no amount at all
		"Mã khuyến mãi 123",             // short number without currency marker
		"",
	}
	for _, benefits := range tests {
		_, err := NormalizePricing(&coreapi.SubscriptionPlan{Benefits: benefits})
		assert.True(t, errors.Is(err, errors.ErrPlanPricingError), "benefits=%q", benefits)
	}
}

func TestNormalizeBillingPeriod(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"per_swap", BillingPerSwap},
		{"Per-Swap", BillingPerSwap},
		{"monthly", BillingMonthly},
		{" MONTH ", BillingMonthly},
		{"quarterly", BillingCustom},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeBillingPeriod(tt.raw), "raw=%q", tt.raw)
	}
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, CategoryUnlimited, Categorize(&coreapi.SubscriptionPlan{MaxSwapsPerMonth: -1}))
	assert.Equal(t, CategoryPayPerUse, Categorize(&coreapi.SubscriptionPlan{MaxSwapsPerMonth: 0}))
	assert.Equal(t, CategorySubscription, Categorize(&coreapi.SubscriptionPlan{MaxSwapsPerMonth: 30}))
}

func TestSplitBenefits(t *testing.T) {
	got := splitBenefits("Ưu tiên xếp hàng\n Hỗ trợ 24/7 ;Miễn phí đặt chỗ;\n")
	assert.Equal(t, []string{"Ưu tiên xếp hàng", "Hỗ trợ 24/7", "Miễn phí đặt chỗ"}, got)

	assert.Empty(t, splitBenefits(""))
}

func newTestService(t *testing.T, mux *http.ServeMux, popularPlanID string) *PlanService {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	core := coreapi.New(&coreapi.Config{BaseURL: server.URL, Timeout: 5 * time.Second}, zap.NewNop())
	return NewPlanService(core, popularPlanID)
}

func TestListNormalizesAndFlagsPopular(t *testing.T) {
	plans := []coreapi.SubscriptionPlan{
		{ID: "plan-basic", Name: "Basic", Benefits: "45.000đ/lượt"},
		{ID: "plan-pro", Name: "Pro", Price: int64Ptr(1200000), MaxSwapsPerMonth: 30},
		{ID: "plan-odd", Name: "Odd", Benefits: "no price here"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/subscription-plans", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(plans)
	})

	svc := newTestService(t, mux, "plan-pro")
	infos, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 3)

	assert.Equal(t, CategoryPayPerUse, infos[0].Category)
	require.NotNil(t, infos[0].Pricing)
	assert.Equal(t, int64(45000), infos[0].Pricing.Price)
	assert.False(t, infos[0].IsPopular)

	assert.Equal(t, CategorySubscription, infos[1].Category)
	assert.True(t, infos[1].IsPopular)

	// a plan with no derivable price is still listed, just without pricing
	assert.Nil(t, infos[2].Pricing)
}

func TestGetNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/subscription-plans/plan-404", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	svc := newTestService(t, mux, "")
	_, err := svc.Get(context.Background(), "plan-404")
	assert.True(t, errors.Is(err, errors.ErrPlanNotFound))
}

func TestSubscribe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/subscription-plans/plan-pro", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(coreapi.SubscriptionPlan{ID: "plan-pro", Price: int64Ptr(1200000)})
	})
	var gotBody map[string]string
	mux.HandleFunc("/api/v1/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SubscribeResult{SubscriptionID: "sub-1", PlanID: "plan-pro", Status: "Active"})
	})

	svc := newTestService(t, mux, "")
	result, err := svc.Subscribe(context.Background(), &SubscribeRequest{PlanID: "plan-pro"})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", result.SubscriptionID)
	assert.Equal(t, "plan-pro", gotBody["planId"])
}

func TestSubscribeUnknownPlan(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/subscription-plans/plan-404", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	svc := newTestService(t, mux, "")
	_, err := svc.Subscribe(context.Background(), &SubscribeRequest{PlanID: "plan-404"})
	assert.True(t, errors.Is(err, errors.ErrPlanNotFound))
}

func TestSubscribeValidationMapsToSubscribeFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/subscription-plans/plan-pro", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(coreapi.SubscriptionPlan{ID: "plan-pro", Price: int64Ptr(1200000)})
	})
	mux.HandleFunc("/api/v1/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"already subscribed"}`))
	})

	svc := newTestService(t, mux, "")
	_, err := svc.Subscribe(context.Background(), &SubscribeRequest{PlanID: "plan-pro"})
	assert.True(t, errors.Is(err, errors.ErrSubscribeFailed))
}
