// Package plan lists subscription plans and normalizes their pricing.
package plan

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/logger"
	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
)

// Billing periods for normalized pricing.
const (
	BillingPerSwap = "per_swap"
	BillingMonthly = "monthly"
	BillingCustom  = "custom"
)

// Plan categories.
const (
	CategoryPayPerUse    = "pay_per_use"
	CategorySubscription = "subscription"
	CategoryUnlimited    = "unlimited"
)

// Pricing is the normalized price record derived from plan fields. The
// platform has no dedicated pricing endpoint, so this is synthesized here as
// a single named step instead of scattered through the presentation layer.
type Pricing struct {
	Price         int64  `json:"price"`
	Currency      string `json:"currency"`
	BillingPeriod string `json:"billing_period"`
}

// PlanInfo is a subscription plan with derived presentation fields.
type PlanInfo struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Benefits         []string `json:"benefits"`
	MaxSwapsPerMonth int      `json:"max_swaps_per_month"`
	DepositAmount    int64    `json:"deposit_amount"`
	Pricing          *Pricing `json:"pricing"`
	Category         string   `json:"category"`
	IsPopular        bool     `json:"is_popular"`
}

// benefitsPriceRe matches an amount like "45.000đ/lượt" or "1200000 VND"
// inside free-form benefits text.
var benefitsPriceRe = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})+|\d{4,})\s*(?:đ|₫|vnd|VND)`)

// NormalizePricing derives a Pricing record from plan fields.
//
// Precedence, highest first:
//  1. explicit price and billingPeriod fields when the platform sends them
//  2. an amount parsed from the benefits text, billed per swap when the plan
//     has no monthly quota and monthly otherwise
//
// Plans with neither yield an error rather than a fabricated zero price.
func NormalizePricing(p *coreapi.SubscriptionPlan) (*Pricing, error) {
	currency := "VND"
	if p.Currency != nil && *p.Currency != "" {
		currency = *p.Currency
	}

	if p.Price != nil {
		period := BillingCustom
		if p.BillingPeriod != nil && *p.BillingPeriod != "" {
			period = normalizeBillingPeriod(*p.BillingPeriod)
		} else if p.MaxSwapsPerMonth > 0 {
			period = BillingMonthly
		}
		return &Pricing{Price: *p.Price, Currency: currency, BillingPeriod: period}, nil
	}

	if amount, ok := parseBenefitsAmount(p.Benefits); ok {
		period := BillingPerSwap
		if p.MaxSwapsPerMonth > 0 {
			period = BillingMonthly
		}
		return &Pricing{Price: amount, Currency: currency, BillingPeriod: period}, nil
	}

	return nil, errors.ErrPlanPricingError
}

func normalizeBillingPeriod(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "per_swap", "perswap", "per-swap", "swap":
		return BillingPerSwap
	case "monthly", "month", "per_month":
		return BillingMonthly
	default:
		return BillingCustom
	}
}

// parseBenefitsAmount extracts the first monetary amount from benefits text.
func parseBenefitsAmount(benefits string) (int64, bool) {
	match := benefitsPriceRe.FindStringSubmatch(benefits)
	if match == nil {
		return 0, false
	}
	digits := strings.NewReplacer(".", "", ",", "").Replace(match[1])
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

// Categorize buckets a plan by its quota rather than its display name.
func Categorize(p *coreapi.SubscriptionPlan) string {
	switch {
	case p.MaxSwapsPerMonth < 0:
		return CategoryUnlimited
	case p.MaxSwapsPerMonth == 0:
		return CategoryPayPerUse
	default:
		return CategorySubscription
	}
}

// PlanService lists plans and creates subscriptions on the core platform.
type PlanService struct {
	core          *coreapi.Client
	popularPlanID string
}

// NewPlanService creates a plan service. popularPlanID marks one plan as
// highlighted in clients; empty disables the flag.
func NewPlanService(core *coreapi.Client, popularPlanID string) *PlanService {
	return &PlanService{core: core, popularPlanID: popularPlanID}
}

// List returns all plans with normalized pricing. Plans whose pricing cannot
// be determined are returned without a Pricing record so clients can still
// show them, with the gap logged for followup.
func (s *PlanService) List(ctx context.Context) ([]*PlanInfo, error) {
	var plans []coreapi.SubscriptionPlan
	if err := s.core.Get(ctx, "/api/v1/subscription-plans", nil, &plans); err != nil {
		return nil, err
	}

	infos := make([]*PlanInfo, 0, len(plans))
	for i := range plans {
		infos = append(infos, s.toInfo(&plans[i]))
	}
	return infos, nil
}

// Get returns one plan with normalized pricing.
func (s *PlanService) Get(ctx context.Context, planID string) (*PlanInfo, error) {
	var p coreapi.SubscriptionPlan
	err := s.core.Get(ctx, "/api/v1/subscription-plans/"+url.PathEscape(planID), nil, &p)
	if err != nil {
		if errors.Is(err, errors.ErrCoreNotFound) {
			return nil, errors.ErrPlanNotFound
		}
		return nil, err
	}
	return s.toInfo(&p), nil
}

// SubscribeRequest is the subscribe payload.
type SubscribeRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// SubscribeResult is the created subscription.
type SubscribeResult struct {
	SubscriptionID string `json:"subscription_id"`
	PlanID         string `json:"plan_id"`
	Status         string `json:"status"`
}

// Subscribe enrolls the caller in a plan.
func (s *PlanService) Subscribe(ctx context.Context, req *SubscribeRequest) (*SubscribeResult, error) {
	if _, err := s.Get(ctx, req.PlanID); err != nil {
		return nil, err
	}

	body := map[string]string{"planId": req.PlanID}
	var result SubscribeResult
	if err := s.core.Post(ctx, "/api/v1/subscriptions", body, &result); err != nil {
		if errors.Is(err, errors.ErrCoreValidation) {
			return nil, errors.ErrSubscribeFailed.WithError(err)
		}
		return nil, err
	}

	logger.Info("subscription created",
		logger.String("plan_id", req.PlanID),
		logger.String("subscription_id", result.SubscriptionID),
	)
	return &result, nil
}

func (s *PlanService) toInfo(p *coreapi.SubscriptionPlan) *PlanInfo {
	info := &PlanInfo{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		Benefits:         splitBenefits(p.Benefits),
		MaxSwapsPerMonth: p.MaxSwapsPerMonth,
		Category:         Categorize(p),
		IsPopular:        s.popularPlanID != "" && p.ID == s.popularPlanID,
	}
	if p.DepositAmount != nil {
		info.DepositAmount = *p.DepositAmount
	}

	pricing, err := NormalizePricing(p)
	if err != nil {
		logger.Warn("plan pricing could not be normalized",
			logger.String("plan_id", p.ID),
			logger.String("plan_name", p.Name),
		)
	} else {
		info.Pricing = pricing
	}
	return info
}

// splitBenefits turns the platform's newline or semicolon separated benefits
// text into a list.
func splitBenefits(benefits string) []string {
	raw := strings.FieldsFunc(benefits, func(r rune) bool {
		return r == '\n' || r == ';'
	})
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
