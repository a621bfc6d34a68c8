package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier is one band of the self-serve discount ladder. Tiers are ordered by
// ordinal; their [min, max] discount ranges must be contiguous and each tier
// names the role allowed to authorize discounts inside its band.
type Tier struct {
	ID                 int64            `json:"id"`
	Ordinal            int              `json:"ordinal"`
	Name               string           `json:"name"`
	MinDiscountPercent decimal.Decimal  `json:"min_discount_percent"`
	MaxDiscountPercent decimal.Decimal  `json:"max_discount_percent"`
	MinMarginPercent   *decimal.Decimal `json:"min_margin_percent,omitempty"`
	AllowsBelowCost    bool             `json:"allows_below_cost"`
	RequiredRole       Role             `json:"required_role"`
	TimeoutSeconds     int              `json:"timeout_seconds"`
	RequiresReasonCode bool             `json:"requires_reason_code"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Timeout returns the approval timeout as a duration; zero disables timeouts
func (t *Tier) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Covers reports whether the discount percent falls inside this tier's band.
// Both boundaries are inclusive.
func (t *Tier) Covers(percent decimal.Decimal) bool {
	return percent.GreaterThanOrEqual(t.MinDiscountPercent) &&
		percent.LessThanOrEqual(t.MaxDiscountPercent)
}

// TierForDiscount returns the first tier in the ordered set whose band covers
// the given discount percent, or nil when no tier covers it.
func TierForDiscount(tiers []Tier, percent decimal.Decimal) *Tier {
	for i := range tiers {
		if tiers[i].Covers(percent) {
			return &tiers[i]
		}
	}
	return nil
}

// BelowCostTier returns the first tier flagged as allowing below-cost sales,
// or nil when no tier allows them.
func BelowCostTier(tiers []Tier) *Tier {
	for i := range tiers {
		if tiers[i].AllowsBelowCost {
			return &tiers[i]
		}
	}
	return nil
}
