package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ThresholdType categorizes the cashier action a rule governs
type ThresholdType string

const (
	ThresholdDiscountPercent ThresholdType = "discount_percent"
	ThresholdDiscountAmount  ThresholdType = "discount_amount"
	ThresholdMarginBelow     ThresholdType = "margin_below"
	ThresholdPriceBelowCost  ThresholdType = "price_below_cost"
	ThresholdVoidTransaction ThresholdType = "void_transaction"
	ThresholdVoidItem        ThresholdType = "void_item"
	ThresholdRefundAmount    ThresholdType = "refund_amount"
	ThresholdRefundNoReceipt ThresholdType = "refund_no_receipt"
	ThresholdDrawerAdjust    ThresholdType = "drawer_adjustment"
)

var validThresholdTypes = map[ThresholdType]bool{
	ThresholdDiscountPercent: true,
	ThresholdDiscountAmount:  true,
	ThresholdMarginBelow:     true,
	ThresholdPriceBelowCost:  true,
	ThresholdVoidTransaction: true,
	ThresholdVoidItem:        true,
	ThresholdRefundAmount:    true,
	ThresholdRefundNoReceipt: true,
	ThresholdDrawerAdjust:    true,
}

// IsValid returns true for a known threshold type
func (t ThresholdType) IsValid() bool {
	return validThresholdTypes[t]
}

// IsMagnitude reports whether rules of this type compare a numeric value
// against a configured threshold. Boolean actions (voids, no-receipt refunds,
// drawer adjustments) match on scope alone.
func (t ThresholdType) IsMagnitude() bool {
	switch t {
	case ThresholdDiscountPercent, ThresholdDiscountAmount, ThresholdMarginBelow, ThresholdRefundAmount:
		return true
	}
	return false
}

// String returns the string representation of the threshold type
func (t ThresholdType) String() string {
	return string(t)
}

// TimeOfDayWindow restricts a rule to part of the trading day, expressed in
// minutes since local midnight. A window with Start > End wraps past midnight.
type TimeOfDayWindow struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// Contains reports whether the local time-of-day of t falls inside the window.
// Both boundaries are inclusive.
func (w TimeOfDayWindow) Contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	if w.StartMinute <= w.EndMinute {
		return minute >= w.StartMinute && minute <= w.EndMinute
	}
	// Overnight window, e.g. 22:00-02:00
	return minute >= w.StartMinute || minute <= w.EndMinute
}

// ApprovalLevel is one rung of a rule's authorization ladder: a role and the
// largest value that role may sign off.
type ApprovalLevel struct {
	Role Role  `json:"role"`
	Cap  Limit `json:"cap"`
}

// Rule is a scoped, schedulable authorization policy. A nil CategoryID makes
// the rule global; nil windows make it permanent and all-day.
type Rule struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Type           ThresholdType    `json:"threshold_type"`
	ThresholdValue *decimal.Decimal `json:"threshold_value,omitempty"`
	CategoryID     *string          `json:"category_id,omitempty"`
	ValidFrom      *time.Time       `json:"valid_from,omitempty"`
	ValidUntil     *time.Time       `json:"valid_until,omitempty"`
	TimeOfDay      *TimeOfDayWindow `json:"time_of_day,omitempty"`
	ActiveDays     []time.Weekday   `json:"active_days,omitempty"`
	Channel        *string          `json:"channel,omitempty"`
	Priority       int              `json:"priority"`
	IsActive       bool             `json:"is_active"`
	Levels         []ApprovalLevel  `json:"levels"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsCategoryScoped returns true when the rule is bound to a single category
func (r *Rule) IsCategoryScoped() bool {
	return r.CategoryID != nil && *r.CategoryID != ""
}

// InValidityWindow reports whether ts falls inside the rule's validity dates.
// Unset boundaries are open-ended.
func (r *Rule) InValidityWindow(ts time.Time) bool {
	if r.ValidFrom != nil && ts.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && ts.After(*r.ValidUntil) {
		return false
	}
	return true
}

// ActiveOn reports whether the rule applies on the given weekday.
// An empty ActiveDays list means every day.
func (r *Rule) ActiveOn(day time.Weekday) bool {
	if len(r.ActiveDays) == 0 {
		return true
	}
	for _, d := range r.ActiveDays {
		if d == day {
			return true
		}
	}
	return false
}

// MatchesChannel reports whether the rule applies on the given sales channel.
// A rule without a channel scope applies everywhere.
func (r *Rule) MatchesChannel(channel string) bool {
	if r.Channel == nil || *r.Channel == "" {
		return true
	}
	return *r.Channel == channel
}

// OverrideAttempt is a cashier action that may need manager authorization
type OverrideAttempt struct {
	Type       ThresholdType   `json:"type"`
	Value      decimal.Decimal `json:"value"`
	CategoryID *string         `json:"category_id,omitempty"`
	Channel    string          `json:"channel"`
	Timestamp  time.Time       `json:"timestamp"`
}
