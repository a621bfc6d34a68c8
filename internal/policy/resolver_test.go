package policy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/domain/entity"
)

func strPtr(s string) *string { return &s }

func decPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func magnitudeRule(id int64, name string, threshold float64) entity.Rule {
	return entity.Rule{
		ID:             id,
		Name:           name,
		Type:           entity.ThresholdRefundAmount,
		ThresholdValue: decPtr(threshold),
		IsActive:       true,
		CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func refundAttempt(value float64) entity.OverrideAttempt {
	return entity.OverrideAttempt{
		Type:      entity.ThresholdRefundAmount,
		Value:     decimal.NewFromFloat(value),
		Channel:   "pos",
		Timestamp: time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC), // a Wednesday
	}
}

func TestResolve_NoMatchReturnsNil(t *testing.T) {
	r := NewResolver(zap.NewNop())

	if got := r.Resolve(refundAttempt(50), nil); got != nil {
		t.Errorf("Resolve() = %v with no rules, want nil", got)
	}

	rules := []entity.Rule{magnitudeRule(1, "high refunds", 100)}
	if got := r.Resolve(refundAttempt(50), rules); got != nil {
		t.Errorf("Resolve() = %v below threshold, want nil", got)
	}
}

func TestResolve_ThresholdIsExclusive(t *testing.T) {
	r := NewResolver(zap.NewNop())
	rules := []entity.Rule{magnitudeRule(1, "refunds over 50", 50)}

	// A value equal to the threshold does not engage the rule
	if got := r.Resolve(refundAttempt(50), rules); got != nil {
		t.Errorf("Resolve() matched at threshold, want nil")
	}
	if got := r.Resolve(refundAttempt(50.01), rules); got == nil {
		t.Error("Resolve() = nil just above threshold, want match")
	}
}

func TestResolve_InactiveAndWrongTypeSkipped(t *testing.T) {
	r := NewResolver(zap.NewNop())

	inactive := magnitudeRule(1, "inactive", 10)
	inactive.IsActive = false

	wrongType := magnitudeRule(2, "discounts", 10)
	wrongType.Type = entity.ThresholdDiscountAmount

	if got := r.Resolve(refundAttempt(50), []entity.Rule{inactive, wrongType}); got != nil {
		t.Errorf("Resolve() = %v, want nil", got)
	}
}

func TestResolve_CategoryScopedBeatsGlobal(t *testing.T) {
	r := NewResolver(zap.NewNop())

	global := magnitudeRule(1, "global", 10)
	global.Priority = 100

	scoped := magnitudeRule(2, "electronics", 10)
	scoped.CategoryID = strPtr("electronics")
	scoped.Priority = 0

	attempt := refundAttempt(50)
	attempt.CategoryID = strPtr("electronics")

	got := r.Resolve(attempt, []entity.Rule{global, scoped})
	if got == nil || got.ID != 2 {
		t.Errorf("Resolve() = %v, want category-scoped rule 2 despite lower priority", got)
	}
}

func TestResolve_CategoryMismatchFallsToGlobal(t *testing.T) {
	r := NewResolver(zap.NewNop())

	global := magnitudeRule(1, "global", 10)
	scoped := magnitudeRule(2, "electronics", 10)
	scoped.CategoryID = strPtr("electronics")

	attempt := refundAttempt(50)
	attempt.CategoryID = strPtr("grocery")

	got := r.Resolve(attempt, []entity.Rule{global, scoped})
	if got == nil || got.ID != 1 {
		t.Errorf("Resolve() = %v, want global rule 1", got)
	}

	// Attempt without category never sees scoped rules
	got = r.Resolve(refundAttempt(50), []entity.Rule{global, scoped})
	if got == nil || got.ID != 1 {
		t.Errorf("Resolve() = %v, want global rule 1 for uncategorized attempt", got)
	}
}

func TestResolve_PriorityThenNewestBreaksTies(t *testing.T) {
	r := NewResolver(zap.NewNop())

	low := magnitudeRule(1, "low", 10)
	low.Priority = 1

	high := magnitudeRule(2, "high", 10)
	high.Priority = 5

	got := r.Resolve(refundAttempt(50), []entity.Rule{low, high})
	if got == nil || got.ID != 2 {
		t.Errorf("Resolve() = %v, want higher priority rule 2", got)
	}

	older := magnitudeRule(3, "older", 10)
	newer := magnitudeRule(4, "newer", 10)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	got = r.Resolve(refundAttempt(50), []entity.Rule{older, newer})
	if got == nil || got.ID != 4 {
		t.Errorf("Resolve() = %v, want newest rule 4 on equal priority", got)
	}
}

func TestResolve_ValidityWindow(t *testing.T) {
	r := NewResolver(zap.NewNop())
	attempt := refundAttempt(50)

	expired := magnitudeRule(1, "expired", 10)
	until := attempt.Timestamp.Add(-time.Hour)
	expired.ValidUntil = &until

	future := magnitudeRule(2, "future", 10)
	from := attempt.Timestamp.Add(time.Hour)
	future.ValidFrom = &from

	if got := r.Resolve(attempt, []entity.Rule{expired, future}); got != nil {
		t.Errorf("Resolve() = %v outside validity windows, want nil", got)
	}
}

func TestResolve_TimeOfDayWindow(t *testing.T) {
	r := NewResolver(zap.NewNop())

	// 22:00 to 06:00, wrapping midnight
	night := magnitudeRule(1, "night", 10)
	night.TimeOfDay = &entity.TimeOfDayWindow{StartMinute: 22 * 60, EndMinute: 6 * 60}

	afternoon := refundAttempt(50) // 14:30
	if got := r.Resolve(afternoon, []entity.Rule{night}); got != nil {
		t.Errorf("Resolve() matched night rule at 14:30, want nil")
	}

	lateNight := afternoon
	lateNight.Timestamp = time.Date(2026, 3, 4, 23, 15, 0, 0, time.UTC)
	if got := r.Resolve(lateNight, []entity.Rule{night}); got == nil {
		t.Error("Resolve() = nil at 23:15, want night rule")
	}
}

func TestResolve_ActiveDays(t *testing.T) {
	r := NewResolver(zap.NewNop())

	weekend := magnitudeRule(1, "weekend", 10)
	weekend.ActiveDays = []time.Weekday{time.Saturday, time.Sunday}

	wednesday := refundAttempt(50)
	if got := r.Resolve(wednesday, []entity.Rule{weekend}); got != nil {
		t.Errorf("Resolve() matched weekend rule on a Wednesday, want nil")
	}

	saturday := wednesday
	saturday.Timestamp = time.Date(2026, 3, 7, 14, 30, 0, 0, time.UTC)
	if got := r.Resolve(saturday, []entity.Rule{weekend}); got == nil {
		t.Error("Resolve() = nil on Saturday, want weekend rule")
	}
}

func TestResolve_ChannelScope(t *testing.T) {
	r := NewResolver(zap.NewNop())

	kiosk := magnitudeRule(1, "kiosk only", 10)
	kiosk.Channel = strPtr("kiosk")

	posAttempt := refundAttempt(50)
	if got := r.Resolve(posAttempt, []entity.Rule{kiosk}); got != nil {
		t.Errorf("Resolve() matched kiosk rule for pos channel, want nil")
	}

	kioskAttempt := posAttempt
	kioskAttempt.Channel = "kiosk"
	if got := r.Resolve(kioskAttempt, []entity.Rule{kiosk}); got == nil {
		t.Error("Resolve() = nil for kiosk channel, want kiosk rule")
	}
}

func TestResolve_BooleanTypesMatchOnScopeAlone(t *testing.T) {
	r := NewResolver(zap.NewNop())

	void := entity.Rule{
		ID:       1,
		Name:     "void approval",
		Type:     entity.ThresholdVoidTransaction,
		IsActive: true,
	}

	attempt := entity.OverrideAttempt{
		Type:      entity.ThresholdVoidTransaction,
		Channel:   "pos",
		Timestamp: time.Now(),
	}

	if got := r.Resolve(attempt, []entity.Rule{void}); got == nil {
		t.Error("Resolve() = nil for boolean action, want match without threshold")
	}
}
