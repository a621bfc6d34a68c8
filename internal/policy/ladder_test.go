package policy

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/retailcore/pos-approval/internal/domain/entity"
)

func refundRule() *entity.Rule {
	return &entity.Rule{
		ID:       1,
		Name:     "refund ladder",
		Type:     entity.ThresholdRefundAmount,
		IsActive: true,
		Levels: []entity.ApprovalLevel{
			{Role: entity.RoleAdmin, Cap: entity.Unlimited()},
			{Role: entity.RoleManager, Cap: entity.Bounded(decimal.NewFromInt(30))},
		},
	}
}

func TestRequiredLevel_ClimbsByAscendingRank(t *testing.T) {
	tests := []struct {
		name      string
		requested int64
		wantRole  entity.Role
	}{
		{"below manager cap", 25, entity.RoleManager},
		{"exactly at cap boundary", 30, entity.RoleManager},
		{"just above cap", 31, entity.RoleAdmin},
		{"far above cap", 500, entity.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RequiredLevel(refundRule(), decimal.NewFromInt(tt.requested))
			if err != nil {
				t.Fatalf("RequiredLevel() error = %v", err)
			}
			if result.Level.Role != tt.wantRole {
				t.Errorf("RequiredLevel() role = %v, want %v", result.Level.Role, tt.wantRole)
			}
			if result.Degraded {
				t.Error("RequiredLevel() degraded = true, want false")
			}
		})
	}
}

func TestRequiredLevel_DegradedEscalation(t *testing.T) {
	// No unlimited terminus: values beyond every cap escalate to the top
	rule := &entity.Rule{
		ID:   2,
		Type: entity.ThresholdRefundAmount,
		Levels: []entity.ApprovalLevel{
			{Role: entity.RoleShiftLead, Cap: entity.Bounded(decimal.NewFromInt(10))},
			{Role: entity.RoleManager, Cap: entity.Bounded(decimal.NewFromInt(30))},
		},
	}

	result, err := RequiredLevel(rule, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("RequiredLevel() error = %v", err)
	}
	if !result.Degraded {
		t.Error("RequiredLevel() degraded = false, want true")
	}
	if result.Level.Role != entity.RoleManager {
		t.Errorf("RequiredLevel() role = %v, want manager (highest configured)", result.Level.Role)
	}
}

func TestRequiredLevel_NoLevelsIsConfigurationError(t *testing.T) {
	_, err := RequiredLevel(&entity.Rule{ID: 3}, decimal.NewFromInt(10))
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("RequiredLevel() error = %v, want ErrConfiguration", err)
	}

	_, err = RequiredLevel(nil, decimal.NewFromInt(10))
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("RequiredLevel(nil) error = %v, want ErrConfiguration", err)
	}
}

func TestRequiredLevel_UnsortedLevels(t *testing.T) {
	// Levels arrive in arbitrary order; the ladder still climbs by rank
	rule := refundRule()
	result, err := RequiredLevel(rule, decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("RequiredLevel() error = %v", err)
	}
	if result.Level.Role != entity.RoleManager {
		t.Errorf("RequiredLevel() role = %v, want manager (lowest sufficient)", result.Level.Role)
	}
}
