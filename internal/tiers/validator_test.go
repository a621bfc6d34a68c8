package tiers

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/retailcore/pos-approval/internal/domain/entity"
)

func tier(ordinal int, name string, min, max float64, role entity.Role) entity.Tier {
	return entity.Tier{
		Ordinal:            ordinal,
		Name:               name,
		MinDiscountPercent: decimal.NewFromFloat(min),
		MaxDiscountPercent: decimal.NewFromFloat(max),
		RequiredRole:       role,
		TimeoutSeconds:     120,
	}
}

func validSet() []entity.Tier {
	return []entity.Tier{
		tier(1, "staff", 0, 10, entity.RoleSalesperson),
		tier(2, "manager", 10.01, 25, entity.RoleManager),
		tier(3, "senior", 25.01, 50, entity.RoleSeniorManager),
		tier(4, "admin", 50.01, 100, entity.RoleAdmin),
	}
}

func findingsBySeverity(findings []Finding, severity Severity) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Severity == severity {
			out = append(out, f)
		}
	}
	return out
}

func TestValidate_AcceptsContiguousSet(t *testing.T) {
	findings := Validate(validSet())
	if HasErrors(findings) {
		t.Fatalf("Validate() reported errors for a valid set: %v", findings)
	}
}

func TestValidate_GapWithinTolerance(t *testing.T) {
	// 0.01 between consecutive tiers sits inside the 0.02 tolerance
	set := []entity.Tier{
		tier(1, "staff", 0, 10, entity.RoleSalesperson),
		tier(2, "manager", 10.01, 25, entity.RoleManager),
	}
	if findings := Validate(set); HasErrors(findings) {
		t.Errorf("gap of 0.01 rejected: %v", findings)
	}
}

func TestValidate_GapBeyondTolerance(t *testing.T) {
	set := []entity.Tier{
		tier(1, "staff", 0, 10, entity.RoleSalesperson),
		tier(2, "manager", 10.05, 25, entity.RoleManager),
	}
	findings := Validate(set)
	if !HasErrors(findings) {
		t.Fatal("gap of 0.05 accepted, want error")
	}
	if !strings.Contains(findings[0].Message, "gap") {
		t.Errorf("finding message = %q, want gap mention", findings[0].Message)
	}
}

func TestValidate_OverlapBeyondTolerance(t *testing.T) {
	set := []entity.Tier{
		tier(1, "staff", 0, 10, entity.RoleSalesperson),
		tier(2, "manager", 9.5, 25, entity.RoleManager),
	}
	findings := Validate(set)
	if !HasErrors(findings) {
		t.Fatal("overlap of 0.5 accepted, want error")
	}
	if !strings.Contains(findings[0].Message, "overlap") {
		t.Errorf("finding message = %q, want overlap mention", findings[0].Message)
	}
}

func TestValidate_RoleMonotonicity(t *testing.T) {
	set := []entity.Tier{
		tier(1, "staff", 0, 10, entity.RoleManager),
		tier(2, "upper", 10.01, 25, entity.RoleSalesperson),
	}
	findings := Validate(set)
	if !HasErrors(findings) {
		t.Fatal("descending role ranks accepted, want error")
	}
}

func TestValidate_EqualRolesAllowed(t *testing.T) {
	set := []entity.Tier{
		tier(1, "staff", 0, 10, entity.RoleManager),
		tier(2, "upper", 10.01, 25, entity.RoleManager),
	}
	if findings := Validate(set); HasErrors(findings) {
		t.Errorf("equal roles on consecutive tiers rejected: %v", findings)
	}
}

func TestValidate_PerTierErrors(t *testing.T) {
	tests := []struct {
		name string
		tier entity.Tier
		want string
	}{
		{"empty name", tier(1, "", 0, 10, entity.RoleManager), "no name"},
		{"inverted bounds", tier(1, "bad", 20, 10, entity.RoleManager), "must be below"},
		{"unknown role", tier(1, "bad", 0, 10, entity.Role("intern")), "unknown required role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := Validate([]entity.Tier{tt.tier})
			if !HasErrors(findings) {
				t.Fatal("invalid tier accepted, want error")
			}
			errs := findingsBySeverity(findings, SeverityError)
			if !strings.Contains(errs[0].Message, tt.want) {
				t.Errorf("finding message = %q, want substring %q", errs[0].Message, tt.want)
			}
		})
	}
}

func TestValidate_ShortTimeoutWarns(t *testing.T) {
	short := tier(1, "staff", 0, 10, entity.RoleSalesperson)
	short.TimeoutSeconds = 15

	findings := Validate([]entity.Tier{short})
	if HasErrors(findings) {
		t.Fatalf("warning escalated to error: %v", findings)
	}
	if len(findingsBySeverity(findings, SeverityWarning)) == 0 {
		t.Error("timeout of 15s produced no warning")
	}
}

func TestValidate_DisabledTimeoutNotFlagged(t *testing.T) {
	none := tier(1, "staff", 0, 10, entity.RoleSalesperson)
	none.TimeoutSeconds = 0

	if findings := Validate([]entity.Tier{none}); len(findings) != 0 {
		t.Errorf("timeout of 0 flagged: %v", findings)
	}
}

func TestValidate_BelowCostOnNonTerminalTierWarns(t *testing.T) {
	set := validSet()
	set[1].AllowsBelowCost = true

	findings := Validate(set)
	if HasErrors(findings) {
		t.Fatalf("warning escalated to error: %v", findings)
	}
	if len(findingsBySeverity(findings, SeverityWarning)) == 0 {
		t.Error("below-cost on non-terminal tier produced no warning")
	}
}

func TestValidate_SortsByOrdinal(t *testing.T) {
	set := validSet()
	// Shuffle: contiguity must be checked in ordinal order, not input order
	set[0], set[3] = set[3], set[0]

	if findings := Validate(set); HasErrors(findings) {
		t.Errorf("out-of-order input rejected: %v", findings)
	}
}
