// Package tiers validates candidate tier configurations before they may
// replace the active set. Validation is pure: it reports findings and never
// mutates the candidate.
package tiers

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/retailcore/pos-approval/internal/domain/entity"
)

// Severity classifies a validation finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one validator observation about a candidate tier
type Finding struct {
	Severity Severity `json:"severity"`
	TierID   int64    `json:"tier_id"`
	Message  string   `json:"message"`
}

// contiguityTolerance is the largest gap or overlap allowed between the max
// of one tier and the min of the next.
var contiguityTolerance = decimal.NewFromFloat(0.02)

// maxAdvisoryTimeout flags approval countdowns too short to be practical
const maxAdvisoryTimeout = 60

// Validate checks a candidate tier set for structural correctness. Findings
// with error severity reject the whole set; warnings are advisory only.
func Validate(candidate []entity.Tier) []Finding {
	var findings []Finding

	tiers := make([]entity.Tier, len(candidate))
	copy(tiers, candidate)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Ordinal < tiers[j].Ordinal })

	for i := range tiers {
		t := &tiers[i]

		if t.Name == "" {
			findings = append(findings, Finding{
				Severity: SeverityError,
				TierID:   t.ID,
				Message:  fmt.Sprintf("tier at ordinal %d has no name", t.Ordinal),
			})
		}
		if !t.MinDiscountPercent.LessThan(t.MaxDiscountPercent) {
			findings = append(findings, Finding{
				Severity: SeverityError,
				TierID:   t.ID,
				Message: fmt.Sprintf("tier %q: min discount %s must be below max %s",
					t.Name, t.MinDiscountPercent, t.MaxDiscountPercent),
			})
		}
		if !t.RequiredRole.IsValid() {
			findings = append(findings, Finding{
				Severity: SeverityError,
				TierID:   t.ID,
				Message:  fmt.Sprintf("tier %q: unknown required role %q", t.Name, t.RequiredRole),
			})
		}

		if t.TimeoutSeconds > 0 && t.TimeoutSeconds < maxAdvisoryTimeout {
			findings = append(findings, Finding{
				Severity: SeverityWarning,
				TierID:   t.ID,
				Message: fmt.Sprintf("tier %q: timeout of %ds gives approvers very little time",
					t.Name, t.TimeoutSeconds),
			})
		}

		if t.AllowsBelowCost && i != len(tiers)-1 {
			findings = append(findings, Finding{
				Severity: SeverityWarning,
				TierID:   t.ID,
				Message:  fmt.Sprintf("tier %q allows below-cost sales but is not the terminal tier", t.Name),
			})
		}
	}

	for i := 0; i+1 < len(tiers); i++ {
		lower, upper := &tiers[i], &tiers[i+1]

		diff := upper.MinDiscountPercent.Sub(lower.MaxDiscountPercent)
		switch {
		case diff.GreaterThan(contiguityTolerance):
			findings = append(findings, Finding{
				Severity: SeverityError,
				TierID:   upper.ID,
				Message: fmt.Sprintf("gap of %s%% between tier %q (max %s) and tier %q (min %s)",
					diff, lower.Name, lower.MaxDiscountPercent, upper.Name, upper.MinDiscountPercent),
			})
		case diff.Neg().GreaterThan(contiguityTolerance):
			findings = append(findings, Finding{
				Severity: SeverityError,
				TierID:   upper.ID,
				Message: fmt.Sprintf("overlap of %s%% between tier %q (max %s) and tier %q (min %s)",
					diff.Neg(), lower.Name, lower.MaxDiscountPercent, upper.Name, upper.MinDiscountPercent),
			})
		}

		if upper.RequiredRole.Rank() < lower.RequiredRole.Rank() {
			findings = append(findings, Finding{
				Severity: SeverityError,
				TierID:   upper.ID,
				Message: fmt.Sprintf("tier %q requires %s which ranks below %s required by lower tier %q",
					upper.Name, upper.RequiredRole, lower.RequiredRole, lower.Name),
			})
		}
	}

	return findings
}

// HasErrors reports whether any finding carries error severity
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
