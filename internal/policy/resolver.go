// Package policy selects the authorization policy for an attempted override
// and computes the minimum approval level it demands.
package policy

import (
	"sort"

	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/domain/entity"
)

// Resolver selects the single applicable rule for an attempt
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a rule resolver
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve returns the applicable rule for the attempt, or nil when no rule
// matches. Category-scoped rules outrank global ones; ties break by
// descending priority, then by most recent creation.
func (r *Resolver) Resolve(attempt entity.OverrideAttempt, rules []entity.Rule) *entity.Rule {
	var survivors []*entity.Rule
	for i := range rules {
		rule := &rules[i]
		if r.matches(attempt, rule) {
			survivors = append(survivors, rule)
		}
	}

	if len(survivors) == 0 {
		return nil
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		if a.IsCategoryScoped() != b.IsCategoryScoped() {
			return a.IsCategoryScoped()
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	winner := survivors[0]
	r.logger.Debug("rule resolved",
		zap.Int64("rule_id", winner.ID),
		zap.String("rule", winner.Name),
		zap.String("type", attempt.Type.String()),
		zap.Int("candidates", len(survivors)))

	return winner
}

func (r *Resolver) matches(attempt entity.OverrideAttempt, rule *entity.Rule) bool {
	if !rule.IsActive || rule.Type != attempt.Type {
		return false
	}
	if !rule.InValidityWindow(attempt.Timestamp) {
		return false
	}
	if rule.TimeOfDay != nil && !rule.TimeOfDay.Contains(attempt.Timestamp) {
		return false
	}
	if !rule.ActiveOn(attempt.Timestamp.Weekday()) {
		return false
	}
	if !rule.MatchesChannel(attempt.Channel) {
		return false
	}
	if rule.IsCategoryScoped() {
		if attempt.CategoryID == nil || *attempt.CategoryID != *rule.CategoryID {
			return false
		}
	}

	// Magnitude rules only engage above their threshold; boolean actions
	// (voids, no-receipt refunds, drawer adjustments) match on scope alone.
	if attempt.Type.IsMagnitude() {
		if rule.ThresholdValue == nil {
			return false
		}
		if !attempt.Value.GreaterThan(*rule.ThresholdValue) {
			return false
		}
	}

	return true
}
