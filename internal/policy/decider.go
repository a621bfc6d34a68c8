package policy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/domain/entity"
)

// SnapshotSource yields the active configuration. Implementations hand out
// immutable snapshots; the decider never observes a half-replaced set.
type SnapshotSource interface {
	Tiers() []entity.Tier
	Rules() []entity.Rule
}

// Decision is the outcome of evaluating one override attempt
type Decision struct {
	RequiresApproval   bool        `json:"requires_approval"`
	RequiredRole       entity.Role `json:"required_role,omitempty"`
	RuleID             *int64      `json:"rule_id,omitempty"`
	TierID             *int64      `json:"tier_id,omitempty"`
	TimeoutSeconds     int         `json:"timeout_seconds"`
	RequiresReasonCode bool        `json:"requires_reason_code"`
	Degraded           bool        `json:"degraded"`
}

// Decider combines the tier ladder and the rule resolver into one verdict
// per attempt. When both a tier and a rule apply, the stricter role wins.
type Decider struct {
	source                SnapshotSource
	resolver              *Resolver
	logger                *zap.Logger
	defaultTimeoutSeconds int
}

// NewDecider creates a decider over the given configuration source
func NewDecider(source SnapshotSource, resolver *Resolver, defaultTimeoutSeconds int, logger *zap.Logger) *Decider {
	return &Decider{
		source:                source,
		resolver:              resolver,
		logger:                logger,
		defaultTimeoutSeconds: defaultTimeoutSeconds,
	}
}

// Decide evaluates an attempt by the given actor. On a configuration hole it
// returns a fail-closed decision requiring the highest approver role together
// with a wrapped ErrConfiguration; callers may proceed with the decision
// while surfacing the error.
func (d *Decider) Decide(attempt entity.OverrideAttempt, actorRole entity.Role) (Decision, error) {
	switch attempt.Type {
	case entity.ThresholdPriceBelowCost:
		return d.decideBelowCost(attempt, actorRole)
	case entity.ThresholdDiscountPercent:
		return d.decideDiscountPercent(attempt, actorRole)
	default:
		return d.decideByRule(attempt, Decision{TimeoutSeconds: d.defaultTimeoutSeconds})
	}
}

// decideDiscountPercent walks the tier ladder first: the covering tier names
// the role that may self-serve the discount, then any matching rule may
// tighten the verdict.
func (d *Decider) decideDiscountPercent(attempt entity.OverrideAttempt, actorRole entity.Role) (Decision, error) {
	tier := entity.TierForDiscount(d.source.Tiers(), attempt.Value)
	if tier == nil {
		return d.failClosed(attempt, fmt.Errorf("%w: no tier covers discount of %s%%", ErrConfiguration, attempt.Value))
	}

	decision := Decision{
		TierID:             &tier.ID,
		TimeoutSeconds:     tier.TimeoutSeconds,
		RequiresReasonCode: tier.RequiresReasonCode,
	}
	if !actorRole.AtLeast(tier.RequiredRole) {
		decision.RequiresApproval = true
		decision.RequiredRole = tier.RequiredRole
	}

	return d.decideByRule(attempt, decision)
}

// decideBelowCost bypasses magnitude comparison entirely: only the tier
// explicitly flagged for below-cost sales may authorize, regardless of value.
func (d *Decider) decideBelowCost(attempt entity.OverrideAttempt, actorRole entity.Role) (Decision, error) {
	tier := entity.BelowCostTier(d.source.Tiers())
	if tier == nil {
		return d.failClosed(attempt, fmt.Errorf("%w: no tier allows below-cost sales", ErrConfiguration))
	}

	decision := Decision{
		TierID:             &tier.ID,
		TimeoutSeconds:     tier.TimeoutSeconds,
		RequiresReasonCode: tier.RequiresReasonCode,
	}
	if !actorRole.AtLeast(tier.RequiredRole) {
		decision.RequiresApproval = true
		decision.RequiredRole = tier.RequiredRole
	}

	return d.decideByRule(attempt, decision)
}

// decideByRule resolves the applicable rule and merges its ladder level into
// the base decision, keeping whichever required role ranks higher.
func (d *Decider) decideByRule(attempt entity.OverrideAttempt, base Decision) (Decision, error) {
	rule := d.resolver.Resolve(attempt, d.source.Rules())
	if rule == nil {
		return base, nil
	}

	result, err := RequiredLevel(rule, attempt.Value)
	if err != nil {
		return d.failClosed(attempt, err)
	}

	base.RuleID = &rule.ID
	if result.Degraded {
		base.Degraded = true
		d.logger.Warn("approval ladder degraded, escalating to highest configured level",
			zap.Int64("rule_id", rule.ID),
			zap.String("value", attempt.Value.String()))
	}

	if !base.RequiresApproval || result.Level.Role.Rank() > base.RequiredRole.Rank() {
		base.RequiresApproval = true
		base.RequiredRole = result.Level.Role
	}
	// A tier's timeout is authoritative for its band, including 0 = none.
	// Rule-only decisions fall back to the configured default.
	if base.TierID == nil && base.TimeoutSeconds == 0 {
		base.TimeoutSeconds = d.defaultTimeoutSeconds
	}

	return base, nil
}

// failClosed requires the highest approver role until the configuration is
// corrected.
func (d *Decider) failClosed(attempt entity.OverrideAttempt, err error) (Decision, error) {
	d.logger.Error("configuration hole, failing closed to highest approver role",
		zap.String("type", attempt.Type.String()),
		zap.Error(err))

	return Decision{
		RequiresApproval: true,
		RequiredRole:     entity.HighestApproverRole(),
		TimeoutSeconds:   d.defaultTimeoutSeconds,
		Degraded:         true,
	}, err
}
