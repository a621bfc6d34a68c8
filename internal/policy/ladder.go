package policy

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/retailcore/pos-approval/internal/domain/entity"
)

// LadderResult is the outcome of climbing a rule's approval ladder
type LadderResult struct {
	Level entity.ApprovalLevel

	// Degraded marks a result where no configured level covered the value
	// and the ladder escalated to the highest level. A validated
	// configuration ends in an unlimited level, so this should not happen.
	Degraded bool
}

// RequiredLevel returns the minimum approval level able to authorize the
// requested value. Levels are climbed by ascending role rank; the first
// level whose cap allows the value (boundary inclusive) wins.
func RequiredLevel(rule *entity.Rule, requested decimal.Decimal) (LadderResult, error) {
	if rule == nil || len(rule.Levels) == 0 {
		return LadderResult{}, fmt.Errorf("%w: rule has no approval levels", ErrConfiguration)
	}

	levels := make([]entity.ApprovalLevel, len(rule.Levels))
	copy(levels, rule.Levels)
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Role.Rank() < levels[j].Role.Rank()
	})

	for _, level := range levels {
		if level.Cap.Allows(requested) {
			return LadderResult{Level: level}, nil
		}
	}

	// No level covers the value. Escalate to the top of the ladder and flag
	// the result so callers can report the configuration hole.
	return LadderResult{Level: levels[len(levels)-1], Degraded: true}, nil
}
