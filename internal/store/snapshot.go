// Package store holds the active tier and rule configuration as an immutable
// snapshot. Administrative edits go through full-set validation and replace
// the snapshot atomically; readers never observe a partial edit.
package store

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/domain/entity"
	"github.com/retailcore/pos-approval/internal/tiers"
)

// TierRepository persists the tier configuration
type TierRepository interface {
	LoadTiers(ctx context.Context) ([]entity.Tier, error)
	ReplaceTiers(ctx context.Context, set []entity.Tier) ([]entity.Tier, error)
}

// RuleRepository persists authorization rules
type RuleRepository interface {
	LoadRules(ctx context.Context) ([]entity.Rule, error)
	SaveRule(ctx context.Context, rule *entity.Rule) error
	SoftDeleteRule(ctx context.Context, id int64) error
}

// snapshot is one immutable view of the configuration. Snapshots are swapped
// whole; their slices are never mutated after publication.
type snapshot struct {
	tiers []entity.Tier
	rules []entity.Rule
}

// Store is the configuration snapshot holder. Writes follow last-writer-wins
// at this boundary; conflicting administrators must reload and retry.
type Store struct {
	tierRepo TierRepository
	ruleRepo RuleRepository
	logger   *zap.Logger

	mu   sync.RWMutex
	snap *snapshot
}

// New creates a store; call Load before serving reads
func New(tierRepo TierRepository, ruleRepo RuleRepository, logger *zap.Logger) *Store {
	return &Store{
		tierRepo: tierRepo,
		ruleRepo: ruleRepo,
		logger:   logger,
		snap:     &snapshot{},
	}
}

// Load reads the persisted configuration and publishes the first snapshot
func (s *Store) Load(ctx context.Context) error {
	tierSet, err := s.tierRepo.LoadTiers(ctx)
	if err != nil {
		return fmt.Errorf("load tiers: %w", err)
	}
	ruleSet, err := s.ruleRepo.LoadRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	s.publish(&snapshot{tiers: tierSet, rules: ruleSet})
	s.logger.Info("configuration snapshot loaded",
		zap.Int("tiers", len(tierSet)),
		zap.Int("rules", len(ruleSet)))
	return nil
}

// Tiers returns the active tier set. Callers must treat it as read-only.
func (s *Store) Tiers() []entity.Tier {
	return s.current().tiers
}

// Rules returns the active rule set. Callers must treat it as read-only.
func (s *Store) Rules() []entity.Rule {
	return s.current().rules
}

// ReplaceTiers validates the candidate set and, when it carries no
// error-severity finding, persists it as a whole and swaps the snapshot.
// The previously active set stays untouched on rejection.
func (s *Store) ReplaceTiers(ctx context.Context, candidate []entity.Tier) ([]tiers.Finding, error) {
	findings := tiers.Validate(candidate)
	if tiers.HasErrors(findings) {
		s.logger.Warn("tier replacement rejected", zap.Int("findings", len(findings)))
		return findings, nil
	}

	stored, err := s.tierRepo.ReplaceTiers(ctx, candidate)
	if err != nil {
		return findings, fmt.Errorf("persist tiers: %w", err)
	}

	s.mu.Lock()
	s.snap = &snapshot{tiers: stored, rules: s.snap.rules}
	s.mu.Unlock()

	s.logger.Info("tier set replaced", zap.Int("tiers", len(stored)))
	return findings, nil
}

// SaveRule persists a rule and refreshes the rule portion of the snapshot
func (s *Store) SaveRule(ctx context.Context, rule *entity.Rule) error {
	if err := s.ruleRepo.SaveRule(ctx, rule); err != nil {
		return fmt.Errorf("persist rule: %w", err)
	}

	ruleSet, err := s.ruleRepo.LoadRules(ctx)
	if err != nil {
		return fmt.Errorf("reload rules: %w", err)
	}

	s.mu.Lock()
	s.snap = &snapshot{tiers: s.snap.tiers, rules: ruleSet}
	s.mu.Unlock()
	return nil
}

// DeleteRule soft-deletes a rule and refreshes the rule portion of the
// snapshot. Deleted rules stay in storage for audit.
func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	if err := s.ruleRepo.SoftDeleteRule(ctx, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}

	ruleSet, err := s.ruleRepo.LoadRules(ctx)
	if err != nil {
		return fmt.Errorf("reload rules: %w", err)
	}

	s.mu.Lock()
	s.snap = &snapshot{tiers: s.snap.tiers, rules: ruleSet}
	s.mu.Unlock()
	return nil
}

func (s *Store) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) publish(snap *snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}
