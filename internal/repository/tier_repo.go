// Package repository provides the SQLite persistence layer
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/domain/entity"
	"github.com/retailcore/pos-approval/internal/store"
)

// TierRepository persists the tier configuration as a whole set
type TierRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTierRepository creates a tier repository
func NewTierRepository(db *sql.DB, logger *zap.Logger) *TierRepository {
	return &TierRepository{db: db, logger: logger}
}

// LoadTiers returns all tiers ordered by ordinal
func (r *TierRepository) LoadTiers(ctx context.Context) ([]entity.Tier, error) {
	query := `
		SELECT id, ordinal, name, min_discount_percent, max_discount_percent,
			min_margin_percent, allows_below_cost, required_role,
			timeout_seconds, requires_reason_code, created_at, updated_at
		FROM tiers
		ORDER BY ordinal ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to load tiers", zap.Error(err))
		return nil, fmt.Errorf("failed to load tiers: %w", err)
	}
	defer rows.Close()

	var tiers []entity.Tier
	for rows.Next() {
		tier, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, *tier)
	}

	return tiers, rows.Err()
}

// ReplaceTiers swaps the whole tier set in one transaction. The previous set
// survives intact when anything fails.
func (r *TierRepository) ReplaceTiers(ctx context.Context, set []entity.Tier) ([]entity.Tier, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tier replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tiers`); err != nil {
		return nil, fmt.Errorf("clear tiers: %w", err)
	}

	insert := `
		INSERT INTO tiers (
			ordinal, name, min_discount_percent, max_discount_percent,
			min_margin_percent, allows_below_cost, required_role,
			timeout_seconds, requires_reason_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	stored := make([]entity.Tier, 0, len(set))
	for _, tier := range set {
		var margin interface{}
		if tier.MinMarginPercent != nil {
			margin = tier.MinMarginPercent.String()
		}

		result, err := tx.ExecContext(ctx, insert,
			tier.Ordinal,
			tier.Name,
			tier.MinDiscountPercent.String(),
			tier.MaxDiscountPercent.String(),
			margin,
			tier.AllowsBelowCost,
			tier.RequiredRole.String(),
			tier.TimeoutSeconds,
			tier.RequiresReasonCode,
		)
		if err != nil {
			return nil, fmt.Errorf("insert tier %q: %w", tier.Name, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("tier insert id: %w", err)
		}
		tier.ID = id
		stored = append(stored, tier)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tier replace: %w", err)
	}

	r.logger.Info("Tier set replaced", zap.Int("count", len(stored)))
	return stored, nil
}

func scanTier(rows *sql.Rows) (*entity.Tier, error) {
	var tier entity.Tier
	var minPct, maxPct string
	var margin sql.NullString

	err := rows.Scan(
		&tier.ID,
		&tier.Ordinal,
		&tier.Name,
		&minPct,
		&maxPct,
		&margin,
		&tier.AllowsBelowCost,
		&tier.RequiredRole,
		&tier.TimeoutSeconds,
		&tier.RequiresReasonCode,
		&tier.CreatedAt,
		&tier.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tier: %w", err)
	}

	if tier.MinDiscountPercent, err = decimal.NewFromString(minPct); err != nil {
		return nil, fmt.Errorf("tier %d min percent: %w", tier.ID, err)
	}
	if tier.MaxDiscountPercent, err = decimal.NewFromString(maxPct); err != nil {
		return nil, fmt.Errorf("tier %d max percent: %w", tier.ID, err)
	}
	if margin.Valid {
		m, err := decimal.NewFromString(margin.String)
		if err != nil {
			return nil, fmt.Errorf("tier %d margin: %w", tier.ID, err)
		}
		tier.MinMarginPercent = &m
	}

	return &tier, nil
}

// Verify interface compliance
var _ store.TierRepository = (*TierRepository)(nil)
