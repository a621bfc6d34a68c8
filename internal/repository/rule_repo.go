package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/domain/entity"
	"github.com/retailcore/pos-approval/internal/store"
)

// RuleRepository persists authorization rules. Rules are soft-deleted only.
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

const ruleColumns = `
	id, name, threshold_type, threshold_value, category_id,
	valid_from, valid_until, time_start_minute, time_end_minute,
	active_days, channel, priority, is_active, levels, created_at, updated_at
`

// LoadRules returns all non-deleted rules
func (r *RuleRepository) LoadRules(ctx context.Context) ([]entity.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE deleted_at IS NULL ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to load rules", zap.Error(err))
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	defer rows.Close()

	var rules []entity.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}

	return rules, rows.Err()
}

// SaveRule inserts a new rule or updates an existing one by id
func (r *RuleRepository) SaveRule(ctx context.Context, rule *entity.Rule) error {
	levels, err := json.Marshal(rule.Levels)
	if err != nil {
		return fmt.Errorf("marshal levels: %w", err)
	}

	var days interface{}
	if len(rule.ActiveDays) > 0 {
		encoded, err := json.Marshal(rule.ActiveDays)
		if err != nil {
			return fmt.Errorf("marshal active days: %w", err)
		}
		days = string(encoded)
	}

	var threshold interface{}
	if rule.ThresholdValue != nil {
		threshold = rule.ThresholdValue.String()
	}
	var startMinute, endMinute interface{}
	if rule.TimeOfDay != nil {
		startMinute = rule.TimeOfDay.StartMinute
		endMinute = rule.TimeOfDay.EndMinute
	}

	if rule.ID == 0 {
		query := `
			INSERT INTO rules (
				name, threshold_type, threshold_value, category_id,
				valid_from, valid_until, time_start_minute, time_end_minute,
				active_days, channel, priority, is_active, levels
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		result, err := r.db.ExecContext(ctx, query,
			rule.Name, rule.Type.String(), threshold, rule.CategoryID,
			rule.ValidFrom, rule.ValidUntil, startMinute, endMinute,
			days, rule.Channel, rule.Priority, rule.IsActive, string(levels),
		)
		if err != nil {
			r.logger.Error("Failed to insert rule", zap.String("name", rule.Name), zap.Error(err))
			return fmt.Errorf("failed to insert rule: %w", err)
		}
		rule.ID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("rule insert id: %w", err)
		}
		return nil
	}

	query := `
		UPDATE rules SET
			name = ?, threshold_type = ?, threshold_value = ?, category_id = ?,
			valid_from = ?, valid_until = ?, time_start_minute = ?, time_end_minute = ?,
			active_days = ?, channel = ?, priority = ?, is_active = ?, levels = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.Name, rule.Type.String(), threshold, rule.CategoryID,
		rule.ValidFrom, rule.ValidUntil, startMinute, endMinute,
		days, rule.Channel, rule.Priority, rule.IsActive, string(levels),
		rule.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update rule", zap.Int64("id", rule.ID), zap.Error(err))
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return nil
}

// SoftDeleteRule marks a rule deleted while keeping it for audit
func (r *RuleRepository) SoftDeleteRule(ctx context.Context, id int64) error {
	query := `UPDATE rules SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to soft-delete rule", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to soft-delete rule: %w", err)
	}
	return nil
}

func scanRule(rows *sql.Rows) (*entity.Rule, error) {
	var rule entity.Rule
	var thresholdType string
	var threshold, categoryID, days, channel sql.NullString
	var validFrom, validUntil sql.NullTime
	var startMinute, endMinute sql.NullInt64
	var levels string

	err := rows.Scan(
		&rule.ID,
		&rule.Name,
		&thresholdType,
		&threshold,
		&categoryID,
		&validFrom,
		&validUntil,
		&startMinute,
		&endMinute,
		&days,
		&channel,
		&rule.Priority,
		&rule.IsActive,
		&levels,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	rule.Type = entity.ThresholdType(thresholdType)
	if threshold.Valid {
		v, err := decimal.NewFromString(threshold.String)
		if err != nil {
			return nil, fmt.Errorf("rule %d threshold: %w", rule.ID, err)
		}
		rule.ThresholdValue = &v
	}
	if categoryID.Valid {
		rule.CategoryID = &categoryID.String
	}
	if validFrom.Valid {
		rule.ValidFrom = &validFrom.Time
	}
	if validUntil.Valid {
		rule.ValidUntil = &validUntil.Time
	}
	if startMinute.Valid && endMinute.Valid {
		rule.TimeOfDay = &entity.TimeOfDayWindow{
			StartMinute: int(startMinute.Int64),
			EndMinute:   int(endMinute.Int64),
		}
	}
	if days.Valid && days.String != "" {
		var weekdays []time.Weekday
		if err := json.Unmarshal([]byte(days.String), &weekdays); err != nil {
			return nil, fmt.Errorf("rule %d active days: %w", rule.ID, err)
		}
		rule.ActiveDays = weekdays
	}
	if channel.Valid {
		rule.Channel = &channel.String
	}
	if err := json.Unmarshal([]byte(levels), &rule.Levels); err != nil {
		return nil, fmt.Errorf("rule %d levels: %w", rule.ID, err)
	}

	return &rule, nil
}

// Verify interface compliance
var _ store.RuleRepository = (*RuleRepository)(nil)
