package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/approval"
	"github.com/retailcore/pos-approval/internal/domain/entity"
)

// RequestRepository persists approval requests and their children. History
// is append-only; terminal requests are never deleted.
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

// CreateRequest inserts a request and all of its children in one transaction
func (r *RequestRepository) CreateRequest(ctx context.Context, request *entity.ApprovalRequest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO approval_requests (
			id, kind, rule_id, required_role, degraded, requested_value,
			original_value, state, requester_id, timeout_seconds,
			requires_reason_code, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		request.ID,
		string(request.Kind),
		nullableID(request.RuleID),
		request.RequiredRole.String(),
		request.Degraded,
		request.RequestedValue.String(),
		request.OriginalValue.String(),
		request.State,
		request.RequesterID,
		request.TimeoutSeconds,
		request.RequiresReason,
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.String("id", request.ID), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	childQuery := `
		INSERT INTO child_requests (
			id, request_id, line_item_id, original_value, requested_value,
			approved_value, consumed, consume_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i := range request.Children {
		child := &request.Children[i]
		_, err = tx.ExecContext(ctx, childQuery,
			child.ID,
			child.RequestID,
			child.LineItemID,
			child.OriginalValue.String(),
			child.RequestedValue.String(),
			nullableDecimal(child.ApprovedValue),
			child.Consumed,
			child.ConsumeError,
		)
		if err != nil {
			return fmt.Errorf("failed to create child %s: %w", child.ID, err)
		}
	}

	return tx.Commit()
}

// GetRequest returns a request with its children, or nil when absent
func (r *RequestRepository) GetRequest(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	query := `
		SELECT id, kind, rule_id, required_role, degraded, requested_value,
			original_value, state, requester_id, approver_id, deny_code,
			deny_note, timeout_seconds, requires_reason_code, created_at,
			resolved_at, updated_at
		FROM approval_requests
		WHERE id = ?
	`

	request, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	children, err := r.loadChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	request.Children = children

	return request, nil
}

// UpdateRequest persists the mutable portion of a request
func (r *RequestRepository) UpdateRequest(ctx context.Context, request *entity.ApprovalRequest) error {
	var denyCode, denyNote interface{}
	if request.DenyReason != nil {
		denyCode = request.DenyReason.Code
		denyNote = request.DenyReason.Note
	}
	var approver interface{}
	if request.ApproverID != "" {
		approver = request.ApproverID
	}

	query := `
		UPDATE approval_requests SET
			state = ?, approver_id = ?, deny_code = ?, deny_note = ?,
			resolved_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		request.State,
		approver,
		denyCode,
		denyNote,
		request.ResolvedAt,
		request.UpdatedAt,
		request.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update request", zap.String("id", request.ID), zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}
	return nil
}

// UpdateChild persists one child's approval and consumption outcome
func (r *RequestRepository) UpdateChild(ctx context.Context, child *entity.ChildRequest) error {
	query := `
		UPDATE child_requests SET
			approved_value = ?, consumed = ?, consume_error = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		nullableDecimal(child.ApprovedValue),
		child.Consumed,
		child.ConsumeError,
		child.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update child", zap.String("id", child.ID), zap.Error(err))
		return fmt.Errorf("failed to update child: %w", err)
	}
	return nil
}

// ListPending returns open requests, oldest first, for the timeout sweep
func (r *RequestRepository) ListPending(ctx context.Context, limit int) ([]*entity.ApprovalRequest, error) {
	query := `
		SELECT id, kind, rule_id, required_role, degraded, requested_value,
			original_value, state, requester_id, approver_id, deny_code,
			deny_note, timeout_seconds, requires_reason_code, created_at,
			resolved_at, updated_at
		FROM approval_requests
		WHERE state = 'PENDING'
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list pending requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// ListResolvedBetween returns requests resolved in [from, to), children
// included, for the back-office report
func (r *RequestRepository) ListResolvedBetween(ctx context.Context, from, to time.Time) ([]*entity.ApprovalRequest, error) {
	query := `
		SELECT id, kind, rule_id, required_role, degraded, requested_value,
			original_value, state, requester_id, approver_id, deny_code,
			deny_note, timeout_seconds, requires_reason_code, created_at,
			resolved_at, updated_at
		FROM approval_requests
		WHERE resolved_at IS NOT NULL AND resolved_at >= ? AND resolved_at < ?
		ORDER BY resolved_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		r.logger.Error("Failed to list resolved requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list resolved requests: %w", err)
	}
	defer rows.Close()

	requests, err := collectRequests(rows)
	if err != nil {
		return nil, err
	}

	for _, request := range requests {
		children, err := r.loadChildren(ctx, request.ID)
		if err != nil {
			return nil, err
		}
		request.Children = children
	}

	return requests, nil
}

func (r *RequestRepository) loadChildren(ctx context.Context, requestID string) ([]entity.ChildRequest, error) {
	query := `
		SELECT id, request_id, line_item_id, original_value, requested_value,
			approved_value, consumed, consume_error
		FROM child_requests
		WHERE request_id = ?
		ORDER BY rowid ASC
	`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load children: %w", err)
	}
	defer rows.Close()

	var children []entity.ChildRequest
	for rows.Next() {
		var child entity.ChildRequest
		var original, requested string
		var approved sql.NullString

		err := rows.Scan(
			&child.ID,
			&child.RequestID,
			&child.LineItemID,
			&original,
			&requested,
			&approved,
			&child.Consumed,
			&child.ConsumeError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}

		if child.OriginalValue, err = decimal.NewFromString(original); err != nil {
			return nil, fmt.Errorf("child %s original value: %w", child.ID, err)
		}
		if child.RequestedValue, err = decimal.NewFromString(requested); err != nil {
			return nil, fmt.Errorf("child %s requested value: %w", child.ID, err)
		}
		if approved.Valid {
			v, err := decimal.NewFromString(approved.String)
			if err != nil {
				return nil, fmt.Errorf("child %s approved value: %w", child.ID, err)
			}
			child.ApprovedValue = &v
		}

		children = append(children, child)
	}

	return children, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*entity.ApprovalRequest, error) {
	var request entity.ApprovalRequest
	var kind, requiredRole, requested, original string
	var ruleID sql.NullInt64
	var approver, denyCode, denyNote sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&request.ID,
		&kind,
		&ruleID,
		&requiredRole,
		&request.Degraded,
		&requested,
		&original,
		&request.State,
		&request.RequesterID,
		&approver,
		&denyCode,
		&denyNote,
		&request.TimeoutSeconds,
		&request.RequiresReason,
		&request.CreatedAt,
		&resolvedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	request.Kind = entity.RequestKind(kind)
	request.RequiredRole = entity.Role(requiredRole)
	if ruleID.Valid {
		request.RuleID = ruleID.Int64
	}
	if approver.Valid {
		request.ApproverID = approver.String
	}
	if denyCode.Valid {
		request.DenyReason = &entity.DenyReason{Code: denyCode.String, Note: denyNote.String}
	}
	if resolvedAt.Valid {
		request.ResolvedAt = &resolvedAt.Time
	}
	if request.RequestedValue, err = decimal.NewFromString(requested); err != nil {
		return nil, fmt.Errorf("request %s requested value: %w", request.ID, err)
	}
	if request.OriginalValue, err = decimal.NewFromString(original); err != nil {
		return nil, fmt.Errorf("request %s original value: %w", request.ID, err)
	}

	return &request, nil
}

func collectRequests(rows *sql.Rows) ([]*entity.ApprovalRequest, error) {
	var requests []*entity.ApprovalRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

func nullableID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

func nullableDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

// Verify interface compliance
var _ approval.RequestRepository = (*RequestRepository)(nil)
