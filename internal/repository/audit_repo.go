package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/approval"
)

// ApprovalEvent is one audit trail entry for a request
type ApprovalEvent struct {
	ID        int64                  `json:"id"`
	RequestID string                 `json:"request_id"`
	Action    string                 `json:"action"`
	ActorID   string                 `json:"actor_id"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// AuditRepository writes the append-only approval event log
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates an audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// RecordApprovalEvent appends one event to the trail
func (r *AuditRepository) RecordApprovalEvent(ctx context.Context, requestID, action, actorID string, payload map[string]interface{}) error {
	encoded := []byte("{}")
	if len(payload) > 0 {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
	}

	query := `
		INSERT INTO approval_events (request_id, action, actor_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, requestID, action, actorID, string(encoded), time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to record approval event",
			zap.String("request_id", requestID),
			zap.String("action", action),
			zap.Error(err))
		return fmt.Errorf("failed to record approval event: %w", err)
	}
	return nil
}

// ListEvents returns a request's events, oldest first
func (r *AuditRepository) ListEvents(ctx context.Context, requestID string) ([]ApprovalEvent, error) {
	query := `
		SELECT id, request_id, action, actor_id, payload, created_at
		FROM approval_events
		WHERE request_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list approval events", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approval events: %w", err)
	}
	defer rows.Close()

	var events []ApprovalEvent
	for rows.Next() {
		var event ApprovalEvent
		var payload string

		err := rows.Scan(&event.ID, &event.RequestID, &event.Action, &event.ActorID, &payload, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &event.Payload); err != nil {
			return nil, fmt.Errorf("event %d payload: %w", event.ID, err)
		}

		events = append(events, event)
	}

	return events, rows.Err()
}

// Verify interface compliance
var _ approval.AuditSink = (*AuditRepository)(nil)
