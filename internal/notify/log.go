package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/approval"
	"github.com/retailcore/pos-approval/internal/domain/entity"
)

// LogNotifier records prompts to the log instead of sending them. Used when
// no approver channel is configured, typically in development.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyApprover logs the prompt and always succeeds
func (n *LogNotifier) NotifyApprover(_ context.Context, request *entity.ApprovalRequest) error {
	n.logger.Info("Approval prompt (log only)",
		zap.String("request_id", request.ID),
		zap.String("required_role", request.RequiredRole.String()),
		zap.String("requested_value", request.RequestedValue.String()),
		zap.Bool("degraded", request.Degraded))
	return nil
}

// Verify interface compliance
var _ approval.Notifier = (*LogNotifier)(nil)
