package approval

import (
	"context"
	"time"

	"github.com/retailcore/pos-approval/internal/domain/entity"
)

// RequestRepository persists approval requests. Requests are append-only:
// terminal requests are retained for audit and never hard-deleted.
type RequestRepository interface {
	CreateRequest(ctx context.Context, request *entity.ApprovalRequest) error
	GetRequest(ctx context.Context, id string) (*entity.ApprovalRequest, error)
	UpdateRequest(ctx context.Context, request *entity.ApprovalRequest) error
	UpdateChild(ctx context.Context, child *entity.ChildRequest) error
	ListPending(ctx context.Context, limit int) ([]*entity.ApprovalRequest, error)
	ListResolvedBetween(ctx context.Context, from, to time.Time) ([]*entity.ApprovalRequest, error)
}

// Notifier pings the approving party when a request enters pending.
// Fire-and-forget: a send failure moves the request to its error state
// rather than being swallowed.
type Notifier interface {
	NotifyApprover(ctx context.Context, request *entity.ApprovalRequest) error
}

// CartConsumer writes one approved child value back into the originating
// cart. Invoked only while a request is consuming.
type CartConsumer interface {
	ApplyApprovedValue(ctx context.Context, child *entity.ChildRequest) error
}

// AuditSink records every state transition of every request
type AuditSink interface {
	RecordApprovalEvent(ctx context.Context, requestID, action, actorID string, payload map[string]interface{}) error
}
