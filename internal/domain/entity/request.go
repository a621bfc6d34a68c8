package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestKind distinguishes a single line item request from a batch
type RequestKind string

const (
	KindSingle RequestKind = "single"
	KindBatch  RequestKind = "batch"
)

// DenyReason carries the approver's reason for rejecting a request
type DenyReason struct {
	Code string `json:"code"`
	Note string `json:"note,omitempty"`
}

// ChildRequest is one cart line item covered by an approval request. A batch
// request carries several children; they are approved and denied as a unit
// but consumed into the cart independently.
type ChildRequest struct {
	ID             string           `json:"id"`
	RequestID      string           `json:"request_id"`
	LineItemID     string           `json:"line_item_id"`
	OriginalValue  decimal.Decimal  `json:"original_value"`
	RequestedValue decimal.Decimal  `json:"requested_value"`
	ApprovedValue  *decimal.Decimal `json:"approved_value,omitempty"`
	Consumed       bool             `json:"consumed"`
	ConsumeError   string           `json:"consume_error,omitempty"`
}

// ApprovalRequest is one authorization transaction. Terminal requests are
// never hard-deleted; they remain for audit.
type ApprovalRequest struct {
	ID             string          `json:"id"`
	Kind           RequestKind     `json:"kind"`
	RuleID         int64           `json:"rule_id"`
	RequiredRole   Role            `json:"required_role"`
	Degraded       bool            `json:"degraded"`
	RequestedValue decimal.Decimal `json:"requested_value"`
	OriginalValue  decimal.Decimal `json:"original_value"`
	State          string          `json:"state"`
	RequesterID    string          `json:"requester_id"`
	ApproverID     string          `json:"approver_id,omitempty"`
	DenyReason     *DenyReason     `json:"deny_reason,omitempty"`
	TimeoutSeconds int             `json:"timeout_seconds"`
	RequiresReason bool            `json:"requires_reason_code"`
	Children       []ChildRequest  `json:"children"`
	CreatedAt      time.Time       `json:"created_at"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Elapsed returns how long the request has been open, measured from
// CreatedAt. It is always recomputed from the creation timestamp so it
// survives process suspension and reconnects.
func (r *ApprovalRequest) Elapsed(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// TimedOut reports whether the configured timeout has expired. A request
// with TimeoutSeconds == 0 never times out.
func (r *ApprovalRequest) TimedOut(now time.Time) bool {
	if r.TimeoutSeconds <= 0 {
		return false
	}
	return r.Elapsed(now) >= time.Duration(r.TimeoutSeconds)*time.Second
}

// Remaining returns the advisory countdown shown to observers. The
// authoritative check is TimedOut.
func (r *ApprovalRequest) Remaining(now time.Time) time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 0
	}
	remaining := time.Duration(r.TimeoutSeconds)*time.Second - r.Elapsed(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
