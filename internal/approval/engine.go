// Package approval owns the lifecycle of override approval requests: one
// logical state machine per request id, from creation through a terminal
// outcome, including consumption of approved values into the cart.
package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/domain/entity"
	"github.com/retailcore/pos-approval/internal/domain/workflow"
	"github.com/retailcore/pos-approval/pkg/metrics"
)

// ItemSpec describes one cart line item covered by a new request
type ItemSpec struct {
	LineItemID     string
	OriginalValue  decimal.Decimal
	RequestedValue decimal.Decimal
}

// CreateSpec carries everything needed to open a request. RuleID is zero for
// tier-only decisions.
type CreateSpec struct {
	RequesterID    string
	RuleID         int64
	RequiredRole   entity.Role
	Degraded       bool
	TimeoutSeconds int
	RequiresReason bool
	Items          []ItemSpec
}

// Engine drives approval request lifecycles. Concurrent events racing on the
// same request (a response against a timeout) are serialized per id; the
// first accepted transition wins and the loser gets ErrInvalidState.
type Engine struct {
	requests RequestRepository
	audit    AuditSink
	notifier Notifier
	consumer CartConsumer
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures the engine
type Option func(*Engine)

// WithClock overrides the engine clock, used by tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an approval engine
func NewEngine(
	requests RequestRepository,
	audit AuditSink,
	notifier Notifier,
	consumer CartConsumer,
	collector *metrics.Collector,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		requests: requests,
		audit:    audit,
		notifier: notifier,
		consumer: consumer,
		metrics:  collector,
		logger:   logger,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create opens a new pending request and notifies the approver. A
// notification failure moves the request to its error terminal state and is
// reported as ErrApprovalChannel; the requester must submit a new request.
func (e *Engine) Create(ctx context.Context, spec CreateSpec) (*entity.ApprovalRequest, error) {
	if len(spec.Items) == 0 {
		return nil, fmt.Errorf("create request: no items")
	}

	now := e.now()
	request := &entity.ApprovalRequest{
		ID:             uuid.NewString(),
		Kind:           entity.KindSingle,
		RuleID:         spec.RuleID,
		RequiredRole:   spec.RequiredRole,
		Degraded:       spec.Degraded,
		State:          workflow.StatePending.String(),
		RequesterID:    spec.RequesterID,
		TimeoutSeconds: spec.TimeoutSeconds,
		RequiresReason: spec.RequiresReason,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(spec.Items) > 1 {
		request.Kind = entity.KindBatch
	}

	for _, item := range spec.Items {
		request.Children = append(request.Children, entity.ChildRequest{
			ID:             uuid.NewString(),
			RequestID:      request.ID,
			LineItemID:     item.LineItemID,
			OriginalValue:  item.OriginalValue,
			RequestedValue: item.RequestedValue,
		})
		request.OriginalValue = request.OriginalValue.Add(item.OriginalValue)
		request.RequestedValue = request.RequestedValue.Add(item.RequestedValue)
	}

	if err := e.requests.CreateRequest(ctx, request); err != nil {
		return nil, fmt.Errorf("persist request: %w", err)
	}
	e.metrics.RequestOpened()
	e.recordEvent(ctx, request.ID, "create", spec.RequesterID, map[string]interface{}{
		"kind":            string(request.Kind),
		"required_role":   request.RequiredRole.String(),
		"children":        len(request.Children),
		"timeout_seconds": request.TimeoutSeconds,
	})

	e.logger.Info("approval request created",
		zap.String("request_id", request.ID),
		zap.String("kind", string(request.Kind)),
		zap.String("required_role", request.RequiredRole.String()),
		zap.Int("children", len(request.Children)))

	if err := e.notifier.NotifyApprover(ctx, request); err != nil {
		e.logger.Error("approver notification failed",
			zap.String("request_id", request.ID),
			zap.Error(err))

		if ferr := e.fire(ctx, request, workflow.TriggerChannelFail, "system", map[string]interface{}{
			"error": err.Error(),
		}); ferr != nil {
			return request, ferr
		}
		e.metrics.RequestClosed("error")
		return request, fmt.Errorf("%w: %v", ErrApprovalChannel, err)
	}

	return request, nil
}

// Approve records the approver's response and immediately consumes the
// approved values into the cart. Children missing from approvedValues are
// approved at their requested value. Consumption is per child and partial:
// a failed child is recorded without rolling back its siblings.
func (e *Engine) Approve(ctx context.Context, id, approverID string, approvedValues map[string]decimal.Decimal) (*entity.ApprovalRequest, error) {
	unlock := e.lock(id)
	defer unlock()

	request, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	request.ApproverID = approverID
	for i := range request.Children {
		child := &request.Children[i]
		value := child.RequestedValue
		if v, ok := approvedValues[child.LineItemID]; ok {
			value = v
		}
		child.ApprovedValue = &value
	}

	if err := e.fire(ctx, request, workflow.TriggerApprove, approverID, map[string]interface{}{
		"approver_id": approverID,
	}); err != nil {
		return nil, err
	}
	for i := range request.Children {
		if err := e.requests.UpdateChild(ctx, &request.Children[i]); err != nil {
			return nil, fmt.Errorf("persist child: %w", err)
		}
	}

	if err := e.fire(ctx, request, workflow.TriggerBeginConsume, "system", nil); err != nil {
		return nil, err
	}
	e.consumeAll(ctx, request)
	if err := e.fire(ctx, request, workflow.TriggerComplete, "system", nil); err != nil {
		return nil, err
	}

	e.metrics.RequestClosed("done")
	return request, nil
}

// Deny rejects the request. Denial is all-or-nothing across a batch: every
// child reverts to its original value and no child can remain approved.
func (e *Engine) Deny(ctx context.Context, id, approverID string, reason entity.DenyReason) (*entity.ApprovalRequest, error) {
	unlock := e.lock(id)
	defer unlock()

	request, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.RequiresReason && reason.Code == "" {
		return nil, ErrReasonRequired
	}

	request.ApproverID = approverID
	request.DenyReason = &reason
	for i := range request.Children {
		request.Children[i].ApprovedValue = nil
	}

	if err := e.fire(ctx, request, workflow.TriggerDeny, approverID, map[string]interface{}{
		"approver_id": approverID,
		"reason_code": reason.Code,
		"note":        reason.Note,
	}); err != nil {
		return nil, err
	}
	for i := range request.Children {
		if err := e.requests.UpdateChild(ctx, &request.Children[i]); err != nil {
			return nil, fmt.Errorf("persist child: %w", err)
		}
	}

	e.metrics.RequestClosed("denied")
	return request, nil
}

// Cancel withdraws a pending request. Only the original requester may
// cancel, and only while the request is pending.
func (e *Engine) Cancel(ctx context.Context, id, requesterID string) (*entity.ApprovalRequest, error) {
	unlock := e.lock(id)
	defer unlock()

	request, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != requesterID {
		return nil, fmt.Errorf("%w: only the requester may cancel", ErrForbidden)
	}

	if err := e.fire(ctx, request, workflow.TriggerCancel, requesterID, nil); err != nil {
		return nil, err
	}

	e.metrics.RequestClosed("cancelled")
	return request, nil
}

// CheckTimeout fires the timeout transition when the configured countdown
// has genuinely expired. Elapsed time is recomputed from CreatedAt, never
// from an accumulated tick, so suspended processes cannot fire early.
func (e *Engine) CheckTimeout(ctx context.Context, id string) (bool, error) {
	unlock := e.lock(id)
	defer unlock()

	request, err := e.load(ctx, id)
	if err != nil {
		return false, err
	}
	if request.State != workflow.StatePending.String() {
		return false, nil
	}
	if !request.TimedOut(e.now()) {
		return false, nil
	}

	if err := e.fire(ctx, request, workflow.TriggerTimeout, "system", map[string]interface{}{
		"elapsed_ms": request.Elapsed(e.now()).Milliseconds(),
	}); err != nil {
		return false, err
	}

	e.metrics.RequestClosed("timed_out")
	return true, nil
}

// ExpireDue sweeps pending requests and fires every expired timeout.
// Returns the number of requests timed out.
func (e *Engine) ExpireDue(ctx context.Context, limit int) (int, error) {
	pending, err := e.requests.ListPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	expired := 0
	for _, request := range pending {
		fired, err := e.CheckTimeout(ctx, request.ID)
		if err != nil {
			e.logger.Error("timeout check failed",
				zap.String("request_id", request.ID),
				zap.Error(err))
			continue
		}
		if fired {
			expired++
		}
	}
	return expired, nil
}

// Get returns the request with its children
func (e *Engine) Get(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	return e.load(ctx, id)
}

// consumeAll applies each approved child to the cart independently and
// sequentially, preserving a deterministic per-child audit trail. An
// already-consumed child is a no-op; a failure is recorded on the child and
// the remaining siblings are still attempted.
func (e *Engine) consumeAll(ctx context.Context, request *entity.ApprovalRequest) {
	for i := range request.Children {
		child := &request.Children[i]

		if child.Consumed {
			e.recordEvent(ctx, request.ID, "consume_skipped", "system", map[string]interface{}{
				"child_id": child.ID,
			})
			continue
		}

		if err := e.consumer.ApplyApprovedValue(ctx, child); err != nil {
			child.ConsumeError = err.Error()
			e.metrics.ConsumptionFailed()
			e.logger.Error("child consumption failed",
				zap.String("request_id", request.ID),
				zap.String("child_id", child.ID),
				zap.String("line_item_id", child.LineItemID),
				zap.Error(err))
			e.recordEvent(ctx, request.ID, "consume_failed", "system", map[string]interface{}{
				"child_id": child.ID,
				"error":    err.Error(),
			})
		} else {
			child.Consumed = true
			child.ConsumeError = ""
			e.recordEvent(ctx, request.ID, "consumed", "system", map[string]interface{}{
				"child_id":       child.ID,
				"approved_value": child.ApprovedValue.String(),
			})
		}

		if err := e.requests.UpdateChild(ctx, child); err != nil {
			e.logger.Error("failed to persist child consumption",
				zap.String("child_id", child.ID),
				zap.Error(err))
		}
	}
}

// fire runs one state machine transition, persists the new state and records
// the audit event. Leaving PENDING stamps ResolvedAt.
func (e *Engine) fire(ctx context.Context, request *entity.ApprovalRequest, trigger workflow.Trigger, actorID string, payload map[string]interface{}) error {
	previous := workflow.State(request.State)
	if !previous.IsValid() {
		return fmt.Errorf("request %s has unknown state %q", request.ID, request.State)
	}

	machine := workflow.NewOverrideMachine(previous)
	if err := machine.Fire(ctx, trigger); err != nil {
		return err
	}

	now := e.now()
	request.State = machine.State().String()
	request.UpdatedAt = now
	if previous == workflow.StatePending {
		request.ResolvedAt = &now
	}

	if err := e.requests.UpdateRequest(ctx, request); err != nil {
		return fmt.Errorf("persist transition %s: %w", trigger, err)
	}

	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["from"] = previous.String()
	payload["to"] = request.State
	e.recordEvent(ctx, request.ID, trigger.String(), actorID, payload)

	return nil
}

func (e *Engine) recordEvent(ctx context.Context, requestID, action, actorID string, payload map[string]interface{}) {
	if err := e.audit.RecordApprovalEvent(ctx, requestID, action, actorID, payload); err != nil {
		e.logger.Error("audit event not recorded",
			zap.String("request_id", requestID),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (e *Engine) load(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	request, err := e.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return request, nil
}

// lock serializes transitions per request id
func (e *Engine) lock(id string) func() {
	e.mu.Lock()
	m, ok := e.locks[id]
	if !ok {
		m = &sync.Mutex{}
		e.locks[id] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}
