package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/domain/entity"
	"github.com/retailcore/pos-approval/internal/domain/workflow"
	"github.com/retailcore/pos-approval/pkg/metrics"
)

// memoryRepo is an in-memory RequestRepository
type memoryRepo struct {
	mu       sync.Mutex
	requests map[string]*entity.ApprovalRequest
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{requests: make(map[string]*entity.ApprovalRequest)}
}

func (r *memoryRepo) CreateRequest(_ context.Context, request *entity.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *request
	clone.Children = append([]entity.ChildRequest(nil), request.Children...)
	r.requests[request.ID] = &clone
	return nil
}

func (r *memoryRepo) GetRequest(_ context.Context, id string) (*entity.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	clone := *stored
	clone.Children = append([]entity.ChildRequest(nil), stored.Children...)
	return &clone, nil
}

func (r *memoryRepo) UpdateRequest(_ context.Context, request *entity.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[request.ID]
	if !ok {
		return fmt.Errorf("request %s not stored", request.ID)
	}
	children := stored.Children
	clone := *request
	clone.Children = children
	r.requests[request.ID] = &clone
	return nil
}

func (r *memoryRepo) UpdateChild(_ context.Context, child *entity.ChildRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[child.RequestID]
	if !ok {
		return fmt.Errorf("request %s not stored", child.RequestID)
	}
	for i := range stored.Children {
		if stored.Children[i].ID == child.ID {
			stored.Children[i] = *child
			return nil
		}
	}
	return fmt.Errorf("child %s not stored", child.ID)
}

func (r *memoryRepo) ListPending(_ context.Context, limit int) ([]*entity.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []*entity.ApprovalRequest
	for _, request := range r.requests {
		if request.State == workflow.StatePending.String() && len(pending) < limit {
			clone := *request
			pending = append(pending, &clone)
		}
	}
	return pending, nil
}

func (r *memoryRepo) ListResolvedBetween(_ context.Context, from, to time.Time) ([]*entity.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var resolved []*entity.ApprovalRequest
	for _, request := range r.requests {
		if request.ResolvedAt != nil && !request.ResolvedAt.Before(from) && request.ResolvedAt.Before(to) {
			clone := *request
			resolved = append(resolved, &clone)
		}
	}
	return resolved, nil
}

// memoryAudit records events in order
type memoryAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *memoryAudit) RecordApprovalEvent(_ context.Context, _, action, _ string, _ map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return nil
}

// stubNotifier fails on demand
type stubNotifier struct {
	err   error
	calls int
}

func (n *stubNotifier) NotifyApprover(_ context.Context, _ *entity.ApprovalRequest) error {
	n.calls++
	return n.err
}

// stubConsumer fails for configured line items and counts applications
type stubConsumer struct {
	failFor map[string]bool
	applied map[string]int
}

func newStubConsumer() *stubConsumer {
	return &stubConsumer{failFor: make(map[string]bool), applied: make(map[string]int)}
}

func (c *stubConsumer) ApplyApprovedValue(_ context.Context, child *entity.ChildRequest) error {
	if c.failFor[child.LineItemID] {
		return fmt.Errorf("line item %s rejected by cart", child.LineItemID)
	}
	c.applied[child.LineItemID]++
	return nil
}

type engineFixture struct {
	engine   *Engine
	repo     *memoryRepo
	audit    *memoryAudit
	notifier *stubNotifier
	consumer *stubConsumer
	clock    *time.Time
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f := &engineFixture{
		repo:     newMemoryRepo(),
		audit:    &memoryAudit{},
		notifier: &stubNotifier{},
		consumer: newStubConsumer(),
		clock:    &now,
	}
	f.engine = NewEngine(f.repo, f.audit, f.notifier, f.consumer, metrics.NewCollector(),
		zap.NewNop(), WithClock(func() time.Time { return *f.clock }))
	return f
}

func (f *engineFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func singleSpec() CreateSpec {
	return CreateSpec{
		RequesterID:    "cashier-1",
		RequiredRole:   entity.RoleManager,
		TimeoutSeconds: 120,
		Items: []ItemSpec{
			{LineItemID: "line-1", OriginalValue: decimal.NewFromInt(100), RequestedValue: decimal.NewFromInt(80)},
		},
	}
}

func batchSpec(n int) CreateSpec {
	spec := CreateSpec{
		RequesterID:    "cashier-1",
		RequiredRole:   entity.RoleManager,
		TimeoutSeconds: 120,
	}
	for i := 0; i < n; i++ {
		spec.Items = append(spec.Items, ItemSpec{
			LineItemID:     fmt.Sprintf("line-%d", i+1),
			OriginalValue:  decimal.NewFromInt(50),
			RequestedValue: decimal.NewFromInt(40),
		})
	}
	return spec
}

func TestEngine_CreateSingle(t *testing.T) {
	f := newFixture(t)

	request, err := f.engine.Create(context.Background(), singleSpec())
	require.NoError(t, err)

	assert.Equal(t, entity.KindSingle, request.Kind)
	assert.Equal(t, workflow.StatePending.String(), request.State)
	assert.Len(t, request.Children, 1)
	assert.True(t, request.RequestedValue.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, 1, f.notifier.calls)
}

func TestEngine_CreateBatchSumsValues(t *testing.T) {
	f := newFixture(t)

	request, err := f.engine.Create(context.Background(), batchSpec(5))
	require.NoError(t, err)

	assert.Equal(t, entity.KindBatch, request.Kind)
	assert.Len(t, request.Children, 5)
	assert.True(t, request.OriginalValue.Equal(decimal.NewFromInt(250)))
	assert.True(t, request.RequestedValue.Equal(decimal.NewFromInt(200)))
}

func TestEngine_CreateNotificationFailureIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("gateway unreachable")

	request, err := f.engine.Create(context.Background(), singleSpec())
	require.ErrorIs(t, err, ErrApprovalChannel)

	stored, gerr := f.engine.Get(context.Background(), request.ID)
	require.NoError(t, gerr)
	assert.Equal(t, workflow.StateError.String(), stored.State)

	// The error state is terminal: a later approval must be rejected
	_, aerr := f.engine.Approve(context.Background(), request.ID, "mgr-1", nil)
	assert.ErrorIs(t, aerr, workflow.ErrInvalidState)
}

func TestEngine_ApproveConsumesAndCompletes(t *testing.T) {
	f := newFixture(t)
	created, err := f.engine.Create(context.Background(), singleSpec())
	require.NoError(t, err)

	request, err := f.engine.Approve(context.Background(), created.ID, "mgr-1", nil)
	require.NoError(t, err)

	assert.Equal(t, workflow.StateDone.String(), request.State)
	assert.Equal(t, "mgr-1", request.ApproverID)
	require.NotNil(t, request.Children[0].ApprovedValue)
	assert.True(t, request.Children[0].ApprovedValue.Equal(decimal.NewFromInt(80)))
	assert.True(t, request.Children[0].Consumed)
	assert.Equal(t, 1, f.consumer.applied["line-1"])
	assert.NotNil(t, request.ResolvedAt)
}

func TestEngine_ApproveWithAdjustedValues(t *testing.T) {
	f := newFixture(t)
	created, err := f.engine.Create(context.Background(), singleSpec())
	require.NoError(t, err)

	request, err := f.engine.Approve(context.Background(), created.ID, "mgr-1",
		map[string]decimal.Decimal{"line-1": decimal.NewFromInt(90)})
	require.NoError(t, err)

	assert.True(t, request.Children[0].ApprovedValue.Equal(decimal.NewFromInt(90)))
}

func TestEngine_BatchConsumptionIsPartial(t *testing.T) {
	f := newFixture(t)
	f.consumer.failFor["line-2"] = true

	created, err := f.engine.Create(context.Background(), batchSpec(3))
	require.NoError(t, err)

	request, err := f.engine.Approve(context.Background(), created.ID, "mgr-1", nil)
	require.NoError(t, err)

	// The request still reaches DONE; the failed child carries its error
	assert.Equal(t, workflow.StateDone.String(), request.State)

	byLine := map[string]entity.ChildRequest{}
	for _, child := range request.Children {
		byLine[child.LineItemID] = child
	}
	assert.True(t, byLine["line-1"].Consumed)
	assert.False(t, byLine["line-2"].Consumed)
	assert.NotEmpty(t, byLine["line-2"].ConsumeError)
	assert.True(t, byLine["line-3"].Consumed)
}

func TestEngine_DenyIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	created, err := f.engine.Create(context.Background(), batchSpec(5))
	require.NoError(t, err)

	request, err := f.engine.Deny(context.Background(), created.ID, "mgr-1",
		entity.DenyReason{Code: "margin", Note: "too deep"})
	require.NoError(t, err)

	assert.Equal(t, workflow.StateDenied.String(), request.State)
	for _, child := range request.Children {
		assert.Nil(t, child.ApprovedValue, "denied child %s kept an approved value", child.LineItemID)
		assert.False(t, child.Consumed)
	}
	assert.Empty(t, f.consumer.applied)
}

func TestEngine_DenyRequiresReasonCode(t *testing.T) {
	f := newFixture(t)
	spec := singleSpec()
	spec.RequiresReason = true

	created, err := f.engine.Create(context.Background(), spec)
	require.NoError(t, err)

	_, err = f.engine.Deny(context.Background(), created.ID, "mgr-1", entity.DenyReason{})
	assert.ErrorIs(t, err, ErrReasonRequired)

	_, err = f.engine.Deny(context.Background(), created.ID, "mgr-1", entity.DenyReason{Code: "policy"})
	assert.NoError(t, err)
}

func TestEngine_CancelOnlyByRequester(t *testing.T) {
	f := newFixture(t)
	created, err := f.engine.Create(context.Background(), singleSpec())
	require.NoError(t, err)

	_, err = f.engine.Cancel(context.Background(), created.ID, "someone-else")
	assert.ErrorIs(t, err, ErrForbidden)

	request, err := f.engine.Cancel(context.Background(), created.ID, "cashier-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateCancelled.String(), request.State)
}

func TestEngine_TimeoutComputedFromCreation(t *testing.T) {
	f := newFixture(t)
	created, err := f.engine.Create(context.Background(), singleSpec())
	require.NoError(t, err)

	f.advance(119 * time.Second)
	fired, err := f.engine.CheckTimeout(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, fired, "timed out before the countdown elapsed")

	f.advance(1 * time.Second)
	fired, err = f.engine.CheckTimeout(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, fired, "countdown fully elapsed but no timeout fired")

	stored, err := f.engine.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateTimedOut.String(), stored.State)
}

func TestEngine_ZeroTimeoutNeverExpires(t *testing.T) {
	f := newFixture(t)
	spec := singleSpec()
	spec.TimeoutSeconds = 0

	created, err := f.engine.Create(context.Background(), spec)
	require.NoError(t, err)

	f.advance(24 * time.Hour)
	fired, err := f.engine.CheckTimeout(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestEngine_ExpireDueSweepsOnlyExpired(t *testing.T) {
	f := newFixture(t)

	expiring, err := f.engine.Create(context.Background(), singleSpec())
	require.NoError(t, err)

	longSpec := singleSpec()
	longSpec.TimeoutSeconds = 3600
	surviving, err := f.engine.Create(context.Background(), longSpec)
	require.NoError(t, err)

	f.advance(5 * time.Minute)
	expired, err := f.engine.ExpireDue(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	a, _ := f.engine.Get(context.Background(), expiring.ID)
	b, _ := f.engine.Get(context.Background(), surviving.ID)
	assert.Equal(t, workflow.StateTimedOut.String(), a.State)
	assert.Equal(t, workflow.StatePending.String(), b.State)
}

func TestEngine_FirstAcceptedTransitionWins(t *testing.T) {
	f := newFixture(t)
	created, err := f.engine.Create(context.Background(), singleSpec())
	require.NoError(t, err)

	_, err = f.engine.Approve(context.Background(), created.ID, "mgr-1", nil)
	require.NoError(t, err)

	// The request resolved; a racing timeout must lose without touching state
	f.advance(10 * time.Minute)
	fired, err := f.engine.CheckTimeout(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, fired)

	_, err = f.engine.Deny(context.Background(), created.ID, "mgr-2", entity.DenyReason{Code: "late"})
	assert.ErrorIs(t, err, workflow.ErrInvalidState)

	stored, err := f.engine.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateDone.String(), stored.State)
}

func TestEngine_GetUnknownRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_AuditTrailOrder(t *testing.T) {
	f := newFixture(t)
	created, err := f.engine.Create(context.Background(), singleSpec())
	require.NoError(t, err)

	_, err = f.engine.Approve(context.Background(), created.ID, "mgr-1", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create",
		workflow.TriggerApprove.String(),
		workflow.TriggerBeginConsume.String(),
		"consumed",
		workflow.TriggerComplete.String(),
	}, f.audit.actions)
}
