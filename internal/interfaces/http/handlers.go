package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/approval"
	"github.com/retailcore/pos-approval/internal/domain/entity"
	"github.com/retailcore/pos-approval/internal/domain/workflow"
	"github.com/retailcore/pos-approval/internal/policy"
	"github.com/retailcore/pos-approval/internal/report"
	"github.com/retailcore/pos-approval/internal/repository"
	"github.com/retailcore/pos-approval/internal/store"
	"github.com/retailcore/pos-approval/internal/tiers"
	"github.com/retailcore/pos-approval/pkg/metrics"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	decider     *policy.Decider
	engine      *approval.Engine
	configStore *store.Store
	audit       *repository.AuditRepository
	exporter    *report.Exporter
	collector   *metrics.Collector
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	decider *policy.Decider,
	engine *approval.Engine,
	configStore *store.Store,
	audit *repository.AuditRepository,
	exporter *report.Exporter,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		decider:     decider,
		engine:      engine,
		configStore: configStore,
		audit:       audit,
		exporter:    exporter,
		collector:   collector,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// EvaluateAttemptRequest carries one override attempt for evaluation
type EvaluateAttemptRequest struct {
	Type       string          `json:"type" binding:"required"`
	Value      decimal.Decimal `json:"value"`
	CategoryID *string         `json:"category_id"`
	Channel    string          `json:"channel"`
	ActorRole  string          `json:"actor_role" binding:"required"`
}

// CreateRequestBody opens an approval request for an already evaluated attempt
type CreateRequestBody struct {
	RequesterID    string           `json:"requester_id" binding:"required"`
	RuleID         int64            `json:"rule_id"`
	RequiredRole   string           `json:"required_role" binding:"required"`
	Degraded       bool             `json:"degraded"`
	TimeoutSeconds int              `json:"timeout_seconds"`
	RequiresReason bool             `json:"requires_reason_code"`
	Items          []CreateItemBody `json:"items" binding:"required,min=1"`
}

// CreateItemBody is one line item in a request
type CreateItemBody struct {
	LineItemID     string          `json:"line_item_id" binding:"required"`
	OriginalValue  decimal.Decimal `json:"original_value"`
	RequestedValue decimal.Decimal `json:"requested_value"`
}

// ApproveRequestBody records the approver's response. ApprovedValues may
// adjust individual line items; absent entries keep the requested value.
type ApproveRequestBody struct {
	ApproverID     string                     `json:"approver_id" binding:"required"`
	ApprovedValues map[string]decimal.Decimal `json:"approved_values"`
}

// DenyRequestBody records a denial
type DenyRequestBody struct {
	ApproverID string `json:"approver_id" binding:"required"`
	ReasonCode string `json:"reason_code"`
	Note       string `json:"note"`
}

// CancelRequestBody records a requester-initiated cancellation
type CancelRequestBody struct {
	RequesterID string `json:"requester_id" binding:"required"`
}

// TierSpec is one tier in a replacement set
type TierSpec struct {
	Ordinal            int              `json:"ordinal"`
	Name               string           `json:"name"`
	MinDiscountPercent decimal.Decimal  `json:"min_discount_percent"`
	MaxDiscountPercent decimal.Decimal  `json:"max_discount_percent"`
	MinMarginPercent   *decimal.Decimal `json:"min_margin_percent"`
	AllowsBelowCost    bool             `json:"allows_below_cost"`
	RequiredRole       string           `json:"required_role"`
	TimeoutSeconds     int              `json:"timeout_seconds"`
	RequiresReasonCode bool             `json:"requires_reason_code"`
}

// ReplaceTiersRequest replaces the whole tier configuration
type ReplaceTiersRequest struct {
	Tiers []TierSpec `json:"tiers" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// EvaluateAttempt handles POST /api/v1/attempts/evaluate
func (h *Handlers) EvaluateAttempt(c *gin.Context) {
	var req EvaluateAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	actorRole := entity.Role(req.ActorRole)
	if !actorRole.IsValid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown actor role"})
		return
	}

	attempt := entity.OverrideAttempt{
		Type:       entity.ThresholdType(req.Type),
		Value:      req.Value,
		CategoryID: req.CategoryID,
		Channel:    req.Channel,
		Timestamp:  time.Now(),
	}

	start := time.Now()
	decision, err := h.decider.Decide(attempt, actorRole)
	h.collector.RecordDecision(time.Since(start), decision.RequiresApproval)

	if err != nil {
		if errors.Is(err, policy.ErrConfiguration) {
			// Fail closed: the degraded decision still goes out
			h.logger.Warn("Degraded decision served", zap.Error(err))
			c.JSON(http.StatusOK, Response{Success: true, Data: decision})
			return
		}
		h.logger.Error("Decision failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "decision failed"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: decision})
}

// CreateRequest handles POST /api/v1/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	role := entity.Role(body.RequiredRole)
	if !role.IsValid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown required role"})
		return
	}

	spec := approval.CreateSpec{
		RequesterID:    body.RequesterID,
		RuleID:         body.RuleID,
		RequiredRole:   role,
		Degraded:       body.Degraded,
		TimeoutSeconds: body.TimeoutSeconds,
		RequiresReason: body.RequiresReason,
	}
	for _, item := range body.Items {
		spec.Items = append(spec.Items, approval.ItemSpec{
			LineItemID:     item.LineItemID,
			OriginalValue:  item.OriginalValue,
			RequestedValue: item.RequestedValue,
		})
	}

	request, err := h.engine.Create(c.Request.Context(), spec)
	if err != nil {
		if errors.Is(err, approval.ErrApprovalChannel) {
			c.JSON(http.StatusBadGateway, Response{Success: false, Error: "approval channel unavailable"})
			return
		}
		h.logger.Error("Failed to create request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to create request"})
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: request})
}

// RequestView augments a request with its advisory countdown. The countdown
// is display only; expiry is decided server side from CreatedAt.
type RequestView struct {
	*entity.ApprovalRequest
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// GetRequest handles GET /api/v1/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	request, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	view := RequestView{ApprovalRequest: request}
	if request.State == workflow.StatePending.String() {
		view.RemainingSeconds = request.Remaining(time.Now()).Seconds()
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// ListRequestEvents handles GET /api/v1/requests/:id/events
func (h *Handlers) ListRequestEvents(c *gin.Context) {
	events, err := h.audit.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to list events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to list events"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: events})
}

// ApproveRequest handles POST /api/v1/requests/:id/approve
func (h *Handlers) ApproveRequest(c *gin.Context) {
	var body ApproveRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	request, err := h.engine.Approve(c.Request.Context(), c.Param("id"), body.ApproverID, body.ApprovedValues)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: request})
}

// DenyRequest handles POST /api/v1/requests/:id/deny
func (h *Handlers) DenyRequest(c *gin.Context) {
	var body DenyRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	reason := entity.DenyReason{Code: body.ReasonCode, Note: body.Note}
	request, err := h.engine.Deny(c.Request.Context(), c.Param("id"), body.ApproverID, reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: request})
}

// CancelRequest handles POST /api/v1/requests/:id/cancel
func (h *Handlers) CancelRequest(c *gin.Context) {
	var body CancelRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	request, err := h.engine.Cancel(c.Request.Context(), c.Param("id"), body.RequesterID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: request})
}

// ListTiers handles GET /api/v1/admin/tiers
func (h *Handlers) ListTiers(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: h.configStore.Tiers()})
}

// ReplaceTiers handles PUT /api/v1/admin/tiers. The whole candidate set is
// validated first; a rejected set leaves the active one untouched.
func (h *Handlers) ReplaceTiers(c *gin.Context) {
	var req ReplaceTiersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	candidate := make([]entity.Tier, 0, len(req.Tiers))
	for _, spec := range req.Tiers {
		candidate = append(candidate, entity.Tier{
			Ordinal:            spec.Ordinal,
			Name:               spec.Name,
			MinDiscountPercent: spec.MinDiscountPercent,
			MaxDiscountPercent: spec.MaxDiscountPercent,
			MinMarginPercent:   spec.MinMarginPercent,
			AllowsBelowCost:    spec.AllowsBelowCost,
			RequiredRole:       entity.Role(spec.RequiredRole),
			TimeoutSeconds:     spec.TimeoutSeconds,
			RequiresReasonCode: spec.RequiresReasonCode,
		})
	}

	findings, err := h.configStore.ReplaceTiers(c.Request.Context(), candidate)
	if err != nil {
		h.logger.Error("Failed to replace tiers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to replace tiers"})
		return
	}
	if tiers.HasErrors(findings) {
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Data:    findings,
			Error:   "tier set rejected",
		})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: findings})
}

// ListRules handles GET /api/v1/admin/rules
func (h *Handlers) ListRules(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: h.configStore.Rules()})
}

// SaveRule handles POST /api/v1/admin/rules and PUT /api/v1/admin/rules/:id
func (h *Handlers) SaveRule(c *gin.Context) {
	var rule entity.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	if raw := c.Param("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid rule id"})
			return
		}
		rule.ID = id
	}
	if !rule.Type.IsValid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown threshold type"})
		return
	}
	for _, level := range rule.Levels {
		if !level.Role.IsValid() {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown role in levels"})
			return
		}
	}

	if err := h.configStore.SaveRule(c.Request.Context(), &rule); err != nil {
		h.logger.Error("Failed to save rule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to save rule"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: rule})
}

// DeleteRule handles DELETE /api/v1/admin/rules/:id
func (h *Handlers) DeleteRule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid rule id"})
		return
	}

	if err := h.configStore.DeleteRule(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to delete rule", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to delete rule"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// ExportOverrides handles GET /api/v1/admin/reports/overrides. Accepts either
// a single date (whole day, UTC) or an explicit from/to range.
func (h *Handlers) ExportOverrides(c *gin.Context) {
	var from, to time.Time
	if date := c.Query("date"); date != "" {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid date"})
			return
		}
		from, to = day, day.Add(24*time.Hour)
	} else {
		var err error
		from, err = parseTimeParam(c.Query("from"))
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid from timestamp"})
			return
		}
		to, err = parseTimeParam(c.Query("to"))
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid to timestamp"})
			return
		}
	}

	workbook, err := h.exporter.Export(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Error("Failed to export report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to export report"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="overrides.xlsx"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		workbook)
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, approval.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "request not found"})
	case errors.Is(err, approval.ErrForbidden):
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "not allowed"})
	case errors.Is(err, approval.ErrReasonRequired):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "reason code required"})
	case errors.Is(err, workflow.ErrInvalidState):
		c.JSON(http.StatusConflict, Response{Success: false, Error: "request already resolved"})
	default:
		h.logger.Error("Request operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

func parseTimeParam(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}
