// Package cart applies approved override values back to transaction lines
package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/approval"
	"github.com/retailcore/pos-approval/internal/domain/entity"
)

// AppliedOverride is one override value applied to a line item
type AppliedOverride struct {
	LineItemID string
	Value      decimal.Decimal
}

// Consumer records approved values per line item. The POS transaction
// service reads applied overrides from here when re-pricing the cart.
type Consumer struct {
	mu      sync.RWMutex
	applied map[string]AppliedOverride
	logger  *zap.Logger
}

// NewConsumer creates a cart consumer
func NewConsumer(logger *zap.Logger) *Consumer {
	return &Consumer{
		applied: make(map[string]AppliedOverride),
		logger:  logger,
	}
}

// ApplyApprovedValue applies one child's approved value to its line item
func (c *Consumer) ApplyApprovedValue(_ context.Context, child *entity.ChildRequest) error {
	if child.ApprovedValue == nil {
		return fmt.Errorf("child %s has no approved value", child.ID)
	}

	c.mu.Lock()
	c.applied[child.LineItemID] = AppliedOverride{
		LineItemID: child.LineItemID,
		Value:      *child.ApprovedValue,
	}
	c.mu.Unlock()

	c.logger.Info("Override applied to line item",
		zap.String("line_item_id", child.LineItemID),
		zap.String("value", child.ApprovedValue.String()))

	return nil
}

// Applied returns the override applied to a line item, if any
func (c *Consumer) Applied(lineItemID string) (AppliedOverride, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	applied, ok := c.applied[lineItemID]
	return applied, ok
}

// Verify interface compliance
var _ approval.CartConsumer = (*Consumer)(nil)
