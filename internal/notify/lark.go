// Package notify delivers approval prompts to approver devices and channels
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/approval"
	"github.com/retailcore/pos-approval/internal/domain/entity"
)

// Config holds Lark notifier configuration
type Config struct {
	AppID     string
	AppSecret string
	// ChatID is the store managers group that receives approval prompts
	ChatID string
}

// LarkNotifier pushes approval prompts to a Lark group chat
type LarkNotifier struct {
	client *lark.Client
	chatID string
	logger *zap.Logger
}

// NewLarkNotifier creates a Lark-backed notifier
func NewLarkNotifier(cfg Config, logger *zap.Logger) *LarkNotifier {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	return &LarkNotifier{
		client: client,
		chatID: cfg.ChatID,
		logger: logger,
	}
}

// NotifyApprover sends the pending request summary to the approver channel.
// A failed send is reported to the caller; the caller decides whether the
// request survives.
func (n *LarkNotifier) NotifyApprover(ctx context.Context, request *entity.ApprovalRequest) error {
	content, err := buildPromptContent(request)
	if err != nil {
		return fmt.Errorf("build approval prompt: %w", err)
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(n.chatID).
			MsgType("post").
			Content(content).
			Build()).
		Build()

	resp, err := n.client.Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send approval prompt",
			zap.String("request_id", request.ID),
			zap.Error(err))
		return fmt.Errorf("failed to send approval prompt: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("request_id", request.ID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	n.logger.Info("Approval prompt sent",
		zap.String("request_id", request.ID),
		zap.String("required_role", request.RequiredRole.String()))

	return nil
}

func buildPromptContent(request *entity.ApprovalRequest) (string, error) {
	title := fmt.Sprintf("Override approval needed (%s)", request.RequiredRole)
	if request.Degraded {
		title += " [escalated]"
	}

	lines := [][]map[string]string{
		{{"tag": "text", "text": fmt.Sprintf("Request %s from %s", request.ID, request.RequesterID)}},
		{{"tag": "text", "text": fmt.Sprintf("Requested value: %s (original %s)",
			request.RequestedValue.String(), request.OriginalValue.String())}},
	}
	if len(request.Children) > 1 {
		lines = append(lines, []map[string]string{
			{"tag": "text", "text": fmt.Sprintf("Batch of %d line items", len(request.Children))},
		})
	}
	if request.TimeoutSeconds > 0 {
		lines = append(lines, []map[string]string{
			{"tag": "text", "text": fmt.Sprintf("Expires in %ds", request.TimeoutSeconds)},
		})
	}

	post := map[string]interface{}{
		"zh_cn": map[string]interface{}{
			"title":   title,
			"content": lines,
		},
	}

	encoded, err := json.Marshal(post)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Verify interface compliance
var _ approval.Notifier = (*LarkNotifier)(nil)
