// Package report builds back-office exports of resolved override requests
package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/approval"
)

const sheetName = "Overrides"

var columns = []string{
	"Request ID", "Kind", "State", "Required Role", "Degraded",
	"Requester", "Approver", "Requested Value", "Original Value",
	"Deny Code", "Line Items", "Created At", "Resolved At",
}

// Exporter renders resolved requests into an XLSX workbook
type Exporter struct {
	requests approval.RequestRepository
	logger   *zap.Logger
}

// NewExporter creates a report exporter
func NewExporter(requests approval.RequestRepository, logger *zap.Logger) *Exporter {
	return &Exporter{requests: requests, logger: logger}
}

// Export builds a workbook covering requests resolved in [from, to)
func (e *Exporter) Export(ctx context.Context, from, to time.Time) ([]byte, error) {
	requests, err := e.requests.ListResolvedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load resolved requests: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	for i, title := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		e.setCell(f, cell, title)
	}

	for row, request := range requests {
		approver := request.ApproverID
		denyCode := ""
		if request.DenyReason != nil {
			denyCode = request.DenyReason.Code
		}
		resolved := ""
		if request.ResolvedAt != nil {
			resolved = request.ResolvedAt.Format(time.RFC3339)
		}

		values := []interface{}{
			request.ID,
			string(request.Kind),
			request.State,
			request.RequiredRole.String(),
			request.Degraded,
			request.RequesterID,
			approver,
			request.RequestedValue.String(),
			request.OriginalValue.String(),
			denyCode,
			len(request.Children),
			request.CreatedAt.Format(time.RFC3339),
			resolved,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			e.setCell(f, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	e.logger.Info("Override report exported",
		zap.Int("requests", len(requests)),
		zap.Time("from", from),
		zap.Time("to", to))

	return buf.Bytes(), nil
}

func (e *Exporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
