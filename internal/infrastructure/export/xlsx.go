package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/domain/entity"
)

const (
	requestsSheet = "Requests"
	historySheet  = "Approvals"
	dateLayout    = "2006-01-02 15:04"
)

var requestHeaders = []string{
	"ID", "Form", "Form Title", "Status", "Priority", "Submitter", "Submitter Email",
	"Department", "Current Approver", "Version", "Created", "Updated", "Due", "Completed", "Form Data",
}

var historyHeaders = []string{
	"Request ID", "Step", "Approver", "From", "To", "Result", "Comment", "Decided",
}

// XLSXExporter writes request listings as an Excel workbook with a request
// sheet and a sheet of every approval step
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates an xlsx exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) FileExtension() string {
	return ".xlsx"
}

// Export renders requests into w
func (e *XLSXExporter) Export(w io.Writer, requests []*entity.Request) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), requestsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(historySheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	if err := e.writeHeader(f, requestsSheet, requestHeaders); err != nil {
		return err
	}
	if err := e.writeHeader(f, historySheet, historyHeaders); err != nil {
		return err
	}

	historyRow := 2
	for i, req := range requests {
		if err := e.writeRequest(f, i+2, req); err != nil {
			return err
		}
		for j, step := range req.ApprovalChain {
			row := []interface{}{
				req.ID, j + 1, approverLabel(step.ApproverName, step.ApproverID),
				step.FromStatus, step.ToStatus, step.Status, step.Comment, formatDate(&step.DecidedAt),
			}
			if err := setRow(f, historySheet, historyRow, row); err != nil {
				return err
			}
			historyRow++
		}
	}

	if err := f.SetPanes(requestsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		e.logger.Warn("Failed to freeze header row", zap.Error(err))
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Requests exported",
		zap.Int("requests", len(requests)),
		zap.Int("approval_steps", historyRow-2))
	return nil
}

func (e *XLSXExporter) writeHeader(f *excelize.File, sheet string, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := setRow(f, sheet, 1, row); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		e.logger.Warn("Failed to style header", zap.String("sheet", sheet), zap.Error(err))
	}
	return nil
}

func (e *XLSXExporter) writeRequest(f *excelize.File, rowNum int, req *entity.Request) error {
	approver := ""
	if req.CurrentApprover != nil {
		approver = approverLabel(req.CurrentApprover.Name, req.CurrentApprover.ID)
	}

	return setRow(f, requestsSheet, rowNum, []interface{}{
		req.ID,
		req.FormID,
		req.FormTitle,
		req.Status,
		req.Priority,
		req.SubmitterName,
		req.SubmitterEmail,
		req.Department,
		approver,
		req.Version,
		formatDate(&req.CreatedAt),
		formatDate(&req.UpdatedAt),
		formatDate(req.DueDate),
		formatDate(req.CompletedAt),
		flattenFormData(req.FormData),
	})
}

func setRow(f *excelize.File, sheet string, rowNum int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", rowNum, sheet, err)
	}
	return nil
}

func approverLabel(name, id string) string {
	if name == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// flattenFormData renders form data as compact JSON; map keys come out sorted
func flattenFormData(data entity.FormData) string {
	if len(data) == 0 {
		return ""
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(b)
}

var _ port.RequestExporter = (*XLSXExporter)(nil)
