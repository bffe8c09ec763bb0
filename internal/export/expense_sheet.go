package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Sheet names and layout of the exported workbook
const (
	ExpensesSheet    = "Expenses"
	AttachmentsSheet = "Attachments"

	headerRow      = 7
	firstLineRow   = 8
	amountNumFmt   = 2 // 0.00
	noteNotNumber  = "amount is not numeric"
	noteIncomplete = "incomplete row"
)

// SheetData is the session state rendered into a workbook
type SheetData struct {
	WorkItem     *entity.WorkItem
	SubmissionID string
	LiaisonID    string
	Notes        string
	Expenses     []entity.Expense
	Attachments  []entity.Attachment
	GeneratedAt  time.Time
}

// ExpenseSheetWriter renders a session's ledger as an .xlsx workbook
type ExpenseSheetWriter struct {
	logger *zap.Logger
}

// NewExpenseSheetWriter creates a new ExpenseSheetWriter
func NewExpenseSheetWriter(logger *zap.Logger) *ExpenseSheetWriter {
	return &ExpenseSheetWriter{logger: logger}
}

// Write renders data and streams the workbook to w. It returns the total of
// all numeric amounts.
func (sw *ExpenseSheetWriter) Write(w io.Writer, data SheetData) (decimal.Decimal, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExpensesSheet); err != nil {
		return decimal.Zero, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(AttachmentsSheet); err != nil {
		return decimal.Zero, fmt.Errorf("failed to create attachments sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create header style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: amountNumFmt})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create amount style: %w", err)
	}

	sw.writeSummary(f, data, bold)
	total := sw.writeExpenses(f, data.Expenses, bold, money)
	sw.writeAttachments(f, data.Attachments, bold)

	sw.setColWidth(f, ExpensesSheet, "A", 40)
	sw.setColWidth(f, ExpensesSheet, "B", 16)
	sw.setColWidth(f, ExpensesSheet, "C", 28)
	sw.setColWidth(f, AttachmentsSheet, "A", 40)
	sw.setColWidth(f, AttachmentsSheet, "B", 18)

	if err := f.Write(w); err != nil {
		return decimal.Zero, fmt.Errorf("failed to write workbook: %w", err)
	}
	return total, nil
}

func (sw *ExpenseSheetWriter) writeSummary(f *excelize.File, data SheetData, bold int) {
	submission := data.SubmissionID
	if submission == "" {
		submission = "new"
	}
	generated := data.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	var workItemID, description, service, status string
	if data.WorkItem != nil {
		workItemID = data.WorkItem.ID
		description = data.WorkItem.Description
		service = data.WorkItem.ServiceLabel
		status = string(data.WorkItem.Status)
	}

	summary := [][2]string{
		{"Work item", workItemID},
		{"Description", description},
		{"Service", service},
		{"Status", status},
		{"Submission", submission},
		{"Generated", generated.Format(time.RFC3339)},
	}
	for i, pair := range summary {
		row := i + 1
		sw.setCell(f, ExpensesSheet, "A", row, pair[0])
		sw.setCell(f, ExpensesSheet, "B", row, pair[1])
	}
	sw.setStyle(f, ExpensesSheet, "A1", fmt.Sprintf("A%d", len(summary)), bold)

	if data.Notes != "" {
		sw.setCell(f, ExpensesSheet, "D", 1, "Notes")
		sw.setCell(f, ExpensesSheet, "D", 2, data.Notes)
		sw.setStyle(f, ExpensesSheet, "D1", "D1", bold)
	}
}

func (sw *ExpenseSheetWriter) writeExpenses(f *excelize.File, rows []entity.Expense, bold, money int) decimal.Decimal {
	sw.setCell(f, ExpensesSheet, "A", headerRow, "Description")
	sw.setCell(f, ExpensesSheet, "B", headerRow, "Amount")
	sw.setCell(f, ExpensesSheet, "C", headerRow, "Remark")
	sw.setStyle(f, ExpensesSheet, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("C%d", headerRow), bold)

	total := decimal.Zero
	row := firstLineRow
	for _, expense := range rows {
		if expense.IsBlank() {
			continue
		}

		sw.setCell(f, ExpensesSheet, "A", row, strings.TrimSpace(expense.Description))
		amount, err := entity.ParseAmount(expense.Amount)
		switch {
		case expense.IsPartial():
			sw.setCell(f, ExpensesSheet, "B", row, expense.Amount)
			sw.setCell(f, ExpensesSheet, "C", row, noteIncomplete)
		case err != nil:
			sw.setCell(f, ExpensesSheet, "B", row, expense.Amount)
			sw.setCell(f, ExpensesSheet, "C", row, noteNotNumber)
		default:
			sw.setCell(f, ExpensesSheet, "B", row, amount.InexactFloat64())
			cell := fmt.Sprintf("B%d", row)
			sw.setStyle(f, ExpensesSheet, cell, cell, money)
			total = total.Add(amount)
		}
		row++
	}

	sw.setCell(f, ExpensesSheet, "A", row, "Total")
	sw.setCell(f, ExpensesSheet, "B", row, total.InexactFloat64())
	sw.setStyle(f, ExpensesSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), bold)
	totalCell := fmt.Sprintf("B%d", row)
	sw.setStyle(f, ExpensesSheet, totalCell, totalCell, money)

	return total
}

func (sw *ExpenseSheetWriter) writeAttachments(f *excelize.File, attachments []entity.Attachment, bold int) {
	sw.setCell(f, AttachmentsSheet, "A", 1, "Name")
	sw.setCell(f, AttachmentsSheet, "B", 1, "Kind")
	sw.setCell(f, AttachmentsSheet, "C", 1, "Portal ID")
	sw.setStyle(f, AttachmentsSheet, "A1", "C1", bold)

	for i, att := range attachments {
		row := i + 2
		sw.setCell(f, AttachmentsSheet, "A", row, att.Name())
		sw.setCell(f, AttachmentsSheet, "B", row, string(att.Kind()))
		if remote, ok := att.(*entity.RemoteAttachment); ok {
			sw.setCell(f, AttachmentsSheet, "C", row, remote.ServerID)
		}
	}
}

// setCell sets a cell value, logging rather than failing the export
func (sw *ExpenseSheetWriter) setCell(f *excelize.File, sheet, col string, row int, value interface{}) {
	cell := fmt.Sprintf("%s%d", col, row)
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		sw.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func (sw *ExpenseSheetWriter) setStyle(f *excelize.File, sheet, from, to string, style int) {
	if err := f.SetCellStyle(sheet, from, to, style); err != nil {
		sw.logger.Warn("Failed to set cell style",
			zap.String("sheet", sheet),
			zap.String("range", from+":"+to),
			zap.Error(err))
	}
}

func (sw *ExpenseSheetWriter) setColWidth(f *excelize.File, sheet, col string, width float64) {
	if err := f.SetColWidth(sheet, col, col, width); err != nil {
		sw.logger.Warn("Failed to set column width",
			zap.String("sheet", sheet),
			zap.String("col", col),
			zap.Error(err))
	}
}
