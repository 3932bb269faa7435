package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"finsync/internal/store"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter writes sync activity workbooks for the operator: one sheet with
// conflicts parked for manual review, one with the recent run journal.
type Exporter struct {
	store  *store.Store
	path   string
	logger *zerolog.Logger
}

func NewExporter(st *store.Store, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{store: st, path: path, logger: logger}
}

const (
	reviewSheet = "Manual Review"
	runsSheet   = "Recent Runs"
)

// Export writes a workbook with the current manual-review backlog and the
// latest run journal entries, returning the file path.
func (e *Exporter) Export(ctx context.Context, runLimit int) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	conflicts, err := e.store.ManualReviewConflicts(ctx)
	if err != nil {
		return "", fmt.Errorf("error loading manual review conflicts: %w", err)
	}
	runs, err := e.store.RecentRuns(ctx, runLimit)
	if err != nil {
		return "", fmt.Errorf("error loading run journal: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(reviewSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(runsSheet); err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}

	e.writeConflicts(f, conflicts)
	e.writeRuns(f, runs)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("sync_report_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().
		Str("file_path", filePath).
		Int("conflicts", len(conflicts)).
		Int("runs", len(runs)).
		Msg("Sync report exported")
	return filePath, nil
}

func (e *Exporter) writeConflicts(f *excelize.File, conflicts []store.AuditEntry) {
	headers := []string{"ID", "Entity", "Type", "Local ID", "Remote ID", "Detected At"}
	e.writeHeaderRow(f, reviewSheet, headers)

	for i, c := range conflicts {
		row := i + 2
		_ = f.SetCellValue(reviewSheet, fmt.Sprintf("A%d", row), c.ID)
		_ = f.SetCellValue(reviewSheet, fmt.Sprintf("B%d", row), c.Entity)
		_ = f.SetCellValue(reviewSheet, fmt.Sprintf("C%d", row), c.Type)
		_ = f.SetCellValue(reviewSheet, fmt.Sprintf("D%d", row), c.LocalID)
		_ = f.SetCellValue(reviewSheet, fmt.Sprintf("E%d", row), c.RemoteID)
		_ = f.SetCellValue(reviewSheet, fmt.Sprintf("F%d", row), c.DetectedAt.Format("2006-01-02 15:04:05"))
	}

	_ = f.SetColWidth(reviewSheet, "A", "A", 8)
	_ = f.SetColWidth(reviewSheet, "B", "C", 18)
	_ = f.SetColWidth(reviewSheet, "D", "E", 24)
	_ = f.SetColWidth(reviewSheet, "F", "F", 20)
}

func (e *Exporter) writeRuns(f *excelize.File, runs []store.JournalEntry) {
	headers := []string{"Task", "Category", "Success", "Message", "Error", "Retries", "Ran At"}
	e.writeHeaderRow(f, runsSheet, headers)

	for i, r := range runs {
		row := i + 2
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("A%d", row), r.TaskID)
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("B%d", row), r.Category)
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("C%d", row), yesNo(r.Success))
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("D%d", row), r.Message)
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("E%d", row), r.Error)
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("F%d", row), r.RetryCount)
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("G%d", row), r.RanAt.Format("2006-01-02 15:04:05"))
	}

	_ = f.SetColWidth(runsSheet, "A", "B", 16)
	_ = f.SetColWidth(runsSheet, "C", "C", 10)
	_ = f.SetColWidth(runsSheet, "D", "E", 36)
	_ = f.SetColWidth(runsSheet, "F", "F", 10)
	_ = f.SetColWidth(runsSheet, "G", "G", 20)
}

func (e *Exporter) writeHeaderRow(f *excelize.File, sheet string, headers []string) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
		_ = f.SetCellStyle(sheet, cell, cell, style)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
