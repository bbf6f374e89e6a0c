// Package export writes report spreadsheets and packs them for download.
package export

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/application/port"
)

const sheetName = "Report"

// ExcelWriter implements port.SpreadsheetWriter with excelize.
type ExcelWriter struct {
	logger *zap.Logger
}

// NewExcelWriter creates a new Excel writer
func NewExcelWriter(logger *zap.Logger) *ExcelWriter {
	return &ExcelWriter{logger: logger}
}

// WriteSpreadsheet renders sheet to dir/<title>.xlsx with a bold, frozen heading row.
func (w *ExcelWriter) WriteSpreadsheet(ctx context.Context, dir string, sheet port.Sheet) (string, error) {
	if len(sheet.Headings) == 0 {
		return "", fmt.Errorf("sheet has no headings")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}

	headings := make([]interface{}, len(sheet.Headings))
	for i, h := range sheet.Headings {
		headings[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &headings); err != nil {
		return "", fmt.Errorf("failed to write headings: %w", err)
	}

	for i, row := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		values := row
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return "", fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := w.styleHeadings(f, len(sheet.Headings)); err != nil {
		return "", err
	}
	for idx, width := range sheet.ColumnWidths {
		col, err := excelize.ColumnNumberToName(idx + 1)
		if err != nil {
			continue
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			w.logger.Warn("Failed to set column width", zap.String("column", col), zap.Error(err))
		}
	}

	path := filepath.Join(dir, sheet.Title+".xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save spreadsheet: %w", err)
	}

	w.logger.Info("Spreadsheet written",
		zap.String("path", path),
		zap.Int("rows", len(sheet.Rows)))
	return path, nil
}

func (w *ExcelWriter) styleHeadings(f *excelize.File, columns int) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create heading style: %w", err)
	}

	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style headings: %w", err)
	}

	return f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

var _ port.SpreadsheetWriter = (*ExcelWriter)(nil)
