package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExcelOptions configures the listings workbook
type ExcelOptions struct {
	SheetName    string
	NumberFormat string
	DateFormat   string
	FreezeHeader bool
	AutoFilter   bool
}

// DefaultExcelOptions returns the workbook layout used by /lands/export.xlsx
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Yerlar",
		NumberFormat: "#,##0.00",
		DateFormat:   "yyyy-mm-dd",
		FreezeHeader: true,
		AutoFilter:   true,
	}
}

// ExcelExporter writes listings to a single-sheet workbook
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
}

// NewExcelExporter creates an exporter backed by a fresh workbook
func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	file := excelize.NewFile()
	file.SetSheetName("Sheet1", options.SheetName)
	return &ExcelExporter{file: file, options: options}
}

// WriteListings writes the header row and one row per listing
func (e *ExcelExporter) WriteListings(listings []Listing) error {
	sheet := e.options.SheetName

	headerStyle, err := e.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"2E7D32"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	numberStyle, err := e.file.NewStyle(&excelize.Style{CustomNumFmt: &e.options.NumberFormat})
	if err != nil {
		return fmt.Errorf("failed to create number style: %w", err)
	}
	dateStyle, err := e.file.NewStyle(&excelize.Style{CustomNumFmt: &e.options.DateFormat})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	for i, col := range listingColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
		e.file.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	widths := make([]float64, len(listingColumns))
	for i, col := range listingColumns {
		widths[i] = float64(len(col)) * 1.2
	}

	for r, l := range listings {
		for c, val := range l.values() {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			switch v := val.(type) {
			case float64:
				e.file.SetCellValue(sheet, cell, v)
				e.file.SetCellStyle(sheet, cell, cell, numberStyle)
			case time.Time:
				if v.IsZero() {
					continue
				}
				e.file.SetCellValue(sheet, cell, v)
				e.file.SetCellStyle(sheet, cell, cell, dateStyle)
			default:
				if err := e.file.SetCellValue(sheet, cell, v); err != nil {
					return fmt.Errorf("failed to set cell %s: %w", cell, err)
				}
			}
			if w := float64(len(fmt.Sprintf("%v", val))) * 1.2; w > widths[c] {
				widths[c] = w
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		e.file.SetColWidth(sheet, col, col, min(max(w, 10), 50))
	}

	if e.options.FreezeHeader {
		e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	if e.options.AutoFilter && len(listings) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(listingColumns), 1)
		e.file.AutoFilter(sheet, "A1:"+last, nil)
	}
	return nil
}

// WriteTo writes the workbook to w
func (e *ExcelExporter) WriteTo(w io.Writer) error {
	return e.file.Write(w)
}

// Close releases the workbook
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}
