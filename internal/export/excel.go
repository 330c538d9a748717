// Package export renders reports as Excel workbooks and invoices as PDF.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/parse"
)

// ReportSheet is the worksheet name of an exported report.
const ReportSheet = "Report"

var reportHeaders = []string{"Date", "Kind", "Reference", "Plate number", "Vehicle type", "Tank", "Quantity (L)"}

// ReportWorkbook builds a workbook with one row per report line followed by
// consumption and receiving totals.
func ReportWorkbook(r backend.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ReportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	title := fmt.Sprintf("Diesel report %s to %s", r.From, r.To)
	if err := f.SetCellValue(ReportSheet, "A1", title); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(ReportSheet, "A3", &reportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	if err := f.SetCellStyle(ReportSheet, "A1", "A1", bold); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(ReportSheet, "A3", "G3", bold); err != nil {
		return nil, err
	}

	row := 4
	for _, line := range r.Rows {
		values := []interface{}{
			line.Date.Format(parse.DateLayout),
			line.Kind,
			line.Reference,
			line.PlateNumber,
			line.VehicleType,
			line.TankName,
			line.Quantity,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(ReportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		row++
	}

	row++
	totals := [][]interface{}{
		{"Total consumed", r.TotalConsumed},
		{"Total received", r.TotalReceived},
	}
	for _, t := range totals {
		label, _ := excelize.CoordinatesToCellName(6, row)
		value, _ := excelize.CoordinatesToCellName(7, row)
		if err := f.SetCellValue(ReportSheet, label, t[0]); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(ReportSheet, value, t[1]); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(ReportSheet, label, label, bold); err != nil {
			return nil, err
		}
		row++
	}

	if err := f.SetColWidth(ReportSheet, "A", "G", 16); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteReport streams the report workbook to w.
func WriteReport(w io.Writer, r backend.Report) error {
	f, err := ReportWorkbook(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
