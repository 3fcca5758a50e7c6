package spreadsheet

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"hde_orchestrator/internal/domain"
)

// ReportSheet is the name of the single sheet in a report workbook.
const ReportSheet = "Report"

const reportColumnWidth = 18

// ReportFilename returns the default report name for a run finished at t.
func ReportFilename(t time.Time) string {
	return fmt.Sprintf("report_%s.xlsx", t.Format("20060102_1504"))
}

// BuildReport lays out rows under the report header. The caller closes the
// returned workbook.
func BuildReport(rows []domain.OutcomeRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ReportSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := writeRow(f, 1, domain.ReportColumns); err != nil {
		f.Close()
		return nil, err
	}
	for i, row := range rows {
		if err := writeRow(f, i+2, row.Values()); err != nil {
			f.Close()
			return nil, err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		lastHeader, _ := excelize.CoordinatesToCellName(len(domain.ReportColumns), 1)
		_ = f.SetCellStyle(ReportSheet, "A1", lastHeader, bold)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(domain.ReportColumns))
	_ = f.SetColWidth(ReportSheet, "A", lastCol, reportColumnWidth)

	return f, nil
}

func writeRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}

	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(ReportSheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}

// WriteReport writes the report workbook to w.
func WriteReport(w io.Writer, rows []domain.OutcomeRow) error {
	f, err := BuildReport(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// EncodeReport returns the report workbook as bytes.
func EncodeReport(rows []domain.OutcomeRow) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
