package export

import (
	"io"
	"path/filepath"

	"github.com/use-agent/pricehist/models"
	"github.com/xuri/excelize/v2"
)

const summarySheet = "Summary"

var summaryColumns = []string{
	"Ticker", "Name", "Input", "Status", "Records",
	"First Date", "Last Date", "Last Close", "Degraded", "Error",
}

// SaveWorkbook writes the workbook to path.
func SaveWorkbook(path string, report *models.BatchReport, names map[string]string) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := buildWorkbook(report, names)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// WriteWorkbook writes the workbook to w.
func WriteWorkbook(w io.Writer, report *models.BatchReport, names map[string]string) error {
	f, err := buildWorkbook(report, names)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// buildWorkbook lays out a Summary sheet followed by one history sheet per
// successful result.
func buildWorkbook(report *models.BatchReport, names map[string]string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		f.Close()
		return nil, err
	}

	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr("yyyy-mm-dd")})
	if err != nil {
		f.Close()
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeSummary(f, report, names, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	sheets := SheetNames(report)
	for i, r := range report.Results {
		name, ok := sheets[i]
		if !ok {
			continue
		}
		if err := writeHistorySheet(f, name, r.Records, headerStyle, dateStyle); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeSummary(f *excelize.File, report *models.BatchReport, names map[string]string, headerStyle int) error {
	if err := setRow(f, summarySheet, 1, toRow(summaryColumns)); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", cell(len(summaryColumns), 1), headerStyle); err != nil {
		return err
	}

	for i, r := range report.Results {
		row := []interface{}{
			r.Ticker, names[r.Ticker], r.Input.RawValue, string(r.Status), len(r.Records),
			nil, nil, nil, r.Degraded, nil,
		}
		if r.OK() {
			row[5] = r.FirstDate().String()
			row[6] = r.LastDate().String()
			if last := r.Records[len(r.Records)-1]; last.Close != nil {
				row[7] = *last.Close
			}
		}
		if r.Error != nil {
			row[9] = r.Error.Code + ": " + r.Error.Message
		}
		if err := setRow(f, summarySheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "C", 18)
}

func writeHistorySheet(f *excelize.File, name string, records []models.PriceRecord, headerStyle, dateStyle int) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	if err := setRow(f, name, 1, toRow(models.RecordColumns)); err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", cell(len(models.RecordColumns), 1), headerStyle); err != nil {
		return err
	}

	for i, rec := range records {
		row := rec.Values()
		row[0] = rec.Date.Time
		if err := setRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	if len(records) > 0 {
		if err := f.SetCellStyle(name, "A2", cell(1, len(records)+1), dateStyle); err != nil {
			return err
		}
	}
	return f.SetColWidth(name, "A", "A", 12)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	return f.SetSheetRow(sheet, cell(1, row), &values)
}

// cell converts 1-based coordinates to an A1 reference.
func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func toRow(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func strPtr(s string) *string { return &s }
