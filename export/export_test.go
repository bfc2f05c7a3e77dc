package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/use-agent/pricehist/models"
	"github.com/xuri/excelize/v2"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func day(d int) models.Date {
	return models.NewDate(time.Date(2024, time.June, d, 0, 0, 0, 0, time.UTC))
}

func sampleReport() *models.BatchReport {
	r := &models.BatchReport{}
	r.Add(&models.ExtractionResult{
		Ticker: "D05.SI",
		Input:  models.InputItem{RawValue: "D05.SI", ResolvedSymbol: "D05.SI"},
		Status: models.StatusSuccess,
		Records: []models.PriceRecord{
			{Date: day(3), Open: f64(36.8), High: f64(37.2), Low: f64(36.7), Close: f64(37), AdjClose: f64(35.82), Volume: i64(3998100), DailyReturn: f64(0.2)},
			{Date: day(4), Open: f64(37.1), High: f64(37.4), Low: f64(36.9), Close: f64(37.2), AdjClose: f64(36.01)},
		},
	})
	r.Add(&models.ExtractionResult{
		Ticker: "ZZZ.SI",
		Input:  models.InputItem{RawValue: "ZZZ.SI", ResolvedSymbol: "ZZZ.SI"},
		Status: models.StatusFailed,
		Error:  &models.ErrorDetail{Code: models.ErrCodeTableNotFound, Message: "historical data table not found"},
	})
	return r
}

func TestDefaultFilename(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 30, 5, 0, time.UTC)
	if got := DefaultFilename(FormatXLSX, now); got != "sgx_stocks_5Y_history_20240601_093005.xlsx" {
		t.Errorf("xlsx name = %q", got)
	}
	if got := DefaultFilename(FormatCSV, now); got != "sgx_stocks_5Y_history_20240601_093005" {
		t.Errorf("csv dir name = %q", got)
	}
}

func TestSheetNames(t *testing.T) {
	r := &models.BatchReport{}
	for _, tk := range []string{"D05.SI", "custom_url_1700000000_very_long", "D05.SI", "D05.SI", "A/B"} {
		r.Add(&models.ExtractionResult{Ticker: tk, Status: models.StatusSuccess})
	}

	got := SheetNames(r)
	want := map[int]string{
		0: "D05.SI_history",
		1: "custom_url_1700000000_very_long",
		2: "D05.SI_history_2",
		3: "D05.SI_history_3",
		4: "A_B_history",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sheet names mismatch (-want +got):\n%s", diff)
	}
	for _, name := range got {
		if len([]rune(name)) > maxSheetName {
			t.Errorf("sheet name %q exceeds %d characters", name, maxSheetName)
		}
	}
}

func TestSheetNames_CaseInsensitive(t *testing.T) {
	r := &models.BatchReport{}
	for _, tk := range []string{"D05.SI", "d05.si", "D05.si"} {
		r.Add(&models.ExtractionResult{Ticker: tk, Status: models.StatusSuccess})
	}

	want := map[int]string{
		0: "D05.SI_history",
		1: "d05.si_history_2",
		2: "D05.si_history_3",
	}
	if diff := cmp.Diff(want, SheetNames(r)); diff != "" {
		t.Errorf("sheet names mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	names := map[string]string{"D05.SI": "DBS Group Holdings"}

	if err := SaveWorkbook(path, sampleReport(), names); err != nil {
		t.Fatalf("SaveWorkbook: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	if diff := cmp.Diff([]string{"Summary", "D05.SI_history"}, f.GetSheetList()); diff != "" {
		t.Errorf("sheet list mismatch (-want +got):\n%s", diff)
	}

	rows, err := f.GetRows("D05.SI_history")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if diff := cmp.Diff(models.RecordColumns, rows[0]); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if v, _ := f.GetCellValue("D05.SI_history", "G2"); v != "3998100" {
		t.Errorf("volume cell = %q", v)
	}
	if v, _ := f.GetCellValue("D05.SI_history", "G3"); v != "" {
		t.Errorf("null volume should be an empty cell, got %q", v)
	}

	if v, _ := f.GetCellValue("Summary", "B2"); v != "DBS Group Holdings" {
		t.Errorf("summary name = %q", v)
	}
	if v, _ := f.GetCellValue("Summary", "G2"); v != "2024-06-04" {
		t.Errorf("summary last date = %q", v)
	}
	if v, _ := f.GetCellValue("Summary", "D3"); v != "failed" {
		t.Errorf("failed input status = %q", v)
	}
	if v, _ := f.GetCellValue("Summary", "J3"); !strings.HasPrefix(v, models.ErrCodeTableNotFound) {
		t.Errorf("failed input error = %q", v)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleReport().Results[0].Records); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "Date,Open,High,Low,Close,Adj Close,Volume,Daily Return\n" +
		"2024-06-03,36.8,37.2,36.7,37,35.82,3998100,0.2\n" +
		"2024-06-04,37.1,37.4,36.9,37.2,36.01,,\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_CSVDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "csv")
	paths, err := Save(FormatCSV, dir, sampleReport(), nil, time.Now())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "D05.SI_history.csv" {
		t.Fatalf("unexpected paths %v", paths)
	}
	if _, err := os.Stat(paths[0]); err != nil {
		t.Errorf("csv file missing: %v", err)
	}
}

func TestSave_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if _, err := Save(FormatJSON, path, sampleReport(), nil, time.Now()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got models.BatchReport
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Succeeded != 1 || len(got.Results) != 2 {
		t.Errorf("decoded report: succeeded=%d results=%d", got.Succeeded, len(got.Results))
	}
	if got.Results[0].Records[1].Volume != nil {
		t.Error("null volume should survive as null")
	}
}

func TestSave_UnsupportedFormat(t *testing.T) {
	if _, err := Save("parquet", filepath.Join(t.TempDir(), "x"), sampleReport(), nil, time.Now()); err == nil {
		t.Error("expected an error for an unsupported format")
	}
}
