package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/pricehist/config"
	"github.com/use-agent/pricehist/models"
)

func TestWriteReport_FatalBatchWritesNothing(t *testing.T) {
	dir := t.TempDir()
	report := &models.BatchReport{}
	report.Add(&models.ExtractionResult{
		Input:  models.InputItem{RawValue: "BAD.SI"},
		Ticker: "BAD.SI",
		Status: models.StatusFailed,
		Error:  models.NewScrapeError(models.ErrCodeEmptyResult, "no rows", nil).ToDetail(),
	})

	out := config.OutputConfig{Format: "json", Path: filepath.Join(dir, "out.json")}
	paths, err := writeReport(out, report, nil, time.Now())
	if !errors.Is(err, errNoRecords) {
		t.Fatalf("err = %v, want errNoRecords", err)
	}
	if len(paths) != 0 {
		t.Errorf("no paths expected, got %v", paths)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("fatal batch should not create files, found %d", len(entries))
	}
}

func TestWriteReport_Success(t *testing.T) {
	report := &models.BatchReport{}
	report.Add(&models.ExtractionResult{
		Input:   models.InputItem{RawValue: "D05.SI"},
		Ticker:  "D05.SI",
		Status:  models.StatusSuccess,
		Records: []models.PriceRecord{{Date: models.NewDate(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))}},
	})

	path := filepath.Join(t.TempDir(), "out.json")
	paths, err := writeReport(config.OutputConfig{Format: "json", Path: path}, report, nil, time.Now())
	if err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	if len(paths) != 1 || paths[0] != path {
		t.Errorf("paths = %v, want [%s]", paths, path)
	}
}
