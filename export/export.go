// Package export writes batch reports as an xlsx workbook, per-ticker CSV
// files or a JSON document.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/use-agent/pricehist/models"
)

// Supported output formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// filePrefix names every generated output.
const filePrefix = "sgx_stocks_5Y_history_"

// maxSheetName is the spreadsheet limit on sheet-name length.
const maxSheetName = 31

// DefaultFilename returns the timestamped output name for format. CSV output
// is a directory and carries no extension.
func DefaultFilename(format string, now time.Time) string {
	name := filePrefix + now.Format("20060102_150405")
	if format == FormatCSV {
		return name
	}
	return name + "." + format
}

// Save writes report in format to path (a timestamped name when empty) and
// returns the files written.
func Save(format, path string, report *models.BatchReport, names map[string]string, now time.Time) ([]string, error) {
	format = strings.ToLower(format)
	if path == "" {
		path = DefaultFilename(format, now)
	}

	switch format {
	case FormatXLSX:
		if err := SaveWorkbook(path, report, names); err != nil {
			return nil, err
		}
		return []string{path}, nil

	case FormatCSV:
		return SaveCSV(path, report)

	case FormatJSON:
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		if err := WriteJSON(f, report); err != nil {
			f.Close()
			return nil, err
		}
		return []string{path}, f.Close()
	}
	return nil, fmt.Errorf("export: unsupported format %q", format)
}

// SheetNames assigns each successful result a unique sheet-safe base name
// in input order, keyed by result index. Excel compares sheet names
// case-insensitively, so uniqueness is checked the same way.
func SheetNames(report *models.BatchReport) map[int]string {
	names := make(map[int]string, report.Succeeded)
	used := make(map[string]int, report.Succeeded)
	taken := make(map[string]bool, report.Succeeded)
	for i, r := range report.Results {
		if !r.OK() {
			continue
		}
		base := sheetName(r.Ticker + "_history")
		key := strings.ToLower(base)
		name := base
		for n := used[key]; taken[strings.ToLower(name)]; n++ {
			suffix := fmt.Sprintf("_%d", n+1)
			name = truncate(base, maxSheetName-len(suffix)) + suffix
		}
		used[key]++
		taken[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

var sheetReplacer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

func sheetName(s string) string {
	return truncate(sheetReplacer.Replace(s), maxSheetName)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ensureDir creates dir when missing.
func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(filepath.Clean(dir), 0o755)
}
