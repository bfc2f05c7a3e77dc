package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/use-agent/pricehist/models"
)

// SaveCSV writes one {sheet name}.csv file per successful result into dir
// and returns the paths written.
func SaveCSV(dir string, report *models.BatchReport) ([]string, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	sheets := SheetNames(report)
	var paths []string
	for i, r := range report.Results {
		name, ok := sheets[i]
		if !ok {
			continue
		}
		path := filepath.Join(dir, name+".csv")
		if err := writeCSVFile(path, r.Records); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSVFile(path string, records []models.PriceRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes records with a header row. Null fields are empty cells.
func WriteCSV(w io.Writer, records []models.PriceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.RecordColumns); err != nil {
		return err
	}

	row := make([]string, len(models.RecordColumns))
	for _, rec := range records {
		for i, v := range rec.Values() {
			row[i] = formatValue(v)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return ""
}

// WriteJSON writes the whole report as indented JSON.
func WriteJSON(w io.Writer, report *models.BatchReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
