package history

import (
	"log/slog"
	"slices"

	"github.com/use-agent/pricehist/models"
)

// Normalized is the outcome of normalizing one table's rows.
type Normalized struct {
	// Records are sorted ascending by date with unique dates.
	Records []models.PriceRecord

	// Dropped counts rows whose date did not parse.
	Dropped int

	// Duplicates counts rows discarded because an earlier rendered row
	// carried the same date.
	Duplicates int
}

// Normalizer converts raw rows to price records.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer returns a Normalizer logging to logger (slog.Default when nil).
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize coerces every row, drops rows without a parseable date, keeps
// the first rendered row per date and sorts the result ascending.
func (n *Normalizer) Normalize(rows []RawRow) Normalized {
	var out Normalized
	seen := make(map[models.Date]struct{}, len(rows))
	records := make([]models.PriceRecord, 0, len(rows))

	for _, row := range rows {
		rec, ok := NormalizeRow(row)
		if !ok {
			out.Dropped++
			n.logger.Debug("row dropped: unparseable date", "date", firstCell(row))
			continue
		}
		if _, dup := seen[rec.Date]; dup {
			out.Duplicates++
			continue
		}
		seen[rec.Date] = struct{}{}
		records = append(records, rec)
	}

	slices.SortFunc(records, func(a, b models.PriceRecord) int {
		return a.Date.Compare(b.Date.Time)
	})
	out.Records = records

	if out.Duplicates > 0 {
		n.logger.Warn("duplicate dates discarded", "duplicates", out.Duplicates)
	}
	if out.Dropped > 0 {
		n.logger.Info("rows with unparseable dates dropped", "dropped", out.Dropped)
	}
	return out
}

// NormalizeRow converts one raw row. It reports false when the row has no
// parseable date; numeric cells that fail to parse become nil instead.
//
// Cell order is Date, Open, High, Low, Close, Adj Close, Volume. A row
// without the volume cell gets a nil volume; one without the adjusted
// close cell reuses the close.
func NormalizeRow(row RawRow) (models.PriceRecord, bool) {
	if len(row) < 5 {
		return models.PriceRecord{}, false
	}
	date, err := ParseDate(row[0])
	if err != nil {
		return models.PriceRecord{}, false
	}

	rec := models.PriceRecord{
		Date:  date,
		Open:  ParseNumber(row[1]),
		High:  ParseNumber(row[2]),
		Low:   ParseNumber(row[3]),
		Close: ParseNumber(row[4]),
	}
	if len(row) > 5 {
		rec.AdjClose = ParseNumber(row[5])
	} else {
		rec.AdjClose = ParseNumber(row[4])
	}
	if len(row) > 6 {
		rec.Volume = ParseVolume(row[6])
	}
	if rec.Open != nil && rec.Close != nil {
		r := roundTo4(*rec.Close - *rec.Open)
		rec.DailyReturn = &r
	}
	return rec, true
}

func firstCell(row RawRow) string {
	if len(row) == 0 {
		return ""
	}
	return row[0]
}
