// Package history turns a rendered price-history page into ordered daily
// price records.
package history

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/pricehist/models"
	"golang.org/x/net/html"
)

// DefaultFallbackSelector targets the primary content region's table.
const DefaultFallbackSelector = "#main-content-wrapper table"

// headerTokens must all appear in a table's header text for it to be chosen.
var headerTokens = []string{"date", "open", "high", "low", "close", "volume"}

// eventMarkers identify corporate-action rows rendered inside the price table.
var eventMarkers = []string{"Dividend", "Stock Split"}

// RawRow is the ordered cell text of one rendered price row.
type RawRow []string

// TableExtractor locates the price-history table in rendered markup and
// returns its price rows.
type TableExtractor struct {
	minCells int
	fallback cascadia.Sel
	logger   *slog.Logger
}

// NewTableExtractor compiles the fallback selector. minCells below 6 is
// raised to 6 since a price row needs date, OHLC and adjusted close.
func NewTableExtractor(minCells int, fallbackSelector string, logger *slog.Logger) (*TableExtractor, error) {
	if minCells < 6 {
		minCells = 6
	}
	if fallbackSelector == "" {
		fallbackSelector = DefaultFallbackSelector
	}
	if logger == nil {
		logger = slog.Default()
	}

	sel, err := cascadia.Parse(fallbackSelector)
	if err != nil {
		return nil, err
	}
	return &TableExtractor{minCells: minCells, fallback: sel, logger: logger}, nil
}

// Extract returns the price rows of the history table in rendered order.
// It fails with TABLE_NOT_FOUND when neither the header heuristic nor the
// fallback selector finds a table.
func (e *TableExtractor) Extract(rawHTML string) ([]RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeTableNotFound, "failed to parse page markup", err)
	}

	table := e.findTable(doc)
	if table == nil {
		return nil, models.NewScrapeError(models.ErrCodeTableNotFound, "historical data table not found", nil)
	}

	var rows []RawRow
	var short, events int
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.ChildrenFiltered("td")
		if tds.Length() < e.minCells {
			short++
			return
		}

		row := make(RawRow, 0, tds.Length())
		tds.Each(func(i int, td *goquery.Selection) {
			if i == 0 {
				row = append(row, dateCellText(td))
				return
			}
			row = append(row, strings.TrimSpace(td.Text()))
		})

		if isEventRow(row) {
			events++
			return
		}
		rows = append(rows, row)
	})

	e.logger.Debug("table rows extracted", "rows", len(rows), "skippedShort", short, "skippedEvents", events)
	return rows, nil
}

// findTable applies the header heuristic and then the fallback selector.
func (e *TableExtractor) findTable(doc *goquery.Document) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, tbl *goquery.Selection) bool {
		thead := tbl.ChildrenFiltered("thead")
		if thead.Length() == 0 {
			return true
		}
		if hasHeaderTokens(thead.Text()) {
			found = tbl
			return false
		}
		return true
	})
	if found != nil {
		return found
	}

	for _, root := range doc.Nodes {
		if node := cascadia.Query(root, e.fallback); node != nil {
			e.logger.Debug("history table matched by fallback selector")
			return doc.FindNodes(node)
		}
	}
	return nil
}

func hasHeaderTokens(text string) bool {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	for _, tok := range headerTokens {
		if !strings.Contains(normalized, tok) {
			return false
		}
	}
	return true
}

// dateCellText prefers the cell's own text node over descendant text, which
// may carry decorative content injected around the date.
func dateCellText(td *goquery.Selection) string {
	for _, n := range td.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.TextNode {
				continue
			}
			if s := strings.TrimSpace(c.Data); s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(td.Text())
}

func isEventRow(row RawRow) bool {
	if len(row) < 2 {
		return false
	}
	for _, marker := range eventMarkers {
		if strings.Contains(row[1], marker) {
			return true
		}
	}
	return false
}
