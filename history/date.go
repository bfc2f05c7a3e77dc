package history

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/use-agent/pricehist/models"
)

var errEmptyDate = errors.New("history: empty date")

// minYear is the earliest year accepted for a trading day. Text without a
// year (a bare "Jun 3" or a time of day) parses to year 0 and is refused.
const minYear = 1900

// septPattern matches the four-letter September abbreviation, which the
// date parser does not know.
var septPattern = regexp.MustCompile(`(?i)\bsept\b\.?`)

// ParseDate parses a rendered calendar date such as "Jun 3, 2024",
// "Sept 12, 2023" or "2024-06-03". Ambiguous numeric dates are read
// month-first. Dates before 1900 or more than a year ahead are rejected.
func ParseDate(s string) (models.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Date{}, errEmptyDate
	}
	s = septPattern.ReplaceAllString(s, "Sep")

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return models.Date{}, err
	}
	if t.Year() < minYear || t.After(time.Now().AddDate(1, 0, 0)) {
		return models.Date{}, fmt.Errorf("history: date %q out of range", s)
	}
	return models.NewDate(t), nil
}
