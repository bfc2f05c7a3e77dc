package history

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// nullSentinels are rendered placeholders for "no value".
var nullSentinels = map[string]struct{}{
	"":    {},
	"-":   {},
	"--":  {},
	"N/A": {},
	"NA":  {},
}

// separatorReplacer strips thousands separators, including the narrow and
// regular no-break spaces some locales render.
var separatorReplacer = strings.NewReplacer(",", "", "\u00a0", "", "\u202f", "", "'", "")

// ParseNumber coerces rendered cell text to a float. Sentinels, unparseable
// text and non-finite values yield nil; it never fails.
func ParseNumber(s string) *float64 {
	s = separatorReplacer.Replace(strings.TrimSpace(s))
	if _, ok := nullSentinels[strings.ToUpper(s)]; ok {
		return nil
	}

	f, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseVolume coerces rendered cell text to an integer share count,
// truncating any fractional part.
func ParseVolume(s string) *int64 {
	f := ParseNumber(s)
	if f == nil || *f >= math.MaxInt64 || *f <= math.MinInt64 {
		return nil
	}
	v := int64(*f)
	return &v
}

// roundTo4 rounds half away from zero to four decimal places.
func roundTo4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
