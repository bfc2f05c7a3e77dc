package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/pricehist/models"
)

// ResolveItem turns one raw input into an InputItem. A full http(s) URL is
// navigated as-is and labelled by the path segment following /quote/; a bare
// symbol is expanded through tmpl with a window of years ending at now.
func ResolveItem(raw string, now time.Time, tmpl string, years int) models.InputItem {
	raw = strings.TrimSpace(raw)

	if isURL(raw) {
		return models.InputItem{
			RawValue:       raw,
			ResolvedSymbol: symbolFromURL(raw, now),
			SourceURL:      raw,
		}
	}

	if tmpl == "" {
		tmpl = DefaultURLTemplate
	}
	if years <= 0 {
		years = 5
	}
	// Fixed 365-day years; the page snaps the window to trading days anyway.
	start := now.Add(-time.Duration(years) * 365 * 24 * time.Hour)

	return models.InputItem{
		RawValue:       raw,
		ResolvedSymbol: raw,
		SourceURL:      fmt.Sprintf(tmpl, url.PathEscape(raw), start.Unix(), now.Unix()),
	}
}

// ResolveItems resolves every raw input against the same clock reading.
func ResolveItems(raws []string, now time.Time, cfg ExtractConfig) []models.InputItem {
	items := make([]models.InputItem, 0, len(raws))
	for _, raw := range raws {
		items = append(items, ResolveItem(raw, now, cfg.URLTemplate, cfg.LookbackYears))
	}
	return items
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func symbolFromURL(raw string, now time.Time) string {
	fallback := fmt.Sprintf("custom_url_%d", now.Unix())

	u, err := url.Parse(raw)
	if err != nil {
		return fallback
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "quote" && i+1 < len(segments) && segments[i+1] != "" {
			if sym, err := url.PathUnescape(segments[i+1]); err == nil {
				return sym
			}
			return segments[i+1]
		}
	}
	return fallback
}
