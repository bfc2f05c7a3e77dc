package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/pricehist/browser"
)

// consentLabels are the button texts of known consent dialogs, in the order
// they are tried.
var consentLabels = []string{"Accept all", "Accept", "I agree", "Agree"}

// consentSelectors match consent buttons by attribute when their text is
// not rendered.
var consentSelectors = []string{
	`button[aria-label*="Accept"]`,
	`button[title="Agree"]`,
	`button[name="agree"]`,
}

// ConsentHandler dismisses cookie/consent dialogs. It never fails the item:
// every error is logged and swallowed.
type ConsentHandler struct {
	timeout        time.Duration
	interval       time.Duration
	removeOverlays bool
	logger         *slog.Logger
}

// NewConsentHandler creates a ConsentHandler.
func NewConsentHandler(timeout, interval time.Duration, removeOverlays bool, logger *slog.Logger) *ConsentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsentHandler{
		timeout:        timeout,
		interval:       interval,
		removeOverlays: removeOverlays,
		logger:         logger,
	}
}

// Dismiss clicks the first consent button that appears within the timeout.
// When none appears it optionally strips fixed overlays instead. It reports
// whether a button was clicked.
func (h *ConsentHandler) Dismiss(ctx context.Context, page browser.Page) bool {
	clicked := ""
	err := browser.Poll(ctx, h.interval, h.timeout, func(ctx context.Context) (bool, error) {
		res, err := page.Eval(ctx, clickByTextJS, consentLabels)
		if err != nil {
			return false, err
		}
		if label := res.Str(); label != "" {
			clicked = label
			return true, nil
		}
		for _, sel := range consentSelectors {
			els, err := page.Elements(ctx, sel)
			if err != nil || len(els) == 0 {
				continue
			}
			if err := els[0].Click(ctx); err == nil {
				clicked = sel
				return true, nil
			}
		}
		return false, nil
	})

	if err == nil {
		h.logger.Info("consent dialog dismissed", "matched", clicked)
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	h.logger.Debug("no consent dialog found", "error", err)
	if h.removeOverlays {
		res, err := page.Eval(ctx, removeOverlaysJS)
		switch {
		case err != nil:
			h.logger.Debug("overlay removal failed", "error", err)
		case res.Int() > 0:
			h.logger.Info("consent overlay removed", "elements", res.Int())
		}
	}
	return false
}
