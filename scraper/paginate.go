package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/pricehist/browser"
	"github.com/use-agent/pricehist/config"
	"github.com/use-agent/pricehist/models"
)

// PaginationOutcome reports how lazy-load scrolling ended.
type PaginationOutcome struct {
	Rows      int
	Loops     int
	Converged bool
}

// PaginationLoader scrolls until the valid-row count stops growing.
type PaginationLoader struct {
	cfg      config.ScrollConfig
	minCells int
	interval time.Duration
	logger   *slog.Logger
}

// NewPaginationLoader creates a PaginationLoader.
func NewPaginationLoader(cfg config.ScrollConfig, minCells int, interval time.Duration, logger *slog.Logger) *PaginationLoader {
	if cfg.MaxLoops < 1 {
		cfg.MaxLoops = 1
	}
	if cfg.Patience < 1 {
		cfg.Patience = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PaginationLoader{cfg: cfg, minCells: minCells, interval: interval, logger: logger}
}

// Load scrolls to the bottom repeatedly until the row count has been stable
// for Patience consecutive measurements or MaxLoops is reached. Reaching
// MaxLoops is not an error. A zero count at the first measurement is
// returned as EMPTY_RESULT.
func (l *PaginationLoader) Load(ctx context.Context, page browser.Page) (PaginationOutcome, error) {
	var out PaginationOutcome
	last, stable := -1, 0

	for i := 0; i < l.cfg.MaxLoops; i++ {
		out.Loops = i + 1

		current, err := countRows(ctx, page, l.minCells)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			return out, categorizeError(err, "failed to count table rows")
		}
		out.Rows = current

		if i == 0 && current == 0 {
			return out, models.NewScrapeError(models.ErrCodeEmptyResult, "no price rows rendered", nil)
		}

		if current == last {
			stable++
		} else {
			stable = 0
		}
		if stable >= l.cfg.Patience {
			out.Converged = true
			l.logger.Info("rows stabilized", "rows", current, "loops", out.Loops)
			return out, nil
		}
		last = current

		if _, err := page.Eval(ctx, scrollBottomJS); err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			l.logger.Debug("scroll failed", "error", err)
		}

		// Wait for new rows, at most Settle. A timeout means "no growth yet".
		err = browser.Poll(ctx, l.interval, l.cfg.Settle, func(ctx context.Context) (bool, error) {
			n, err := countRows(ctx, page, l.minCells)
			return n != current, err
		})
		if err != nil && !errors.Is(err, browser.ErrWaitTimeout) {
			return out, err
		}
	}

	l.logger.Warn("scroll budget exhausted before rows stabilized", "rows", out.Rows, "loops", out.Loops)
	return out, nil
}

// countRows returns the number of table body rows with at least minCells cells.
func countRows(ctx context.Context, page browser.Page, minCells int) (int, error) {
	v, err := page.Eval(ctx, countRowsJS, minCells)
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

// waitForTable polls until the document contains at least one table.
func waitForTable(ctx context.Context, page browser.Page, interval, timeout time.Duration) error {
	return browser.Poll(ctx, interval, timeout, func(ctx context.Context) (bool, error) {
		v, err := page.Eval(ctx, tableCountJS)
		if err != nil {
			return false, err
		}
		return v.Int() > 0, nil
	})
}
