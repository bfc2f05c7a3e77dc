// Package scraper drives one browser tab through a batch of price-history
// pages: consent dismissal, maximum-range selection, lazy-load scrolling
// and table extraction.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/pricehist/browser"
	"github.com/use-agent/pricehist/config"
	"github.com/use-agent/pricehist/history"
	"github.com/use-agent/pricehist/models"
)

// ProgressFunc is called after each item with the number of items done.
type ProgressFunc func(done int, r *models.ExtractionResult)

// Scraper processes batches serially on a single browser session.
// It is safe for concurrent use; batches are serialized.
type Scraper struct {
	session    browser.Session
	cfg        config.ExtractConfig
	consent    *ConsentHandler
	ranges     *RangeSelector
	pager      *PaginationLoader
	table      *history.TableExtractor
	normalizer *history.Normalizer
	logger     *slog.Logger

	mu       sync.Mutex
	lastItem time.Time // end of the previous item, guarded by mu
	now      func() time.Time

	busy           atomic.Bool
	batchesRun     atomic.Int64
	itemsProcessed atomic.Int64
}

// New wires the pipeline components around session. The Scraper owns the
// session from here on; Close releases it.
func New(session browser.Session, cfg config.ExtractConfig, logger *slog.Logger) (*Scraper, error) {
	if logger == nil {
		logger = slog.Default()
	}

	table, err := history.NewTableExtractor(cfg.MinCells, history.DefaultFallbackSelector, logger)
	if err != nil {
		return nil, fmt.Errorf("scraper: table extractor: %w", err)
	}

	return &Scraper{
		session:    session,
		cfg:        cfg,
		consent:    NewConsentHandler(cfg.Consent.Timeout, cfg.PollInterval, cfg.Consent.RemoveOverlays, logger),
		ranges:     NewRangeSelector(cfg.Range, cfg.MinCells, cfg.PollInterval, cfg.TableTimeout, logger),
		pager:      NewPaginationLoader(cfg.Scroll, cfg.MinCells, cfg.PollInterval, logger),
		table:      table,
		normalizer: history.NewNormalizer(logger),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Close releases the browser session.
func (s *Scraper) Close() error {
	s.logger.Info("scraper shutting down")
	return s.session.Close()
}

// Stats returns a snapshot of the session counters.
func (s *Scraper) Stats() models.SessionStats {
	return models.SessionStats{
		Busy:           s.busy.Load(),
		BatchesRun:     s.batchesRun.Load(),
		ItemsProcessed: s.itemsProcessed.Load(),
	}
}

// Resolve turns raw inputs into InputItems using the configured URL
// template and look-back window.
func (s *Scraper) Resolve(raws []string) []models.InputItem {
	return config.ResolveItems(raws, s.now(), s.cfg)
}

// RunInputs resolves raws and runs them as one batch.
func (s *Scraper) RunInputs(ctx context.Context, raws []string, progress ProgressFunc) *models.BatchReport {
	return s.Run(ctx, s.Resolve(raws), progress)
}

// Run extracts every item in order and returns one result per item. A
// failing item never stops the batch. Once ctx ends, the remaining items
// are reported as failed without touching the browser.
func (s *Scraper) Run(ctx context.Context, items []models.InputItem, progress ProgressFunc) *models.BatchReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy.Store(true)
	defer s.busy.Store(false)
	s.batchesRun.Add(1)

	report := &models.BatchReport{StartedAt: s.now()}
	for i, item := range items {
		var res *models.ExtractionResult
		if err := s.waitItemGap(ctx); err != nil {
			res = failedResult(item, categorizeError(err, "batch canceled"), 0)
		} else {
			res = s.extract(ctx, item)
			s.lastItem = s.now()
		}

		report.Add(res)
		s.itemsProcessed.Add(1)
		s.logResult(res)
		if progress != nil {
			progress(i+1, res)
		}
	}
	report.FinishedAt = s.now()

	if len(report.Failed) > 0 {
		s.logger.Warn("inputs failed", "failed", report.Failed, "succeeded", report.Succeeded)
	}
	return report
}

// Extract runs a single item outside of a batch.
func (s *Scraper) Extract(ctx context.Context, item models.InputItem) *models.ExtractionResult {
	return s.Run(ctx, []models.InputItem{item}, nil).Results[0]
}

// waitItemGap enforces the minimum spacing between the end of one item and
// the start of the next, across batches.
func (s *Scraper) waitItemGap(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.lastItem.IsZero() {
		return nil
	}
	return browser.Sleep(ctx, s.cfg.ItemDelay-s.now().Sub(s.lastItem))
}

// extract runs the pipeline for one item, converting every error and panic
// into a failed result.
func (s *Scraper) extract(ctx context.Context, item models.InputItem) (res *models.ExtractionResult) {
	start := s.now()
	log := s.logger.With("input", item.RawValue, "ticker", item.ResolvedSymbol)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during extraction", "panic", r)
			res = failedResult(item, models.NewScrapeError(models.ErrCodeInternal,
				fmt.Sprintf("panic: %v", r), nil), s.now().Sub(start))
		}
	}()

	res, err := s.pipeline(ctx, item, log)
	if err != nil {
		return failedResult(item, err, s.now().Sub(start))
	}
	res.DurationMs = s.now().Sub(start).Milliseconds()
	return res
}

func (s *Scraper) pipeline(ctx context.Context, item models.InputItem, log *slog.Logger) (*models.ExtractionResult, error) {
	page := browser.WithCallTimeout(s.session.Page(), s.cfg.CallTimeout)

	// ── 1. Navigate ──────────────────────────────────────────────────
	log.Info("navigating", "url", item.SourceURL)
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	err := page.Navigate(navCtx, item.SourceURL)
	cancel()
	if err != nil {
		return nil, categorizeError(err, "navigation to history page failed")
	}

	// ── 2. Consent ───────────────────────────────────────────────────
	s.consent.Dismiss(ctx, page)

	// ── 3. Table presence (advisory) ─────────────────────────────────
	if err := waitForTable(ctx, page, s.cfg.PollInterval, s.cfg.TableTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(ctx.Err(), "batch canceled")
		}
		log.Warn("table not present after load, continuing", "error", err)
	}

	// ── 4. Maximum range ─────────────────────────────────────────────
	rng, err := s.ranges.Select(ctx, page)
	if err != nil {
		return nil, categorizeError(err, "range selection interrupted")
	}

	// ── 5. Lazy-load scrolling ───────────────────────────────────────
	pag, err := s.pager.Load(ctx, page)
	if err != nil {
		return nil, err
	}

	// ── 6. Extract + normalize ───────────────────────────────────────
	rawHTML, err := page.HTML(ctx)
	if err != nil {
		return nil, categorizeError(err, "failed to read page HTML")
	}
	rows, err := s.table.Extract(rawHTML)
	if err != nil {
		return nil, err
	}
	norm := s.normalizer.Normalize(rows)
	if len(norm.Records) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeEmptyResult,
			fmt.Sprintf("no valid records in %d rendered rows", len(rows)), nil)
	}

	return &models.ExtractionResult{
		Ticker:        item.ResolvedSymbol,
		Input:         item,
		Records:       norm.Records,
		Status:        models.StatusSuccess,
		Degraded:      rng.Degraded,
		RangeAttempts: rng.Attempts,
		RowsRendered:  pag.Rows,
		DroppedRows:   norm.Dropped,
		Duplicates:    norm.Duplicates,
	}, nil
}

func (s *Scraper) logResult(r *models.ExtractionResult) {
	if r.OK() {
		s.logger.Info("extraction succeeded",
			"input", r.Input.RawValue,
			"ticker", r.Ticker,
			"records", len(r.Records),
			"from", r.FirstDate().String(),
			"to", r.LastDate().String(),
			"degraded", r.Degraded,
			"durationMs", r.DurationMs,
		)
		return
	}
	s.logger.Error("extraction failed",
		"input", r.Input.RawValue,
		"ticker", r.Ticker,
		"code", r.Error.Code,
		"error", r.Error.Message,
	)
}

func failedResult(item models.InputItem, err error, elapsed time.Duration) *models.ExtractionResult {
	return &models.ExtractionResult{
		Ticker:     item.ResolvedSymbol,
		Input:      item,
		Status:     models.StatusFailed,
		Error:      models.AsScrapeError(err).ToDetail(),
		DurationMs: elapsed.Milliseconds(),
	}
}

// categorizeError wraps raw errors into typed ScrapeErrors. Errors that
// already carry a code pass through unchanged.
func categorizeError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	switch {
	case errors.As(err, &se):
		return se
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, browser.ErrWaitTimeout):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
