package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/pricehist/browser"
	"github.com/use-agent/pricehist/config"
	"github.com/use-agent/pricehist/models"
)

// RangeState is a state of the maximum-range selection machine.
type RangeState int

const (
	StateIdle RangeState = iota
	StateControlLocated
	StateDropdownOpenRequested
	StateDropdownOpenVerified
	StateRangeOptionClicked
	StateDropdownCloseVerified
	StateTableReloadVerified
	StateDone
	StateRetryOrFail
)

var rangeStateNames = [...]string{
	StateIdle:                  "Idle",
	StateControlLocated:        "ControlLocated",
	StateDropdownOpenRequested: "DropdownOpenRequested",
	StateDropdownOpenVerified:  "DropdownOpenVerified",
	StateRangeOptionClicked:    "RangeOptionClicked",
	StateDropdownCloseVerified: "DropdownCloseVerified",
	StateTableReloadVerified:   "TableReloadVerified",
	StateDone:                  "Done",
	StateRetryOrFail:           "RetryOrFail",
}

func (s RangeState) String() string {
	if s >= 0 && int(s) < len(rangeStateNames) {
		return rangeStateNames[s]
	}
	return fmt.Sprintf("RangeState(%d)", int(s))
}

// RangeOutcome reports how range selection ended. A degraded outcome is not
// an error: the rows currently loaded are still usable.
type RangeOutcome struct {
	// Selected is true when the table reload was verified.
	Selected bool

	// Degraded is true when the attempt budget ran out.
	Degraded bool

	Attempts int

	// Rows is the valid-row count when selection ended.
	Rows int

	// FailedAt is the state whose transition failed last, if any.
	FailedAt RangeState

	// LastErr is the last verification failure, if any.
	LastErr error

	// Trace lists every state entered, in order.
	Trace []RangeState
}

// RangeSelector switches a history page to its maximum date range and
// verifies every step through observable DOM state.
type RangeSelector struct {
	cfg          config.RangeConfig
	minCells     int
	interval     time.Duration
	tableTimeout time.Duration
	logger       *slog.Logger
}

// NewRangeSelector creates a RangeSelector.
func NewRangeSelector(cfg config.RangeConfig, minCells int, interval, tableTimeout time.Duration, logger *slog.Logger) *RangeSelector {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.StateAttribute == "" {
		cfg.StateAttribute = "aria-hidden"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RangeSelector{
		cfg:          cfg,
		minCells:     minCells,
		interval:     interval,
		tableTimeout: tableTimeout,
		logger:       logger,
	}
}

// attempt carries what one pass through the machine has learned so far.
type attempt struct {
	trigger browser.Element
}

// Select drives the machine until it reaches Done or exhausts its attempts.
// It returns an error only when ctx ends; every other failure degrades.
func (r *RangeSelector) Select(ctx context.Context, page browser.Page) (RangeOutcome, error) {
	var out RangeOutcome

	initial, _ := countRows(ctx, page, r.minCells)
	r.logger.Info("selecting maximum range", "initialRows", initial, "attempts", r.cfg.Attempts)

	state := StateIdle
	var cur attempt
	out.Attempts = 1
	out.Trace = append(out.Trace, state)

	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		next, err := r.transition(ctx, page, state, &cur, &out)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			out.FailedAt = state
			out.LastErr = err
			r.logger.Warn("range selection step failed",
				"attempt", out.Attempts, "state", state.String(), "error", err)
			next = StateRetryOrFail
		}

		if next == StateRetryOrFail {
			out.Trace = append(out.Trace, next)
			if out.Attempts >= r.cfg.Attempts {
				return r.degrade(ctx, page, out)
			}
			if err := r.reset(ctx, page); err != nil {
				return out, err
			}
			out.Attempts++
			cur = attempt{}
			next = StateIdle
		}

		state = next
		out.Trace = append(out.Trace, state)
	}

	out.Selected = true
	r.logger.Info("maximum range loaded", "rows", out.Rows, "attempts", out.Attempts)
	return out, nil
}

// transition performs the action or verification that leaves state and
// returns the state it leads to.
func (r *RangeSelector) transition(ctx context.Context, page browser.Page, state RangeState, cur *attempt, out *RangeOutcome) (RangeState, error) {
	switch state {
	case StateIdle:
		el, err := r.waitElement(ctx, page, r.cfg.TriggerSelector, r.cfg.ControlTimeout)
		if err != nil {
			return StateRetryOrFail, models.NewScrapeError(models.ErrCodeControlNotFound, "date range control not found", err)
		}
		cur.trigger = el
		return StateControlLocated, nil

	case StateControlLocated:
		if err := cur.trigger.Click(ctx); err != nil {
			return StateRetryOrFail, fmt.Errorf("click date range control: %w", err)
		}
		return StateDropdownOpenRequested, nil

	case StateDropdownOpenRequested:
		if err := r.waitDropdown(ctx, page, "false", r.cfg.OpenTimeout); err != nil {
			return StateRetryOrFail, fmt.Errorf("dropdown did not open: %w", err)
		}
		return StateDropdownOpenVerified, nil

	case StateDropdownOpenVerified:
		opt, err := r.waitElement(ctx, page, r.cfg.OptionSelector, r.cfg.OptionTimeout)
		if err != nil {
			return StateRetryOrFail, models.NewScrapeError(models.ErrCodeControlNotFound, "maximum range option not found", err)
		}
		if err := opt.Click(ctx); err != nil {
			return StateRetryOrFail, fmt.Errorf("click maximum range option: %w", err)
		}
		return StateRangeOptionClicked, nil

	case StateRangeOptionClicked:
		if err := r.waitDropdown(ctx, page, "true", r.cfg.CloseTimeout); err != nil {
			return StateRetryOrFail, fmt.Errorf("dropdown did not close: %w", err)
		}
		return StateDropdownCloseVerified, nil

	case StateDropdownCloseVerified:
		err := browser.Poll(ctx, r.interval, r.cfg.ReloadTimeout, func(ctx context.Context) (bool, error) {
			n, err := countRows(ctx, page, r.minCells)
			out.Rows = n
			return n > r.cfg.ReloadThreshold, err
		})
		if err != nil {
			return StateRetryOrFail, fmt.Errorf("table did not reload past %d rows (have %d): %w",
				r.cfg.ReloadThreshold, out.Rows, err)
		}
		return StateTableReloadVerified, nil

	case StateTableReloadVerified:
		return StateDone, nil
	}
	return StateRetryOrFail, fmt.Errorf("no transition from state %s", state)
}

// reset reloads the page and waits for a table before the next attempt.
// Reload failures are logged; only context errors abort.
func (r *RangeSelector) reset(ctx context.Context, page browser.Page) error {
	r.logger.Info("reloading page before retrying range selection")

	reloadCtx, cancel := context.WithTimeout(ctx, r.cfg.ReloadTimeout)
	err := page.Reload(reloadCtx)
	cancel()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		r.logger.Warn("page reload failed", "error", err)
	}

	if err := waitForTable(ctx, page, r.interval, r.tableTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("table not present after reload", "error", err)
	}
	return nil
}

// degrade ends selection with whatever range is loaded.
func (r *RangeSelector) degrade(ctx context.Context, page browser.Page, out RangeOutcome) (RangeOutcome, error) {
	n, err := countRows(ctx, page, r.minCells)
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	if err != nil {
		r.logger.Debug("row count failed while degrading", "error", err)
	}
	out.Rows = n
	out.Degraded = true
	r.logger.Warn("maximum range not selected, proceeding with loaded rows",
		"attempts", out.Attempts, "rows", n, "failedAt", out.FailedAt.String())
	return out, nil
}

// waitElement polls until selector matches at least one element.
func (r *RangeSelector) waitElement(ctx context.Context, page browser.Page, selector string, timeout time.Duration) (browser.Element, error) {
	var found browser.Element
	err := browser.Poll(ctx, r.interval, timeout, func(ctx context.Context) (bool, error) {
		els, err := page.Elements(ctx, selector)
		if err != nil || len(els) == 0 {
			return false, err
		}
		found = els[0]
		return true, nil
	})
	return found, err
}

// waitDropdown polls the dropdown state attribute until it equals want.
func (r *RangeSelector) waitDropdown(ctx context.Context, page browser.Page, want string, timeout time.Duration) error {
	var last string
	err := browser.Poll(ctx, r.interval, timeout, func(ctx context.Context) (bool, error) {
		els, err := page.Elements(ctx, r.cfg.StateSelector)
		if err != nil || len(els) == 0 {
			return false, err
		}
		v, err := els[0].Attribute(ctx, r.cfg.StateAttribute)
		if err != nil || v == nil {
			return false, err
		}
		last = *v
		return last == want, nil
	})
	if err != nil && errors.Is(err, browser.ErrWaitTimeout) {
		return fmt.Errorf("%s=%q, want %q: %w", r.cfg.StateAttribute, last, want, err)
	}
	return err
}
