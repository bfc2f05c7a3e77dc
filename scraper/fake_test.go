package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/pricehist/browser"
	"github.com/use-agent/pricehist/config"
	"github.com/ysmood/gson"
)

const (
	triggerSel = `button[data-ylk*="slk:date-select"]`
	stateSel   = `button[data-ylk*="slk:date-select"] div[aria-hidden]`
	optionSel  = `button[data-value="5_Y"]`
)

// fakeSite scripts how one history page behaves.
type fakeSite struct {
	initialRows int  // rows rendered after load
	maxRows     int  // rows after the range option is clicked
	opens       bool // whether clicking the trigger opens the dropdown
	noControl   bool
	noTable     bool // HTML contains no history table
	growth      int  // rows added per scroll, forever (budget tests)
	panicOnHTML bool
	hangHTML    bool // HTML never answers until its context ends
	consent     string // label returned by the consent click script
}

// fakePage is a scripted browser.Page serving several sites by URL.
type fakePage struct {
	mu      sync.Mutex
	sites   map[string]*fakeSite
	site    *fakeSite
	rows    int
	open    bool
	reloads int
	sweeps  int // overlay removals
	navs    []string
}

func newFakePage(sites map[string]*fakeSite) *fakePage {
	return &fakePage{sites: sites}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navs = append(p.navs, url)
	site, ok := p.sites[url]
	if !ok {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	p.site = site
	p.rows = site.initialRows
	p.open = false
	return ctx.Err()
}

func (p *fakePage) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
	p.rows = p.site.initialRows
	p.open = false
	return ctx.Err()
}

func (p *fakePage) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	if err := ctx.Err(); err != nil {
		return gson.New(nil), err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch js {
	case countRowsJS:
		return gson.New(p.rows), nil
	case tableCountJS:
		if p.site == nil {
			return gson.New(0), nil
		}
		return gson.New(1), nil
	case scrollBottomJS:
		p.rows += p.site.growth
		return gson.New(nil), nil
	case clickByTextJS:
		if p.site == nil {
			return gson.New(""), nil
		}
		return gson.New(p.site.consent), nil
	case removeOverlaysJS:
		p.sweeps++
		return gson.New(0), nil
	}
	return gson.New(nil), fmt.Errorf("unexpected script: %.40s", js)
}

func (p *fakePage) Elements(ctx context.Context, selector string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.site == nil {
		return nil, nil
	}

	switch selector {
	case triggerSel:
		if p.site.noControl {
			return nil, nil
		}
		return []browser.Element{&fakeElement{click: p.clickTrigger}}, nil
	case stateSel:
		if p.site.noControl {
			return nil, nil
		}
		return []browser.Element{&fakeElement{attr: p.ariaHidden}}, nil
	case optionSel:
		if !p.open {
			return nil, nil
		}
		return []browser.Element{&fakeElement{click: p.clickOption}}, nil
	}
	return nil, nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	site, rows := p.site, p.rows
	p.mu.Unlock()

	if site.hangHTML {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if site.panicOnHTML {
		panic("renderer went away")
	}
	if site.noTable {
		return `<html><body><div class="error">Symbol lookup failed</div></body></html>`, nil
	}
	return historyHTML(rows), nil
}

func (p *fakePage) clickTrigger() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.site.opens {
		p.open = true
	}
}

func (p *fakePage) clickOption() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	p.rows = p.site.maxRows
}

func (p *fakePage) ariaHidden() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		return "false"
	}
	return "true"
}

type fakeElement struct {
	click func()
	attr  func() string
}

func (e *fakeElement) Click(ctx context.Context) error {
	if e.click != nil {
		e.click()
	}
	return ctx.Err()
}

func (e *fakeElement) Attribute(_ context.Context, _ string) (*string, error) {
	if e.attr == nil {
		return nil, nil
	}
	v := e.attr()
	return &v, nil
}

type fakeSession struct {
	page   *fakePage
	closed bool
}

func (s *fakeSession) Page() browser.Page { return s.page }
func (s *fakeSession) Close() error       { s.closed = true; return nil }

// historyHTML renders n price rows on consecutive weekdays, newest first,
// with a dividend row and a footnote row mixed in.
func historyHTML(n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="main-content-wrapper"><table>
<thead><tr><th>Date</th><th>Open</th><th>High</th><th>Low</th><th>Close</th><th>Adj Close</th><th>Volume</th></tr></thead><tbody>`)

	day := time.Date(2024, time.June, 28, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, -1)
		}
		open := 30 + float64(i%50)/10
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%.2f</td><td>%.2f</td><td>%.2f</td><td>%.2f</td><td>%.2f</td><td>%s</td></tr>\n",
			day.Format("Jan 2, 2006"), open, open+0.5, open-0.5, open+0.1, open+0.05, "1,234,567")
		if i == 10 {
			fmt.Fprintf(&b, "<tr><td>%s</td><td colspan=\"6\">0.54 Dividend</td></tr>\n", day.Format("Jan 2, 2006"))
		}
		day = day.AddDate(0, 0, -1)
	}
	b.WriteString(`<tr><td colspan="7">*Close price adjusted for splits.</td></tr></tbody></table></div></body></html>`)
	return b.String()
}

// testExtractConfig returns a configuration with millisecond-scale waits.
func testExtractConfig() config.ExtractConfig {
	return config.ExtractConfig{
		URLTemplate:       config.DefaultURLTemplate,
		LookbackYears:     5,
		ItemDelay:         0,
		NavigationTimeout: time.Second,
		CallTimeout:       time.Second,
		TableTimeout:      20 * time.Millisecond,
		PollInterval:      time.Millisecond,
		MinCells:          6,
		Consent: config.ConsentConfig{
			Timeout:        5 * time.Millisecond,
			RemoveOverlays: true,
		},
		Range: config.RangeConfig{
			TriggerSelector: triggerSel,
			StateSelector:   stateSel,
			StateAttribute:  "aria-hidden",
			OptionSelector:  optionSel,
			ControlTimeout:  20 * time.Millisecond,
			OpenTimeout:     20 * time.Millisecond,
			OptionTimeout:   20 * time.Millisecond,
			CloseTimeout:    20 * time.Millisecond,
			ReloadTimeout:   50 * time.Millisecond,
			ReloadThreshold: 1000,
			Attempts:        3,
		},
		Scroll: config.ScrollConfig{
			MaxLoops: 50,
			Patience: 3,
			Settle:   5 * time.Millisecond,
		},
	}
}
