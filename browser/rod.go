package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/pricehist/config"
	"github.com/use-agent/pricehist/models"
	"github.com/ysmood/gson"
)

// RodSession is a Session backed by a locally launched Chromium with one tab.
type RodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	logger   *slog.Logger
}

// Launch starts Chromium, opens the single tab used for the whole batch and
// installs stealth evasions and resource blocking on it.
func Launch(cfg config.BrowserConfig, logger *slog.Logger) (*RodSession, error) {
	if logger == nil {
		logger = slog.Default()
	}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), "en-US")
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight))
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	logger.Info("browser launched", "controlURL", controlURL, "headless", cfg.Headless)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open tab", err)
	}

	// Stealth and hijacking only affect navigations made after they are installed.
	if cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			logger.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  cfg.WindowWidth,
			Height: cfg.WindowHeight,
		}); err != nil {
			logger.Debug("viewport override failed", "error", err)
		}
	}

	return &RodSession{
		launcher: l,
		browser:  b,
		page:     page,
		router:   setupHijack(page, cfg.BlockedResourceTypes, cfg.BlockAds),
		logger:   logger,
	}, nil
}

// Page returns the session's single tab.
func (s *RodSession) Page() Page {
	return &rodPage{page: s.page}
}

// Close stops request interception, closes the browser and kills the process.
// It is safe to call more than once.
func (s *RodSession) Close() error {
	var firstErr error
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			firstErr = err
		}
		s.router = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.launcher = nil
	}
	s.logger.Info("browser closed")
	return firstErr
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *rodPage) Reload(ctx context.Context) error {
	pg := p.page.Context(ctx)
	if err := pg.Reload(); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *rodPage) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

func (p *rodPage) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

type rodElement struct {
	el *rod.Element
}

// Click uses a DOM click rather than synthesized mouse input so overlays
// covering the node cannot intercept it.
func (e *rodElement) Click(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`() => {
		this.scrollIntoView({block: 'center'});
		this.click();
	}`)
	return err
}

func (e *rodElement) Attribute(ctx context.Context, name string) (*string, error) {
	return e.el.Context(ctx).Attribute(name)
}
