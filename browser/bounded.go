package browser

import (
	"context"
	"time"

	"github.com/ysmood/gson"
)

// WithCallTimeout bounds every Eval, Elements, HTML, Click and Attribute call
// on page by d. Navigate and Reload pass through; callers bound them with
// their own load timeouts. d <= 0 returns page unchanged.
func WithCallTimeout(page Page, d time.Duration) Page {
	if d <= 0 {
		return page
	}
	return &boundedPage{page: page, d: d}
}

type boundedPage struct {
	page Page
	d    time.Duration
}

func (p *boundedPage) Navigate(ctx context.Context, url string) error {
	return p.page.Navigate(ctx, url)
}

func (p *boundedPage) Reload(ctx context.Context) error {
	return p.page.Reload(ctx)
}

func (p *boundedPage) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	ctx, cancel := context.WithTimeout(ctx, p.d)
	defer cancel()
	return p.page.Eval(ctx, js, args...)
}

func (p *boundedPage) Elements(ctx context.Context, selector string) ([]Element, error) {
	ctx, cancel := context.WithTimeout(ctx, p.d)
	defer cancel()
	els, err := p.page.Elements(ctx, selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &boundedElement{el: el, d: p.d}
	}
	return out, nil
}

func (p *boundedPage) HTML(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.d)
	defer cancel()
	return p.page.HTML(ctx)
}

type boundedElement struct {
	el Element
	d  time.Duration
}

func (e *boundedElement) Click(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.d)
	defer cancel()
	return e.el.Click(ctx)
}

func (e *boundedElement) Attribute(ctx context.Context, name string) (*string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.d)
	defer cancel()
	return e.el.Attribute(ctx, name)
}
