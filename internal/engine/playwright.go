package engine

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightEngine drives browsers through the Playwright driver. It is the
// default backend: per-session proxies with credentials work out of the box.
type PlaywrightEngine struct {
	pw *playwright.Playwright
}

// NewPlaywright installs the driver if needed and starts it. Driver output
// is discarded so it cannot interleave with our logs.
func NewPlaywright() (*PlaywrightEngine, error) {
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("install playwright driver: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("start playwright driver: %w", err)
	}
	return &PlaywrightEngine{pw: pw}, nil
}

func (e *PlaywrightEngine) Name() string { return "playwright" }

func (e *PlaywrightEngine) Close() error {
	if e.pw == nil {
		return nil
	}
	return e.pw.Stop()
}

func (e *PlaywrightEngine) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	_ = ctx // the driver manages its own launch deadline

	var proxy *playwright.Proxy
	if opts.Proxy != nil {
		proxy = &playwright.Proxy{Server: opts.Proxy.Server}
		if opts.Proxy.Username != "" {
			proxy.Username = playwright.String(opts.Proxy.Username)
		}
		if opts.Proxy.Password != "" {
			proxy.Password = playwright.String(opts.Proxy.Password)
		}
		if opts.Proxy.Bypass != "" {
			proxy.Bypass = playwright.String(opts.Proxy.Bypass)
		}
	}

	var viewport *playwright.Size
	if opts.Viewport != nil {
		viewport = &playwright.Size{Width: opts.Viewport.Width, Height: opts.Viewport.Height}
	}

	// A persistent profile dir means one context owns the whole browser.
	if opts.ProfileDir != "" {
		bctx, err := e.pw.Chromium.LaunchPersistentContext(opts.ProfileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(opts.Headless),
			Proxy:    proxy,
			Viewport: viewport,
		})
		if err != nil {
			return nil, fmt.Errorf("launch persistent context: %w", err)
		}
		return newPlaywrightBrowser(nil, bctx), nil
	}

	browser, err := e.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Proxy:    proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{Viewport: viewport})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	return newPlaywrightBrowser(browser, bctx), nil
}

type playwrightBrowser struct {
	browser playwright.Browser // nil in persistent-context mode
	bctx    playwright.BrowserContext

	mu       sync.Mutex
	wrapped  map[playwright.Page]*playwrightPage
	onPage   []func(Page)
	hookInit bool
}

func newPlaywrightBrowser(browser playwright.Browser, bctx playwright.BrowserContext) *playwrightBrowser {
	return &playwrightBrowser{
		browser: browser,
		bctx:    bctx,
		wrapped: make(map[playwright.Page]*playwrightPage),
	}
}

// wrap returns the stable wrapper for a driver page, creating it once.
func (b *playwrightBrowser) wrap(p playwright.Page) *playwrightPage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wrapLocked(p)
}

func (b *playwrightBrowser) wrapLocked(p playwright.Page) *playwrightPage {
	if wp, ok := b.wrapped[p]; ok {
		return wp
	}
	// URL-derived ids break on navigation; a per-page uuid stays stable.
	wp := &playwrightPage{id: "page-" + uuid.NewString()[:8], page: p}
	p.OnClose(func(playwright.Page) {
		b.mu.Lock()
		delete(b.wrapped, p)
		b.mu.Unlock()
		wp.fireClose()
	})
	b.wrapped[p] = wp
	return wp
}

func (b *playwrightBrowser) OnPage(fn func(Page)) {
	b.mu.Lock()
	b.onPage = append(b.onPage, fn)
	if !b.hookInit {
		b.hookInit = true
		b.bctx.OnPage(func(p playwright.Page) {
			wp := b.wrap(p)
			b.mu.Lock()
			fns := append([]func(Page){}, b.onPage...)
			b.mu.Unlock()
			for _, f := range fns {
				f(wp)
			}
		})
	}
	// Replay pages that existed before the listener did (persistent
	// contexts open an initial tab during launch).
	existing := make([]*playwrightPage, 0, len(b.wrapped))
	for _, p := range b.bctx.Pages() {
		existing = append(existing, b.wrapLocked(p))
	}
	b.mu.Unlock()
	for _, wp := range existing {
		fn(wp)
	}
}

func (b *playwrightBrowser) NewPage(ctx context.Context) (Page, error) {
	_ = ctx
	p, err := b.bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	return b.wrap(p), nil
}

func (b *playwrightBrowser) Cookies(ctx context.Context) ([]Cookie, error) {
	_ = ctx
	raw, err := b.bctx.Cookies()
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	cookies := make([]Cookie, len(raw))
	for i, c := range raw {
		sameSite := ""
		if c.SameSite != nil {
			sameSite = string(*c.SameSite)
		}
		cookies[i] = Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
			SameSite: sameSite,
		}
	}
	return cookies, nil
}

func (b *playwrightBrowser) AddCookies(ctx context.Context, cookies []Cookie) error {
	_ = ctx
	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		oc := playwright.OptionalCookie{Name: c.Name, Value: c.Value}
		if c.Domain != "" {
			oc.Domain = playwright.String(c.Domain)
		}
		if c.Path != "" {
			oc.Path = playwright.String(c.Path)
		}
		if c.Expires > 0 {
			oc.Expires = playwright.Float(c.Expires)
		}
		if c.HTTPOnly {
			oc.HttpOnly = playwright.Bool(true)
		}
		if c.Secure {
			oc.Secure = playwright.Bool(true)
		}
		switch c.SameSite {
		case "Strict":
			oc.SameSite = playwright.SameSiteAttributeStrict
		case "None":
			oc.SameSite = playwright.SameSiteAttributeNone
		case "Lax":
			oc.SameSite = playwright.SameSiteAttributeLax
		}
		out = append(out, oc)
	}
	if err := b.bctx.AddCookies(out); err != nil {
		return fmt.Errorf("add cookies: %w", err)
	}
	return nil
}

func (b *playwrightBrowser) ClearCookies(ctx context.Context) error {
	_ = ctx
	if err := b.bctx.ClearCookies(); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}

func (b *playwrightBrowser) Close(ctx context.Context) error {
	_ = ctx
	if err := b.bctx.Close(); err != nil {
		return fmt.Errorf("close context: %w", err)
	}
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return fmt.Errorf("close browser: %w", err)
		}
	}
	return nil
}

type playwrightPage struct {
	id   string
	page playwright.Page

	closeMu sync.Mutex
	closed  bool
	onClose []func()
}

func (p *playwrightPage) ID() string  { return p.id }
func (p *playwrightPage) URL() string { return p.page.URL() }

func (p *playwrightPage) Goto(ctx context.Context, url string) error {
	_ = ctx
	if _, err := p.page.Goto(url); err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

func (p *playwrightPage) Reload(ctx context.Context) error {
	_ = ctx
	if _, err := p.page.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

func (p *playwrightPage) Content(ctx context.Context) (string, error) {
	_ = ctx
	html, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("page content: %w", err)
	}
	return html, nil
}

func (p *playwrightPage) Evaluate(ctx context.Context, script string) (any, error) {
	_ = ctx
	res, err := p.page.Evaluate(script)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return res, nil
}

func (p *playwrightPage) Fill(ctx context.Context, selector, value string) error {
	_ = ctx
	if err := p.page.Fill(selector, value); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

func (p *playwrightPage) Click(ctx context.Context, selector string) error {
	_ = ctx
	if err := p.page.Click(selector); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (p *playwrightPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	_ = ctx
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(fullPage)})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

func (p *playwrightPage) StorageItems(ctx context.Context, kind StorageKind) (map[string]string, error) {
	v, err := p.Evaluate(ctx, storageDumpScript(kind))
	if err != nil {
		return nil, fmt.Errorf("read %s storage: %w", kind, err)
	}
	return toStringMap(v), nil
}

func (p *playwrightPage) SetStorageItem(ctx context.Context, kind StorageKind, key, value string) error {
	if _, err := p.Evaluate(ctx, storageSetScript(kind, key, value)); err != nil {
		return fmt.Errorf("write %s storage: %w", kind, err)
	}
	return nil
}

func (p *playwrightPage) OnClose(fn func()) {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		go fn()
		return
	}
	p.onClose = append(p.onClose, fn)
}

func (p *playwrightPage) fireClose() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	fns := p.onClose
	p.onClose = nil
	p.closeMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *playwrightPage) Close(ctx context.Context) error {
	_ = ctx
	if err := p.page.Close(); err != nil {
		return fmt.Errorf("close page: %w", err)
	}
	return nil
}
