package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// ChromedpEngine launches Chrome directly over the DevTools protocol. It
// does not support credentialed proxies; configure those on the playwright
// backend instead.
type ChromedpEngine struct{}

func NewChromedp() *ChromedpEngine { return &ChromedpEngine{} }

func (e *ChromedpEngine) Name() string { return "chromedp" }

func (e *ChromedpEngine) Close() error { return nil }

func (e *ChromedpEngine) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-breakpad", true),
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Headless)
	}
	if opts.Proxy != nil {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy.Server))
		if opts.Proxy.Bypass != "" {
			allocOpts = append(allocOpts, chromedp.Flag("proxy-bypass-list", opts.Proxy.Bypass))
		}
		if opts.Proxy.Username != "" {
			slog.Warn("chromedp backend ignores proxy credentials; use the playwright backend for authenticated proxies",
				"proxy", opts.Proxy.Server)
		}
	}
	if opts.Viewport != nil {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Viewport.Width, opts.Viewport.Height))
	}
	if opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	rootCtx, rootCancel := chromedp.NewContext(allocCtx)

	b := &chromedpBrowser{
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
		allocCancel: allocCancel,
		known:       make(map[target.ID]*chromedpPage),
	}

	// Starting the root context spawns the browser process with one blank
	// tab. That tab is kept as a control surface for browser-scoped
	// operations (cookies) and never surfaces as a page.
	startCtx, cancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(startCtx, chromedp.ActionFunc(func(c context.Context) error {
		return target.SetDiscoverTargets(true).Do(c)
	})); err != nil {
		b.teardown()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	if tgt := chromedp.FromContext(rootCtx).Target; tgt != nil {
		b.ctrlID = tgt.TargetID
	}

	// Adopt pages the site opens itself (window.open) so popup tabs are
	// tracked like any other page.
	chromedp.ListenBrowser(rootCtx, func(ev any) {
		created, ok := ev.(*target.EventTargetCreated)
		if !ok || created.TargetInfo.Type != "page" {
			return
		}
		if created.TargetInfo.OpenerID == "" {
			return
		}
		go b.adopt(created.TargetInfo.TargetID)
	})

	return b, nil
}

type chromedpBrowser struct {
	rootCtx     context.Context
	rootCancel  context.CancelFunc
	allocCancel context.CancelFunc
	ctrlID      target.ID

	mu     sync.Mutex
	known  map[target.ID]*chromedpPage
	onPage []func(Page)
	closed bool
}

func (b *chromedpBrowser) teardown() {
	b.rootCancel()
	b.allocCancel()
}

// run executes actions on a chromedp context while honoring the caller's
// cancellation.
func runUnder(caller, cdpCtx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(cdpCtx)
	defer cancel()
	stop := context.AfterFunc(caller, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if caller.Err() != nil {
			return caller.Err()
		}
		return err
	}
	return nil
}

func (b *chromedpBrowser) adopt(id target.ID) {
	b.mu.Lock()
	if b.closed || id == b.ctrlID {
		b.mu.Unlock()
		return
	}
	if _, ok := b.known[id]; ok {
		b.mu.Unlock()
		return
	}
	pageCtx, pageCancel := chromedp.NewContext(b.rootCtx, chromedp.WithTargetID(id))
	p := newChromedpPage(id, pageCtx, pageCancel)
	b.known[id] = p
	fns := append([]func(Page){}, b.onPage...)
	b.mu.Unlock()

	p.watch()
	for _, fn := range fns {
		fn(p)
	}
}

func (b *chromedpBrowser) OnPage(fn func(Page)) {
	b.mu.Lock()
	b.onPage = append(b.onPage, fn)
	existing := make([]*chromedpPage, 0, len(b.known))
	for _, p := range b.known {
		existing = append(existing, p)
	}
	b.mu.Unlock()
	for _, p := range existing {
		fn(p)
	}
}

func (b *chromedpBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("browser closed")
	}
	b.mu.Unlock()

	pageCtx, pageCancel := chromedp.NewContext(b.rootCtx)
	if err := runUnder(ctx, pageCtx, chromedp.Navigate("about:blank")); err != nil {
		pageCancel()
		return nil, fmt.Errorf("new page: %w", err)
	}
	tgt := chromedp.FromContext(pageCtx).Target
	if tgt == nil {
		pageCancel()
		return nil, fmt.Errorf("new page: no target attached")
	}

	p := newChromedpPage(tgt.TargetID, pageCtx, pageCancel)
	b.mu.Lock()
	b.known[tgt.TargetID] = p
	fns := append([]func(Page){}, b.onPage...)
	b.mu.Unlock()

	p.watch()
	for _, fn := range fns {
		fn(p)
	}
	return p, nil
}

func (b *chromedpBrowser) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := runUnder(ctx, b.rootCtx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	cookies := make([]Cookie, len(raw))
	for i, c := range raw {
		cookies[i] = Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: sameSiteFromCDP(c.SameSite),
		}
	}
	return cookies, nil
}

func (b *chromedpBrowser) AddCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: sameSiteToCDP(c.SameSite),
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	err := runUnder(ctx, b.rootCtx, chromedp.ActionFunc(func(c context.Context) error {
		return storage.SetCookies(params).Do(c)
	}))
	if err != nil {
		return fmt.Errorf("add cookies: %w", err)
	}
	return nil
}

func (b *chromedpBrowser) ClearCookies(ctx context.Context) error {
	err := runUnder(ctx, b.rootCtx, chromedp.ActionFunc(func(c context.Context) error {
		return storage.ClearCookies().Do(c)
	}))
	if err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}

func (b *chromedpBrowser) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pages := make([]*chromedpPage, 0, len(b.known))
	for _, p := range b.known {
		pages = append(pages, p)
	}
	b.known = make(map[target.ID]*chromedpPage)
	b.mu.Unlock()

	for _, p := range pages {
		p.cancel()
	}
	if err := chromedp.Cancel(b.rootCtx); err != nil {
		b.teardown()
		return fmt.Errorf("close browser: %w", err)
	}
	b.teardown()
	return nil
}

func sameSiteFromCDP(v network.CookieSameSite) string {
	switch v {
	case network.CookieSameSiteStrict:
		return "Strict"
	case network.CookieSameSiteLax:
		return "Lax"
	case network.CookieSameSiteNone:
		return "None"
	}
	return ""
}

func sameSiteToCDP(v string) network.CookieSameSite {
	switch v {
	case "Strict":
		return network.CookieSameSiteStrict
	case "None":
		return network.CookieSameSiteNone
	case "Lax":
		return network.CookieSameSiteLax
	}
	return ""
}

type chromedpPage struct {
	targetID target.ID
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	url     string
	closed  bool
	onClose []func()
}

func newChromedpPage(id target.ID, ctx context.Context, cancel context.CancelFunc) *chromedpPage {
	return &chromedpPage{targetID: id, ctx: ctx, cancel: cancel, url: "about:blank"}
}

// watch wires navigation tracking and close detection for the page target.
func (p *chromedpPage) watch() {
	chromedp.ListenTarget(p.ctx, func(ev any) {
		if nav, ok := ev.(*page.EventFrameNavigated); ok && nav.Frame.ParentID == "" {
			p.mu.Lock()
			p.url = nav.Frame.URL
			p.mu.Unlock()
		}
	})
	go func() {
		<-p.ctx.Done()
		p.fireClose()
	}()
}

func (p *chromedpPage) ID() string { return string(p.targetID) }

func (p *chromedpPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *chromedpPage) Goto(ctx context.Context, url string) error {
	if err := runUnder(ctx, p.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *chromedpPage) Reload(ctx context.Context) error {
	if err := runUnder(ctx, p.ctx, chromedp.Reload()); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

func (p *chromedpPage) Content(ctx context.Context) (string, error) {
	var html string
	if err := runUnder(ctx, p.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("page content: %w", err)
	}
	return html, nil
}

func (p *chromedpPage) Evaluate(ctx context.Context, script string) (any, error) {
	var res any
	if err := runUnder(ctx, p.ctx, chromedp.Evaluate(script, &res)); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return res, nil
}

func (p *chromedpPage) Fill(ctx context.Context, selector, value string) error {
	if err := runUnder(ctx, p.ctx, chromedp.SetValue(selector, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	if err := runUnder(ctx, p.ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (p *chromedpPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 90)
	}
	if err := runUnder(ctx, p.ctx, action); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

func (p *chromedpPage) StorageItems(ctx context.Context, kind StorageKind) (map[string]string, error) {
	v, err := p.Evaluate(ctx, storageDumpScript(kind))
	if err != nil {
		return nil, fmt.Errorf("read %s storage: %w", kind, err)
	}
	return toStringMap(v), nil
}

func (p *chromedpPage) SetStorageItem(ctx context.Context, kind StorageKind, key, value string) error {
	if _, err := p.Evaluate(ctx, storageSetScript(kind, key, value)); err != nil {
		return fmt.Errorf("write %s storage: %w", kind, err)
	}
	return nil
}

func (p *chromedpPage) OnClose(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		go fn()
		return
	}
	p.onClose = append(p.onClose, fn)
	p.mu.Unlock()
}

func (p *chromedpPage) fireClose() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	fns := p.onClose
	p.onClose = nil
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *chromedpPage) Close(ctx context.Context) error {
	_ = ctx
	p.cancel()
	p.fireClose()
	return nil
}
