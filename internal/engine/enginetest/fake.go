// Package enginetest provides an in-memory engine.Engine for tests, so
// registry, instance, and workflow behavior can be exercised without a
// real browser.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/WarDekar/BB-Browser/internal/engine"
)

// Fake implements engine.Engine. Zero value is usable.
type Fake struct {
	mu sync.Mutex

	// LaunchErr, when set, fails every Launch.
	LaunchErr error
	// CloseDelay and CloseErr apply to every browser this engine launches.
	CloseDelay time.Duration
	CloseErr   error

	browsers []*Browser
}

func New() *Fake { return &Fake{} }

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Launch(ctx context.Context, opts engine.LaunchOptions) (engine.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LaunchErr != nil {
		return nil, f.LaunchErr
	}
	b := &Browser{
		Opts:       opts,
		closeDelay: f.CloseDelay,
		closeErr:   f.CloseErr,
	}
	f.browsers = append(f.browsers, b)
	return b, nil
}

func (f *Fake) Close() error { return nil }

// Browsers returns every browser launched so far.
func (f *Fake) Browsers() []*Browser {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Browser(nil), f.browsers...)
}

// Browser is a fake engine.Browser backed by maps.
type Browser struct {
	Opts engine.LaunchOptions

	mu         sync.Mutex
	cookies    []engine.Cookie
	pages      []*Page
	onPage     []func(engine.Page)
	nextPageID int
	closed     bool
	closeDelay time.Duration
	closeErr   error
}

func (b *Browser) NewPage(ctx context.Context) (engine.Page, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("browser closed")
	}
	b.nextPageID++
	p := &Page{
		id:      fmt.Sprintf("fake-page-%d", b.nextPageID),
		url:     "about:blank",
		local:   make(map[string]string),
		session: make(map[string]string),
	}
	b.pages = append(b.pages, p)
	fns := append([]func(engine.Page){}, b.onPage...)
	b.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
	return p, nil
}

func (b *Browser) Cookies(ctx context.Context) ([]engine.Cookie, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]engine.Cookie(nil), b.cookies...), nil
}

// AddCookies replaces cookies sharing name+domain+path, mirroring real
// browser jars so repeated injection stays idempotent.
func (b *Browser) AddCookies(ctx context.Context, cookies []engine.Cookie) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range cookies {
		replaced := false
		for i, have := range b.cookies {
			if have.Name == c.Name && have.Domain == c.Domain && have.Path == c.Path {
				b.cookies[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			b.cookies = append(b.cookies, c)
		}
	}
	return nil
}

func (b *Browser) ClearCookies(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cookies = nil
	return nil
}

func (b *Browser) OnPage(fn func(engine.Page)) {
	b.mu.Lock()
	b.onPage = append(b.onPage, fn)
	existing := append([]*Page(nil), b.pages...)
	b.mu.Unlock()
	for _, p := range existing {
		fn(p)
	}
}

func (b *Browser) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	delay := b.closeDelay
	closeErr := b.closeErr
	pages := append([]*Page(nil), b.pages...)
	b.pages = nil
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	for _, p := range pages {
		p.fireClose()
	}
	return closeErr
}

// SetCloseErr makes this browser's Close return err.
func (b *Browser) SetCloseErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeErr = err
}

// Closed reports whether Close ran.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Page is a fake engine.Page. EvalHook, when set, handles Evaluate calls.
type Page struct {
	mu      sync.Mutex
	id      string
	url     string
	local   map[string]string
	session map[string]string
	reloads int
	closed  bool
	onClose []func()

	// GotoErr fails the next navigation when set.
	GotoErr error
	// StorageErr makes storage reads fail, as on an unnavigated page.
	StorageErr error
	// EvalHook services Evaluate calls; nil evaluates to nil.
	EvalHook func(script string) (any, error)
}

func (p *Page) ID() string { return p.id }

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Goto(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.GotoErr != nil {
		return p.GotoErr
	}
	p.url = url
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
	return nil
}

// Reloads reports how many times Reload ran.
func (p *Page) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Page) Content(ctx context.Context) (string, error) {
	return "<html></html>", nil
}

func (p *Page) Evaluate(ctx context.Context, script string) (any, error) {
	p.mu.Lock()
	hook := p.EvalHook
	p.mu.Unlock()
	if hook != nil {
		return hook(script)
	}
	return nil, nil
}

func (p *Page) Fill(ctx context.Context, selector, value string) error { return nil }

func (p *Page) Click(ctx context.Context, selector string) error { return nil }

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return []byte("fake-image"), nil
}

func (p *Page) StorageItems(ctx context.Context, kind engine.StorageKind) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StorageErr != nil {
		return nil, p.StorageErr
	}
	src := p.local
	if kind == engine.StorageSession {
		src = p.session
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out, nil
}

func (p *Page) SetStorageItem(ctx context.Context, kind engine.StorageKind, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StorageErr != nil {
		return p.StorageErr
	}
	if kind == engine.StorageSession {
		p.session[key] = value
	} else {
		p.local[key] = value
	}
	return nil
}

// SeedStorage writes storage directly, bypassing error injection.
func (p *Page) SeedStorage(kind engine.StorageKind, items map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dst := p.local
	if kind == engine.StorageSession {
		dst = p.session
	}
	for k, v := range items {
		dst[k] = v
	}
}

func (p *Page) OnClose(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fn()
		return
	}
	p.onClose = append(p.onClose, fn)
	p.mu.Unlock()
}

func (p *Page) fireClose() {
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

func (p *Page) Close(ctx context.Context) error {
	p.fireClose()
	return nil
}
