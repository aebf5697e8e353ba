// Package engine abstracts the browser automation driver. The rest of the
// agent only sees these interfaces; two backends exist, one on
// playwright-go and one on chromedp.
package engine

import "context"

// ProxyConfig describes an upstream proxy for one browser session.
type ProxyConfig struct {
	Server   string `json:"server"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Bypass   string `json:"bypass,omitempty"`
}

// Viewport is the page viewport size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// LaunchOptions configures a single browser session launch.
type LaunchOptions struct {
	Headless   bool
	Proxy      *ProxyConfig
	Viewport   *Viewport
	ProfileDir string
}

// Cookie is the engine-neutral cookie shape persisted in session records.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"same_site,omitempty"` // "Strict", "Lax", "None"
}

// Engine launches isolated browser sessions. One Engine serves the whole
// process; each Launch yields an independent Browser.
type Engine interface {
	// Name identifies the backend ("playwright" or "chromedp").
	Name() string
	// Launch starts a new isolated browser session.
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
	// Close shuts down the engine runtime itself. Browsers must be closed
	// by their owners first.
	Close() error
}

// Browser is one isolated browser session: a process or context with its
// own cookie jar and set of pages.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	AddCookies(ctx context.Context, cookies []Cookie) error
	ClearCookies(ctx context.Context) error
	// OnPage registers fn for every page the session creates, including
	// pages opened by the site itself (popups). Implementations replay
	// already-open pages to a newly registered fn, so a listener attached
	// right after Launch observes every page.
	OnPage(fn func(Page))
	Close(ctx context.Context) error
}

// Page is a single tab. URL reports the last known location without I/O.
type Page interface {
	ID() string
	URL() string
	Goto(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Content(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string) (any, error)
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	// StorageItems reads every key of one DOM storage area. It requires a
	// same-origin document; callers that tolerate unnavigated pages must
	// treat an error as an empty map.
	StorageItems(ctx context.Context, kind StorageKind) (map[string]string, error)
	SetStorageItem(ctx context.Context, kind StorageKind, key, value string) error
	// OnClose registers fn to run once when the page goes away, whether
	// through Close or the site closing its own window.
	OnClose(fn func())
	Close(ctx context.Context) error
}
