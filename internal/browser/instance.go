package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/WarDekar/BB-Browser/internal/engine"
	"github.com/WarDekar/BB-Browser/internal/session"
)

// Instance owns exactly one engine browser session and its pages. The
// current page is always the most recently created open page. Callers must
// sequence page-mutating operations against one Instance themselves;
// operations against different Instances are independent.
type Instance struct {
	name string
	cfg  InstanceConfig
	eng  engine.Engine
	hub  *Hub

	mu        sync.Mutex
	status    Status
	ops       int
	createdAt time.Time
	browser   engine.Browser
	pages     map[string]engine.Page
	pageOrder []string
}

// NewInstance builds an unlaunched instance. A nil hub disables event
// publication.
func NewInstance(cfg InstanceConfig, eng engine.Engine, hub *Hub) *Instance {
	return &Instance{
		name:      cfg.Name,
		cfg:       cfg,
		eng:       eng,
		hub:       hub,
		status:    StatusClosed,
		createdAt: time.Now(),
		pages:     make(map[string]engine.Page),
	}
}

func (inst *Instance) Name() string           { return inst.name }
func (inst *Instance) Config() InstanceConfig { return inst.cfg }
func (inst *Instance) CreatedAt() time.Time   { return inst.createdAt }

func (inst *Instance) Status() Status {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.status
}

func (inst *Instance) publish(ev Event) {
	if inst.hub == nil {
		return
	}
	ev.Instance = inst.name
	inst.hub.Publish(ev)
}

// Launch starts the engine session: closed → launching → ready. A second
// launch or an engine failure leaves the instance in error status and
// returns the failure to the caller.
func (inst *Instance) Launch(ctx context.Context) error {
	inst.mu.Lock()
	if inst.status != StatusClosed {
		inst.status = StatusError
		inst.mu.Unlock()
		return NewError(CodeValidation, fmt.Sprintf("instance %q already launched", inst.name), nil)
	}
	inst.status = StatusLaunching
	inst.mu.Unlock()
	inst.publish(Event{Type: EventInstanceCreated})

	b, err := inst.eng.Launch(ctx, engine.LaunchOptions{
		Headless:   inst.cfg.Headless,
		Proxy:      inst.cfg.Proxy,
		Viewport:   inst.cfg.Viewport,
		ProfileDir: inst.cfg.ProfileDir,
	})
	if err != nil {
		inst.mu.Lock()
		inst.status = StatusError
		inst.mu.Unlock()
		inst.publish(Event{Type: EventInstanceError, Detail: err.Error()})
		return NewError(CodeEngineFailure, fmt.Sprintf("launch instance %q", inst.name), err)
	}

	// Track pages before anything can navigate so no page is missed.
	b.OnPage(inst.trackPage)

	inst.mu.Lock()
	inst.browser = b
	inst.status = StatusReady
	inst.mu.Unlock()
	inst.publish(Event{Type: EventInstanceReady})
	return nil
}

func (inst *Instance) trackPage(p engine.Page) {
	id := p.ID()
	inst.mu.Lock()
	if _, ok := inst.pages[id]; ok {
		inst.mu.Unlock()
		return
	}
	inst.pages[id] = p
	inst.pageOrder = append(inst.pageOrder, id)
	inst.mu.Unlock()

	p.OnClose(func() { inst.dropPage(id) })
	inst.publish(Event{Type: EventPageOpened, Page: id, URL: p.URL()})
}

func (inst *Instance) dropPage(id string) {
	inst.mu.Lock()
	if _, ok := inst.pages[id]; !ok {
		inst.mu.Unlock()
		return
	}
	delete(inst.pages, id)
	for i, pid := range inst.pageOrder {
		if pid == id {
			inst.pageOrder = append(inst.pageOrder[:i], inst.pageOrder[i+1:]...)
			break
		}
	}
	inst.mu.Unlock()
	inst.publish(Event{Type: EventPageClosed, Page: id})
}

// beginOp gates an operation on the instance being launched and marks it
// busy for the duration.
func (inst *Instance) beginOp() (func(), error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.status != StatusReady && inst.status != StatusBusy {
		return nil, NewError(CodeNotLaunched, fmt.Sprintf("instance %q not launched", inst.name), nil)
	}
	inst.ops++
	inst.status = StatusBusy
	return func() {
		inst.mu.Lock()
		inst.ops--
		if inst.ops == 0 && inst.status == StatusBusy {
			inst.status = StatusReady
		}
		inst.mu.Unlock()
	}, nil
}

// CurrentPage returns the most recently created open page, or nil.
func (inst *Instance) CurrentPage() engine.Page {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.currentPageLocked()
}

func (inst *Instance) currentPageLocked() engine.Page {
	if len(inst.pageOrder) == 0 {
		return nil
	}
	return inst.pages[inst.pageOrder[len(inst.pageOrder)-1]]
}

// NewPage opens a new page, which becomes the current page.
func (inst *Instance) NewPage(ctx context.Context) (engine.Page, error) {
	done, err := inst.beginOp()
	if err != nil {
		return nil, err
	}
	defer done()
	return inst.newPage(ctx)
}

func (inst *Instance) newPage(ctx context.Context) (engine.Page, error) {
	inst.mu.Lock()
	b := inst.browser
	inst.mu.Unlock()
	if b == nil {
		return nil, NewError(CodeNotLaunched, fmt.Sprintf("instance %q not launched", inst.name), nil)
	}
	p, err := b.NewPage(ctx)
	if err != nil {
		return nil, NewError(CodeEngineFailure, fmt.Sprintf("open page on %q", inst.name), err)
	}
	// The OnPage listener usually tracks the page first; this is the
	// fallback when the engine delivers the event asynchronously.
	inst.trackPage(p)
	return p, nil
}

// Goto navigates the current page, creating one first when none is open.
func (inst *Instance) Goto(ctx context.Context, url string) error {
	done, err := inst.beginOp()
	if err != nil {
		return err
	}
	defer done()

	p := inst.CurrentPage()
	if p == nil {
		if p, err = inst.newPage(ctx); err != nil {
			return err
		}
	}
	if err := p.Goto(ctx, url); err != nil {
		return NewError(CodeEngineFailure, fmt.Sprintf("navigate %q to %s", inst.name, url), err)
	}
	inst.publish(Event{Type: EventNavigated, Page: p.ID(), URL: url})
	return nil
}

// ExtractSessionState reads context-scope cookies plus the current page's
// DOM storage. With no current page, or when storage cannot be read (page
// never navigated), the storage maps are empty rather than the extraction
// failing.
func (inst *Instance) ExtractSessionState(ctx context.Context) (*session.Record, error) {
	done, err := inst.beginOp()
	if err != nil {
		return nil, err
	}
	defer done()

	inst.mu.Lock()
	b := inst.browser
	inst.mu.Unlock()
	// A concurrent Close can land between beginOp and here.
	if b == nil {
		return nil, NewError(CodeNotLaunched, fmt.Sprintf("instance %q not launched", inst.name), nil)
	}

	cookies, err := b.Cookies(ctx)
	if err != nil {
		return nil, NewError(CodeEngineFailure, fmt.Sprintf("read cookies from %q", inst.name), err)
	}

	rec := &session.Record{
		Instance:       inst.name,
		Cookies:        cookies,
		LocalStorage:   map[string]string{},
		SessionStorage: map[string]string{},
	}

	p := inst.CurrentPage()
	if p == nil {
		return rec, nil
	}
	rec.LastURL = p.URL()
	if items, err := p.StorageItems(ctx, engine.StorageLocal); err != nil {
		slog.Debug("local storage unreadable, extracting empty", "instance", inst.name, "error", err)
	} else {
		rec.LocalStorage = items
	}
	if items, err := p.StorageItems(ctx, engine.StorageSession); err != nil {
		slog.Debug("session storage unreadable, extracting empty", "instance", inst.name, "error", err)
	} else {
		rec.SessionStorage = items
	}
	return rec, nil
}

// InjectSessionState applies a saved record: cookies first, then a
// same-origin document (navigate to the record's last URL), then storage
// key by key, then a reload so the application picks the state up.
// Injecting the same record twice produces the same final state.
func (inst *Instance) InjectSessionState(ctx context.Context, rec *session.Record) error {
	if rec == nil {
		return NewError(CodeValidation, "session record is required", nil)
	}
	done, err := inst.beginOp()
	if err != nil {
		return err
	}
	defer done()

	inst.mu.Lock()
	b := inst.browser
	inst.mu.Unlock()
	if b == nil {
		return NewError(CodeNotLaunched, fmt.Sprintf("instance %q not launched", inst.name), nil)
	}

	if len(rec.Cookies) > 0 {
		if err := b.AddCookies(ctx, rec.Cookies); err != nil {
			return NewError(CodeEngineFailure, fmt.Sprintf("inject cookies into %q", inst.name), err)
		}
	}

	p := inst.CurrentPage()
	if p == nil {
		if p, err = inst.newPage(ctx); err != nil {
			return err
		}
	}
	if rec.LastURL != "" {
		if err := p.Goto(ctx, rec.LastURL); err != nil {
			return NewError(CodeEngineFailure, fmt.Sprintf("navigate %q to %s", inst.name, rec.LastURL), err)
		}
	}

	if err := writeStorage(ctx, p, engine.StorageLocal, rec.LocalStorage); err != nil {
		return NewError(CodeEngineFailure, fmt.Sprintf("inject local storage into %q", inst.name), err)
	}
	if err := writeStorage(ctx, p, engine.StorageSession, rec.SessionStorage); err != nil {
		return NewError(CodeEngineFailure, fmt.Sprintf("inject session storage into %q", inst.name), err)
	}

	if err := p.Reload(ctx); err != nil {
		return NewError(CodeEngineFailure, fmt.Sprintf("reload %q after injection", inst.name), err)
	}
	return nil
}

func writeStorage(ctx context.Context, p engine.Page, kind engine.StorageKind, items map[string]string) error {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := p.SetStorageItem(ctx, kind, k, items[k]); err != nil {
			return err
		}
	}
	return nil
}

// Content returns the current page's HTML.
func (inst *Instance) Content(ctx context.Context) (string, error) {
	p, done, err := inst.requirePage()
	if err != nil {
		return "", err
	}
	defer done()
	html, err := p.Content(ctx)
	if err != nil {
		return "", NewError(CodeEngineFailure, fmt.Sprintf("read content from %q", inst.name), err)
	}
	return html, nil
}

// Screenshot captures the current page.
func (inst *Instance) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	p, done, err := inst.requirePage()
	if err != nil {
		return nil, err
	}
	defer done()
	img, err := p.Screenshot(ctx, fullPage)
	if err != nil {
		return nil, NewError(CodeEngineFailure, fmt.Sprintf("screenshot %q", inst.name), err)
	}
	return img, nil
}

// Eval evaluates a script on the current page.
func (inst *Instance) Eval(ctx context.Context, script string) (any, error) {
	p, done, err := inst.requirePage()
	if err != nil {
		return nil, err
	}
	defer done()
	res, err := p.Evaluate(ctx, script)
	if err != nil {
		return nil, NewError(CodeEngineFailure, fmt.Sprintf("evaluate on %q", inst.name), err)
	}
	return res, nil
}

// Fill sets a form field on the current page.
func (inst *Instance) Fill(ctx context.Context, selector, value string) error {
	p, done, err := inst.requirePage()
	if err != nil {
		return err
	}
	defer done()
	if err := p.Fill(ctx, selector, value); err != nil {
		return NewError(CodeEngineFailure, fmt.Sprintf("fill %s on %q", selector, inst.name), err)
	}
	return nil
}

// Click clicks an element on the current page.
func (inst *Instance) Click(ctx context.Context, selector string) error {
	p, done, err := inst.requirePage()
	if err != nil {
		return err
	}
	defer done()
	if err := p.Click(ctx, selector); err != nil {
		return NewError(CodeEngineFailure, fmt.Sprintf("click %s on %q", selector, inst.name), err)
	}
	return nil
}

func (inst *Instance) requirePage() (engine.Page, func(), error) {
	done, err := inst.beginOp()
	if err != nil {
		return nil, nil, err
	}
	p := inst.CurrentPage()
	if p == nil {
		done()
		return nil, nil, NewError(CodeNoPage, fmt.Sprintf("instance %q has no open page", inst.name), nil)
	}
	return p, done, nil
}

// Close tears down the engine session and clears all pages. Closing an
// already-closed instance is a no-op. The instance reaches closed status
// even when the engine teardown fails; that failure is still returned.
func (inst *Instance) Close(ctx context.Context) error {
	inst.mu.Lock()
	if inst.status == StatusClosed {
		inst.mu.Unlock()
		return nil
	}
	b := inst.browser
	inst.browser = nil
	inst.status = StatusClosed
	inst.pages = make(map[string]engine.Page)
	inst.pageOrder = nil
	inst.mu.Unlock()

	var err error
	if b != nil {
		err = b.Close(ctx)
	}
	inst.publish(Event{Type: EventInstanceClosed})
	if err != nil {
		return NewError(CodeEngineFailure, fmt.Sprintf("close instance %q", inst.name), err)
	}
	return nil
}

// Info returns a snapshot for listings.
func (inst *Instance) Info() InstanceInfo {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	pages := make([]PageInfo, 0, len(inst.pageOrder))
	for _, id := range inst.pageOrder {
		pages = append(pages, PageInfo{ID: id, URL: inst.pages[id].URL()})
	}
	info := InstanceInfo{
		Name:      inst.name,
		Status:    inst.status,
		Engine:    inst.eng.Name(),
		Headless:  inst.cfg.Headless,
		CreatedAt: inst.createdAt,
		Pages:     pages,
	}
	if p := inst.currentPageLocked(); p != nil {
		info.URL = p.URL()
	}
	return info
}
