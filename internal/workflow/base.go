package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/WarDekar/BB-Browser/internal/browser"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 5 * time.Minute
)

// SiteWorkflow is the shared engine behind every variant. Variants supply
// a probe over current page state; everything else (instance lifecycle,
// session restore, the login wait loop) lives here. The mutex guards the
// mutable state so status reads stay safe while Login blocks its caller.
type SiteWorkflow struct {
	deps  Deps
	site  SiteConfig
	probe func(ctx context.Context, inst *browser.Instance) (bool, error)

	mu         sync.Mutex
	state      State
	loginState LoginState
	inst       *browser.Instance
}

// NewSiteWorkflow wires a variant's probe into the shared machinery.
func NewSiteWorkflow(deps Deps, site SiteConfig, probe func(ctx context.Context, inst *browser.Instance) (bool, error)) *SiteWorkflow {
	return &SiteWorkflow{
		deps:       deps,
		site:       site,
		probe:      probe,
		state:      StateUninitialized,
		loginState: LoginUnknown,
	}
}

func (w *SiteWorkflow) Site() SiteConfig     { return w.site }
func (w *SiteWorkflow) instanceName() string { return w.site.ID }

func (w *SiteWorkflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *SiteWorkflow) LoginState() LoginState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loginState
}

func (w *SiteWorkflow) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *SiteWorkflow) setLoginState(s LoginState) {
	w.mu.Lock()
	w.loginState = s
	w.mu.Unlock()
}

func (w *SiteWorkflow) instance() *browser.Instance {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inst
}

func (w *SiteWorkflow) pollInterval() time.Duration {
	if w.deps.PollInterval > 0 {
		return w.deps.PollInterval
	}
	return defaultPollInterval
}

func (w *SiteWorkflow) pollTimeout() time.Duration {
	if w.deps.PollTimeout > 0 {
		return w.deps.PollTimeout
	}
	return defaultPollTimeout
}

// Init brings the workflow to ready: a live instance named after the
// site, a restored session when one exists, and the base URL loaded.
func (w *SiteWorkflow) Init(ctx context.Context) error {
	if cur := w.instance(); w.State() == StateReady && cur != nil && cur.Info().Status != browser.StatusClosed {
		return nil
	}
	w.setState(StateInitializing)

	inst, ok := w.deps.Instances.Get(w.instanceName())
	if !ok {
		cfg := browser.InstanceConfig{
			Name:     w.instanceName(),
			Headless: w.site.Headless,
			Proxy:    w.site.Proxy,
		}
		var err error
		inst, err = w.deps.Instances.CreateWithSession(ctx, cfg, w.site.Session())
		if err != nil {
			w.setState(StateUninitialized)
			return fmt.Errorf("init %s: %w", w.site.ID, err)
		}
	}

	if w.site.BaseURL != "" {
		if err := inst.Goto(ctx, w.site.BaseURL); err != nil {
			w.setState(StateUninitialized)
			return fmt.Errorf("init %s: open %s: %w", w.site.ID, w.site.BaseURL, err)
		}
	}

	w.mu.Lock()
	w.inst = inst
	w.state = StateReady
	w.loginState = LoginUnknown
	w.mu.Unlock()
	slog.Info("workflow initialized", "site", w.site.ID, "instance", w.instanceName())
	return nil
}

// IsLoggedIn evaluates the variant's probe against current page state.
func (w *SiteWorkflow) IsLoggedIn(ctx context.Context) (bool, error) {
	inst := w.instance()
	if inst == nil {
		return false, browser.NewError(browser.CodeNotLaunched, "workflow not initialized", nil)
	}
	return w.probe(ctx, inst)
}

// Login polls the probe until it reports logged-in or the wait budget is
// spent. The user completes the login interactively in the (headful)
// browser; this loop only watches. On first success the session is saved
// and the notifier pinged. Timeout comes back as an unsuccessful result,
// not an error.
func (w *SiteWorkflow) Login(ctx context.Context) Result[LoginInfo] {
	inst := w.instance()
	if inst == nil {
		return Fail[LoginInfo]("workflow not initialized")
	}
	start := time.Now()

	w.setLoginState(LoginChecking)
	if ok, err := w.IsLoggedIn(ctx); err == nil && ok {
		return w.loginSucceeded(ctx, start)
	}

	if url := w.loginURL(); url != "" {
		if err := inst.Goto(ctx, url); err != nil {
			w.setLoginState(LoginUnknown)
			return Fail[LoginInfo](fmt.Sprintf("open login page: %v", err))
		}
	}
	w.setLoginState(AwaitingLogin)
	if w.deps.Notifier.Enabled() {
		if err := w.deps.Notifier.LoginRequired(ctx, w.site.Name); err != nil {
			slog.Debug("login notification failed", "site", w.site.ID, "error", err)
		}
	}
	slog.Info("waiting for login", "site", w.site.ID, "timeout", w.pollTimeout())

	ticker := time.NewTicker(w.pollInterval())
	defer ticker.Stop()
	deadline := time.NewTimer(w.pollTimeout())
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			w.setLoginState(LoginUnknown)
			return Fail[LoginInfo](fmt.Sprintf("login wait canceled: %v", ctx.Err()))
		case <-deadline.C:
			w.setLoginState(AwaitingLogin)
			slog.Warn("login wait timed out", "site", w.site.ID, "elapsed", time.Since(start))
			return Result[LoginInfo]{
				Success:   false,
				Data:      LoginInfo{TimedOut: true, Elapsed: time.Since(start)},
				Error:     "timed out waiting for login",
				Timestamp: time.Now(),
			}
		case <-ticker.C:
			ok, err := w.IsLoggedIn(ctx)
			if err != nil {
				slog.Debug("login probe failed", "site", w.site.ID, "error", err)
				continue
			}
			if ok {
				return w.loginSucceeded(ctx, start)
			}
		}
	}
}

func (w *SiteWorkflow) loginSucceeded(ctx context.Context, start time.Time) Result[LoginInfo] {
	w.setLoginState(LoggedIn)
	elapsed := time.Since(start)
	slog.Info("login detected", "site", w.site.ID, "elapsed", elapsed)
	if err := w.SaveSession(ctx); err != nil {
		slog.Warn("session save after login failed", "site", w.site.ID, "error", err)
	}
	if w.deps.Notifier.Enabled() {
		if err := w.deps.Notifier.LoginSucceeded(ctx, w.site.Name); err != nil {
			slog.Debug("login notification failed", "site", w.site.ID, "error", err)
		}
	}
	return OK(LoginInfo{LoggedIn: true, Elapsed: elapsed})
}

func (w *SiteWorkflow) loginURL() string {
	if w.site.LoginURL != "" {
		return w.site.LoginURL
	}
	return w.site.BaseURL
}

// SaveSession persists the instance's current cookies and storage under
// the site's session name.
func (w *SiteWorkflow) SaveSession(ctx context.Context) error {
	if w.instance() == nil {
		return browser.NewError(browser.CodeNotLaunched, "workflow not initialized", nil)
	}
	_, err := w.deps.Instances.SaveSession(ctx, w.instanceName(), w.site.Session())
	return err
}

// LoadSession applies the stored session when one exists.
func (w *SiteWorkflow) LoadSession(ctx context.Context) (bool, error) {
	if w.instance() == nil {
		return false, browser.NewError(browser.CodeNotLaunched, "workflow not initialized", nil)
	}
	err := w.deps.Instances.LoadSession(ctx, w.instanceName(), w.site.Session())
	if err != nil {
		var ce *browser.CodedError
		if errors.As(err, &ce) && ce.Code == browser.CodeSessionNotFound {
			return false, nil
		}
		return false, err
	}
	w.setLoginState(LoginUnknown)
	return true, nil
}

// Close tears down the workflow's instance. Idempotent.
func (w *SiteWorkflow) Close(ctx context.Context) error {
	w.mu.Lock()
	w.state = StateUninitialized
	w.loginState = LoginUnknown
	inst := w.inst
	w.inst = nil
	w.mu.Unlock()
	if inst == nil {
		return nil
	}
	if err := w.deps.Instances.Close(ctx, inst.Name()); err != nil {
		var ce *browser.CodedError
		if errors.As(err, &ce) && ce.Code == browser.CodeInstanceNotFound {
			return nil
		}
		return err
	}
	return nil
}

// selectorProbe builds a probe that reports logged-in when the given CSS
// selector matches an element on the current page.
func selectorProbe(selector string) func(ctx context.Context, inst *browser.Instance) (bool, error) {
	script := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	return func(ctx context.Context, inst *browser.Instance) (bool, error) {
		v, err := inst.Eval(ctx, script)
		if err != nil {
			return false, err
		}
		b, ok := v.(bool)
		return ok && b, nil
	}
}
