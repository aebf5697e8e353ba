// Package workflow drives site-specific login and scrape sequences on top
// of browser instances. One live workflow exists per configured site.
package workflow

import (
	"context"
	"time"

	"github.com/WarDekar/BB-Browser/internal/browser"
	"github.com/WarDekar/BB-Browser/internal/engine"
	"github.com/WarDekar/BB-Browser/internal/notify"
)

// State is a workflow's coarse lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
)

// LoginState is the login sub-state within a ready workflow.
type LoginState string

const (
	LoginUnknown  LoginState = "unknown"
	LoginChecking LoginState = "checking"
	LoggedIn      LoginState = "logged-in"
	AwaitingLogin LoginState = "awaiting-login"
)

// SiteConfig describes one site a workflow can run against.
type SiteConfig struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	// LoginURL is the login surface when it differs from BaseURL.
	LoginURL string `json:"login_url,omitempty"`
	// LoggedInSelector drives the generic workflow's login predicate.
	LoggedInSelector string `json:"logged_in_selector,omitempty"`
	// ProxyID references an entry in the proxies file; the resolved proxy
	// is attached at load time.
	ProxyID     string              `json:"proxy_id,omitempty"`
	Proxy       *engine.ProxyConfig `json:"-"`
	SessionName string              `json:"session_name,omitempty"`
	Headless    bool                `json:"headless,omitempty"`
}

// Session returns the configured session name, defaulting to
// "{id}-session".
func (c SiteConfig) Session() string {
	if c.SessionName != "" {
		return c.SessionName
	}
	return c.ID + "-session"
}

// Result is the uniform envelope every workflow operation returns.
// Expected failures (login timeout, missing config) are Success=false
// results, never errors across the registry boundary.
type Result[T any] struct {
	Success   bool      `json:"success"`
	Data      T         `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OK wraps data in a successful result.
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data, Timestamp: time.Now()}
}

// Fail wraps an expected failure in a result.
func Fail[T any](msg string) Result[T] {
	return Result[T]{Success: false, Error: msg, Timestamp: time.Now()}
}

// LoginInfo reports the outcome of a login attempt.
type LoginInfo struct {
	LoggedIn bool          `json:"logged_in"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// StatusInfo is a snapshot of one live workflow for listings.
type StatusInfo struct {
	Site       string         `json:"site"`
	State      State          `json:"state"`
	LoginState LoginState     `json:"login_state"`
	Instance   string         `json:"instance,omitempty"`
	InstStatus browser.Status `json:"instance_status,omitempty"`
}

// Workflow is the capability every site variant implements.
type Workflow interface {
	Site() SiteConfig
	State() State
	LoginState() LoginState
	// Init obtains or creates the site's instance, restores its session
	// when one exists, and navigates to the base URL. Idempotent per
	// call; not safe for concurrent invocation on one workflow.
	Init(ctx context.Context) error
	// IsLoggedIn is a pure predicate over current page state. It never
	// navigates or mutates; it is polled.
	IsLoggedIn(ctx context.Context) (bool, error)
	// Login waits (bounded) for the user to finish logging in, persisting
	// the session on first success. Timeout is a reported condition.
	Login(ctx context.Context) Result[LoginInfo]
	SaveSession(ctx context.Context) error
	// LoadSession reports whether a stored session existed and was
	// applied.
	LoadSession(ctx context.Context) (bool, error)
	Close(ctx context.Context) error
}

// Deps carries the collaborators a workflow needs; constructed once at
// startup and passed explicitly, never via package state.
type Deps struct {
	Instances *browser.Registry
	Notifier  *notify.Notifier
	// PollInterval and PollTimeout bound the login wait; zero values take
	// the defaults (2s / 5m).
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Factory builds one workflow variant for one site.
type Factory func(deps Deps, site SiteConfig) Workflow
