// Package controller is the facade the HTTP layer calls into. It owns
// input validation and delegates to the instance, session, and workflow
// layers.
package controller

import (
	"context"
	"strings"

	"github.com/WarDekar/BB-Browser/internal/browser"
	"github.com/WarDekar/BB-Browser/internal/config"
	"github.com/WarDekar/BB-Browser/internal/session"
	"github.com/WarDekar/BB-Browser/internal/workflow"
)

// Service wraps the agent's operations behind one surface.
type Service struct {
	instances *browser.Registry
	sessions  *session.Store
	workflows *workflow.Registry
	sites     *config.SiteStore
}

func NewService(instances *browser.Registry, sessions *session.Store, workflows *workflow.Registry, sites *config.SiteStore) *Service {
	return &Service{
		instances: instances,
		sessions:  sessions,
		workflows: workflows,
		sites:     sites,
	}
}

func requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return browser.NewError(browser.CodeValidation, fieldName+" is required", nil)
	}
	return nil
}

// --- Instances ---

func (s *Service) CreateInstance(ctx context.Context, cfg browser.InstanceConfig, sessionName string) (browser.InstanceInfo, error) {
	if err := requireNonEmpty(cfg.Name, "name"); err != nil {
		return browser.InstanceInfo{}, err
	}
	var inst *browser.Instance
	var err error
	if sessionName != "" {
		inst, err = s.instances.CreateWithSession(ctx, cfg, sessionName)
	} else {
		inst, err = s.instances.Create(ctx, cfg)
	}
	if err != nil {
		return browser.InstanceInfo{}, err
	}
	return inst.Info(), nil
}

func (s *Service) ListInstances(ctx context.Context) []browser.InstanceInfo {
	return s.instances.List()
}

func (s *Service) GetInstance(ctx context.Context, name string) (browser.InstanceInfo, error) {
	inst, ok := s.instances.Get(strings.TrimSpace(name))
	if !ok {
		return browser.InstanceInfo{}, browser.NewError(browser.CodeInstanceNotFound, "instance not found: "+name, nil)
	}
	return inst.Info(), nil
}

func (s *Service) CloseInstance(ctx context.Context, name string) error {
	return s.instances.Close(ctx, strings.TrimSpace(name))
}

func (s *Service) CloseAllInstances(ctx context.Context) error {
	return s.instances.CloseAll(ctx)
}

// --- Page operations ---

func (s *Service) instance(name string) (*browser.Instance, error) {
	inst, ok := s.instances.Get(strings.TrimSpace(name))
	if !ok {
		return nil, browser.NewError(browser.CodeInstanceNotFound, "instance not found: "+name, nil)
	}
	return inst, nil
}

func (s *Service) NewPage(ctx context.Context, name string) (browser.PageInfo, error) {
	inst, err := s.instance(name)
	if err != nil {
		return browser.PageInfo{}, err
	}
	p, err := inst.NewPage(ctx)
	if err != nil {
		return browser.PageInfo{}, err
	}
	return browser.PageInfo{ID: p.ID(), URL: p.URL()}, nil
}

func (s *Service) Goto(ctx context.Context, name, url string) error {
	if err := requireNonEmpty(url, "url"); err != nil {
		return err
	}
	inst, err := s.instance(name)
	if err != nil {
		return err
	}
	return inst.Goto(ctx, strings.TrimSpace(url))
}

func (s *Service) Content(ctx context.Context, name string) (string, error) {
	inst, err := s.instance(name)
	if err != nil {
		return "", err
	}
	return inst.Content(ctx)
}

func (s *Service) Screenshot(ctx context.Context, name string, fullPage bool) ([]byte, error) {
	inst, err := s.instance(name)
	if err != nil {
		return nil, err
	}
	return inst.Screenshot(ctx, fullPage)
}

func (s *Service) Eval(ctx context.Context, name, script string) (any, error) {
	if err := requireNonEmpty(script, "script"); err != nil {
		return nil, err
	}
	inst, err := s.instance(name)
	if err != nil {
		return nil, err
	}
	return inst.Eval(ctx, script)
}

func (s *Service) Fill(ctx context.Context, name, selector, value string) error {
	if err := requireNonEmpty(selector, "selector"); err != nil {
		return err
	}
	inst, err := s.instance(name)
	if err != nil {
		return err
	}
	return inst.Fill(ctx, strings.TrimSpace(selector), value)
}

func (s *Service) Click(ctx context.Context, name, selector string) error {
	if err := requireNonEmpty(selector, "selector"); err != nil {
		return err
	}
	inst, err := s.instance(name)
	if err != nil {
		return err
	}
	return inst.Click(ctx, strings.TrimSpace(selector))
}

// --- Sessions ---

func (s *Service) SaveSession(ctx context.Context, instanceName, sessionName string) (*session.Record, error) {
	if err := requireNonEmpty(sessionName, "session name"); err != nil {
		return nil, err
	}
	return s.instances.SaveSession(ctx, strings.TrimSpace(instanceName), strings.TrimSpace(sessionName))
}

func (s *Service) LoadSession(ctx context.Context, instanceName, sessionName string) error {
	if err := requireNonEmpty(sessionName, "session name"); err != nil {
		return err
	}
	return s.instances.LoadSession(ctx, strings.TrimSpace(instanceName), strings.TrimSpace(sessionName))
}

func (s *Service) ListSessions(ctx context.Context) ([]string, error) {
	return s.sessions.List()
}

func (s *Service) GetSession(ctx context.Context, name string) (*session.Record, error) {
	rec, err := s.sessions.Load(strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, browser.NewError(browser.CodeSessionNotFound, "session not found: "+name, nil)
	}
	return rec, nil
}

func (s *Service) DeleteSession(ctx context.Context, name string) error {
	return s.sessions.Delete(strings.TrimSpace(name))
}

// --- Sites and workflows ---

func (s *Service) ListSites(ctx context.Context) []workflow.SiteConfig {
	return s.workflows.Sites()
}

// UpsertSite persists the site and makes it resolvable immediately. A
// live workflow built from the previous config keeps running until its
// site is closed.
func (s *Service) UpsertSite(ctx context.Context, cfg workflow.SiteConfig) error {
	if err := requireNonEmpty(cfg.ID, "site id"); err != nil {
		return err
	}
	if err := s.sites.UpsertSite(cfg); err != nil {
		return err
	}
	return s.workflows.AddSite(cfg)
}

func (s *Service) DeleteSite(ctx context.Context, id string) error {
	if err := s.sites.DeleteSite(strings.TrimSpace(id)); err != nil {
		return err
	}
	if wf := s.workflows.RemoveSite(strings.TrimSpace(id)); wf != nil {
		return wf.Close(ctx)
	}
	return nil
}

func (s *Service) InitSite(ctx context.Context, id string) (workflow.StatusInfo, error) {
	if _, err := s.workflows.Init(ctx, strings.TrimSpace(id)); err != nil {
		return workflow.StatusInfo{}, err
	}
	return s.workflows.Status(strings.TrimSpace(id))
}

// LoginSite initializes the site when needed and then watches for the
// user to complete the login. Expected failures (timeout) come back in
// the result, not as an error.
func (s *Service) LoginSite(ctx context.Context, id string) (workflow.Result[workflow.LoginInfo], error) {
	wf, err := s.workflows.GetOrCreate(strings.TrimSpace(id))
	if err != nil {
		return workflow.Result[workflow.LoginInfo]{}, err
	}
	if wf.State() != workflow.StateReady {
		if err := wf.Init(ctx); err != nil {
			return workflow.Result[workflow.LoginInfo]{}, err
		}
	}
	return wf.Login(ctx), nil
}

func (s *Service) SiteStatus(ctx context.Context, id string) (workflow.StatusInfo, error) {
	return s.workflows.Status(strings.TrimSpace(id))
}

func (s *Service) SiteStatuses(ctx context.Context) []workflow.StatusInfo {
	return s.workflows.Live()
}

func (s *Service) CloseSite(ctx context.Context, id string) error {
	return s.workflows.CloseSite(ctx, strings.TrimSpace(id))
}

// --- Proxies ---

func (s *Service) ListProxies(ctx context.Context) ([]config.ProxyEntry, error) {
	return s.sites.Proxies()
}

func (s *Service) UpsertProxy(ctx context.Context, entry config.ProxyEntry) error {
	if err := requireNonEmpty(entry.ID, "proxy id"); err != nil {
		return err
	}
	if err := requireNonEmpty(entry.Server, "proxy server"); err != nil {
		return err
	}
	return s.sites.UpsertProxy(entry)
}

func (s *Service) DeleteProxy(ctx context.Context, id string) error {
	return s.sites.DeleteProxy(strings.TrimSpace(id))
}

// --- Events ---

// Events exposes the instance registry's notification hub so transports
// can stream lifecycle events.
func (s *Service) Events() *browser.Hub {
	return s.instances.Events()
}
