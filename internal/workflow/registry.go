package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/WarDekar/BB-Browser/internal/browser"
)

// Registry maps site tags to workflow factories and caches the live
// workflow built for each site. Factories register under a tag; sites
// resolve to a factory by exact tag match first, then by the longest
// registered tag contained in the site ID.
type Registry struct {
	deps Deps

	mu        sync.Mutex
	factories map[string]Factory
	sites     map[string]SiteConfig
	live      map[string]Workflow
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:      deps,
		factories: make(map[string]Factory),
		sites:     make(map[string]SiteConfig),
		live:      make(map[string]Workflow),
	}
}

// Register binds a factory to a tag. Later registrations under the same
// tag win.
func (r *Registry) Register(tag string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(tag)] = f
}

// AddSite stores or replaces a site configuration. A replaced config
// does not touch an already-live workflow; Close it first to rebuild.
func (r *Registry) AddSite(cfg SiteConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return browser.NewError(browser.CodeValidation, "site id is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites[cfg.ID] = cfg
	return nil
}

// RemoveSite drops a site config and returns any live workflow that must
// be closed by the caller.
func (r *Registry) RemoveSite(id string) Workflow {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sites, id)
	wf := r.live[id]
	delete(r.live, id)
	return wf
}

// Sites lists configured sites sorted by ID.
func (r *Registry) Sites() []SiteConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SiteConfig, 0, len(r.sites))
	for _, cfg := range r.sites {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Site returns one site config.
func (r *Registry) Site(id string) (SiteConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.sites[id]
	if !ok {
		return SiteConfig{}, browser.NewError(browser.CodeSiteNotFound, "site not configured: "+id, nil)
	}
	return cfg, nil
}

// GetOrCreate returns the live workflow for a site, building it on first
// use. Resolution tries an exact factory tag match against the site ID,
// then falls back to the longest registered tag that is a substring of
// the ID.
func (r *Registry) GetOrCreate(id string) (Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wf, ok := r.live[id]; ok {
		return wf, nil
	}
	cfg, ok := r.sites[id]
	if !ok {
		return nil, browser.NewError(browser.CodeSiteNotFound, "site not configured: "+id, nil)
	}
	f, err := r.resolveLocked(cfg.ID)
	if err != nil {
		return nil, err
	}
	wf := f(r.deps, cfg)
	r.live[id] = wf
	return wf, nil
}

func (r *Registry) resolveLocked(id string) (Factory, error) {
	key := strings.ToLower(id)
	if f, ok := r.factories[key]; ok {
		return f, nil
	}
	// Fall back to the longest tag contained in the site ID so that
	// "pinnacle-eu" still resolves to the "pinnacle" workflow.
	var bestTag string
	var best Factory
	for tag, f := range r.factories {
		if strings.Contains(key, tag) && len(tag) > len(bestTag) {
			bestTag, best = tag, f
		}
	}
	if best == nil {
		return nil, browser.NewError(browser.CodeWorkflowNotRegistered, "no workflow registered for site: "+id, nil)
	}
	slog.Warn("no exact workflow match, using substring fallback", "site", id, "tag", bestTag)
	return best, nil
}

// Init resolves or creates the site's workflow and brings it to ready.
func (r *Registry) Init(ctx context.Context, id string) (Workflow, error) {
	wf, err := r.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	if err := wf.Init(ctx); err != nil {
		return nil, err
	}
	return wf, nil
}

// Live lists status snapshots for every live workflow, sorted by site.
func (r *Registry) Live() []StatusInfo {
	r.mu.Lock()
	workflows := make([]Workflow, 0, len(r.live))
	for _, wf := range r.live {
		workflows = append(workflows, wf)
	}
	r.mu.Unlock()

	out := make([]StatusInfo, 0, len(workflows))
	for _, wf := range workflows {
		out = append(out, snapshot(wf, r.deps.Instances))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Site < out[j].Site })
	return out
}

// Status reports one live workflow's snapshot; a configured but
// never-initialized site reports as uninitialized.
func (r *Registry) Status(id string) (StatusInfo, error) {
	r.mu.Lock()
	wf, ok := r.live[id]
	_, configured := r.sites[id]
	r.mu.Unlock()

	if !ok {
		if !configured {
			return StatusInfo{}, browser.NewError(browser.CodeSiteNotFound, "site not configured: "+id, nil)
		}
		return StatusInfo{Site: id, State: StateUninitialized, LoginState: LoginUnknown}, nil
	}
	return snapshot(wf, r.deps.Instances), nil
}

func snapshot(wf Workflow, instances *browser.Registry) StatusInfo {
	info := StatusInfo{
		Site:       wf.Site().ID,
		State:      wf.State(),
		LoginState: wf.LoginState(),
	}
	if inst, ok := instances.Get(wf.Site().ID); ok {
		ii := inst.Info()
		info.Instance = ii.Name
		info.InstStatus = ii.Status
	}
	return info
}

// CloseSite tears down one live workflow. Closing a site that was never
// initialized is a no-op.
func (r *Registry) CloseSite(ctx context.Context, id string) error {
	r.mu.Lock()
	wf, ok := r.live[id]
	delete(r.live, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return wf.Close(ctx)
}

// CloseAll tears down every live workflow and then every remaining
// instance in the shared registry, collecting errors.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	workflows := make([]Workflow, 0, len(r.live))
	for _, wf := range r.live {
		workflows = append(workflows, wf)
	}
	r.live = make(map[string]Workflow)
	r.mu.Unlock()

	var errs []error
	for _, wf := range workflows {
		if err := wf.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.deps.Instances.CloseAll(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
