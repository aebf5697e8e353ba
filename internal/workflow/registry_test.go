package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/WarDekar/BB-Browser/internal/browser"
)

func alwaysOut(deps Deps, site SiteConfig) Workflow {
	var never atomic.Bool
	return NewSiteWorkflow(deps, site, boolProbe(&never))
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var coded *browser.CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("error %v is not a CodedError", err)
	}
	if coded.Code != code {
		t.Fatalf("code = %s, want %s", coded.Code, code)
	}
}

func TestGetOrCreateRequiresSiteConfig(t *testing.T) {
	reg := NewRegistry(testDeps(t))
	reg.Register("generic", NewGeneric)

	_, err := reg.GetOrCreate("unconfigured")
	wantCode(t, err, browser.CodeSiteNotFound)
}

func TestGetOrCreateRequiresFactory(t *testing.T) {
	reg := NewRegistry(testDeps(t))
	if err := reg.AddSite(SiteConfig{ID: "mystery-book", BaseURL: "https://mystery.example/"}); err != nil {
		t.Fatalf("AddSite: %v", err)
	}

	_, err := reg.GetOrCreate("mystery-book")
	wantCode(t, err, browser.CodeWorkflowNotRegistered)
}

func TestExactMatchBeatsSubstring(t *testing.T) {
	reg := NewRegistry(testDeps(t))

	var exact, substr atomic.Int32
	reg.Register("pinnacle-eu", func(deps Deps, site SiteConfig) Workflow {
		exact.Add(1)
		return alwaysOut(deps, site)
	})
	reg.Register("pinnacle", func(deps Deps, site SiteConfig) Workflow {
		substr.Add(1)
		return alwaysOut(deps, site)
	})
	if err := reg.AddSite(SiteConfig{ID: "pinnacle-eu"}); err != nil {
		t.Fatalf("AddSite: %v", err)
	}

	if _, err := reg.GetOrCreate("pinnacle-eu"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if exact.Load() != 1 || substr.Load() != 0 {
		t.Fatalf("exact=%d substr=%d, want exact factory used", exact.Load(), substr.Load())
	}
}

// With no exact match, the longest registered tag contained in the site ID
// wins, so tag precedence is deterministic rather than map-order dependent.
func TestSubstringFallbackPrefersLongestTag(t *testing.T) {
	reg := NewRegistry(testDeps(t))

	var short, long atomic.Int32
	reg.Register("pin", func(deps Deps, site SiteConfig) Workflow {
		short.Add(1)
		return alwaysOut(deps, site)
	})
	reg.Register("pinnacle", func(deps Deps, site SiteConfig) Workflow {
		long.Add(1)
		return alwaysOut(deps, site)
	})
	if err := reg.AddSite(SiteConfig{ID: "pinnacle-us"}); err != nil {
		t.Fatalf("AddSite: %v", err)
	}

	if _, err := reg.GetOrCreate("pinnacle-us"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if long.Load() != 1 || short.Load() != 0 {
		t.Fatalf("short=%d long=%d, want longest tag used", short.Load(), long.Load())
	}
}

func TestGetOrCreateCachesWorkflow(t *testing.T) {
	reg := NewRegistry(testDeps(t))

	var built atomic.Int32
	reg.Register("demo", func(deps Deps, site SiteConfig) Workflow {
		built.Add(1)
		return alwaysOut(deps, site)
	})
	if err := reg.AddSite(SiteConfig{ID: "demo"}); err != nil {
		t.Fatalf("AddSite: %v", err)
	}

	first, err := reg.GetOrCreate("demo")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := reg.GetOrCreate("demo")
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if first != second {
		t.Fatal("GetOrCreate returned different workflows for one site")
	}
	if built.Load() != 1 {
		t.Fatalf("factory ran %d times, want 1", built.Load())
	}
}

func TestAddSiteRequiresID(t *testing.T) {
	reg := NewRegistry(testDeps(t))
	err := reg.AddSite(SiteConfig{BaseURL: "https://nameless.example/"})
	wantCode(t, err, browser.CodeValidation)
}

func TestStatusForConfiguredButIdleSite(t *testing.T) {
	reg := NewRegistry(testDeps(t))
	reg.Register("demo", NewGeneric)
	if err := reg.AddSite(SiteConfig{ID: "demo"}); err != nil {
		t.Fatalf("AddSite: %v", err)
	}

	info, err := reg.Status("demo")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if info.State != StateUninitialized || info.LoginState != LoginUnknown {
		t.Fatalf("status = %+v", info)
	}

	_, err = reg.Status("other")
	wantCode(t, err, browser.CodeSiteNotFound)
}

func TestInitBringsWorkflowToReady(t *testing.T) {
	deps := testDeps(t)
	reg := NewRegistry(deps)
	reg.Register("demo", NewGeneric)
	if err := reg.AddSite(SiteConfig{ID: "demo", BaseURL: "https://demo.example/"}); err != nil {
		t.Fatalf("AddSite: %v", err)
	}

	wf, err := reg.Init(context.Background(), "demo")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if wf.State() != StateReady {
		t.Fatalf("state = %s", wf.State())
	}
	if _, ok := deps.Instances.Get("demo"); !ok {
		t.Fatal("Init did not create the site instance")
	}
}

func TestCloseAllEvictsWorkflowsAndInstances(t *testing.T) {
	deps := testDeps(t)
	reg := NewRegistry(deps)
	reg.Register("demo", NewGeneric)
	for _, id := range []string{"demo-a", "demo-b"} {
		if err := reg.AddSite(SiteConfig{ID: id, BaseURL: "https://demo.example/"}); err != nil {
			t.Fatalf("AddSite %s: %v", id, err)
		}
		if _, err := reg.Init(context.Background(), id); err != nil {
			t.Fatalf("Init %s: %v", id, err)
		}
	}
	// An instance created outside any workflow closes too.
	if _, err := deps.Instances.Create(context.Background(), browser.InstanceConfig{Name: "stray"}); err != nil {
		t.Fatalf("Create stray: %v", err)
	}

	if err := reg.CloseAll(context.Background()); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if live := reg.Live(); len(live) != 0 {
		t.Fatalf("live workflows after CloseAll: %+v", live)
	}
	if left := deps.Instances.List(); len(left) != 0 {
		t.Fatalf("instances after CloseAll: %+v", left)
	}
}

func TestCloseSiteNeverInitialized(t *testing.T) {
	reg := NewRegistry(testDeps(t))
	if err := reg.CloseSite(context.Background(), "idle"); err != nil {
		t.Fatalf("CloseSite: %v", err)
	}
}
