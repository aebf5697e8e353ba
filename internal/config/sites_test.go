package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/WarDekar/BB-Browser/internal/workflow"
)

func newTestSiteStore(t *testing.T) *SiteStore {
	t.Helper()
	dir := t.TempDir()
	return NewSiteStore(filepath.Join(dir, "sites.json"), filepath.Join(dir, "proxies.json"))
}

func TestSitesEmptyWhenFilesAbsent(t *testing.T) {
	s := newTestSiteStore(t)
	sites, err := s.Sites()
	if err != nil {
		t.Fatalf("Sites: %v", err)
	}
	if len(sites) != 0 {
		t.Fatalf("Sites = %+v, want empty", sites)
	}
}

func TestUpsertSiteRoundTrip(t *testing.T) {
	s := newTestSiteStore(t)

	if err := s.UpsertSite(workflow.SiteConfig{ID: "pinnacle", Name: "Pinnacle", BaseURL: "https://pinnacle.example/"}); err != nil {
		t.Fatalf("UpsertSite: %v", err)
	}
	if err := s.UpsertSite(workflow.SiteConfig{ID: "acme", Name: "Acme", BaseURL: "https://acme.example/"}); err != nil {
		t.Fatalf("UpsertSite: %v", err)
	}
	// Replacing keeps one entry per ID.
	if err := s.UpsertSite(workflow.SiteConfig{ID: "acme", Name: "Acme v2", BaseURL: "https://acme.example/"}); err != nil {
		t.Fatalf("UpsertSite replace: %v", err)
	}

	sites, err := s.Sites()
	if err != nil {
		t.Fatalf("Sites: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("Sites = %+v, want 2", sites)
	}
	if sites[0].ID != "acme" || sites[0].Name != "Acme v2" || sites[1].ID != "pinnacle" {
		t.Fatalf("Sites = %+v", sites)
	}
}

func TestDeleteSite(t *testing.T) {
	s := newTestSiteStore(t)
	if err := s.UpsertSite(workflow.SiteConfig{ID: "gone"}); err != nil {
		t.Fatalf("UpsertSite: %v", err)
	}
	if err := s.DeleteSite("gone"); err != nil {
		t.Fatalf("DeleteSite: %v", err)
	}
	if err := s.DeleteSite("never-there"); err != nil {
		t.Fatalf("DeleteSite absent: %v", err)
	}
	sites, err := s.Sites()
	if err != nil {
		t.Fatalf("Sites: %v", err)
	}
	if len(sites) != 0 {
		t.Fatalf("Sites = %+v, want empty", sites)
	}
}

func TestSiteProxyResolution(t *testing.T) {
	s := newTestSiteStore(t)

	if err := s.UpsertProxy(ProxyEntry{ID: "eu-1", Server: "http://proxy.example:3128", Username: "u", Password: "p"}); err != nil {
		t.Fatalf("UpsertProxy: %v", err)
	}
	if err := s.UpsertSite(workflow.SiteConfig{ID: "proxied", ProxyID: "eu-1"}); err != nil {
		t.Fatalf("UpsertSite: %v", err)
	}
	if err := s.UpsertSite(workflow.SiteConfig{ID: "dangling", ProxyID: "no-such"}); err != nil {
		t.Fatalf("UpsertSite: %v", err)
	}

	sites, err := s.Sites()
	if err != nil {
		t.Fatalf("Sites: %v", err)
	}
	byID := map[string]workflow.SiteConfig{}
	for _, sc := range sites {
		byID[sc.ID] = sc
	}
	p := byID["proxied"].Proxy
	if p == nil || p.Server != "http://proxy.example:3128" || p.Username != "u" {
		t.Fatalf("resolved proxy = %+v", p)
	}
	// Unknown references load without a proxy instead of failing.
	if byID["dangling"].Proxy != nil {
		t.Fatalf("dangling proxy = %+v", byID["dangling"].Proxy)
	}
}

func TestCorruptSitesFileReadsAsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sites.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	s := NewSiteStore(path, filepath.Join(dir, "proxies.json"))

	sites, err := s.Sites()
	if err != nil {
		t.Fatalf("Sites: %v", err)
	}
	if len(sites) != 0 {
		t.Fatalf("Sites = %+v, want empty", sites)
	}
}
