package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/WarDekar/BB-Browser/internal/engine"
	"github.com/WarDekar/BB-Browser/internal/workflow"
)

// ProxyEntry is one reusable proxy definition sites reference by ID.
type ProxyEntry struct {
	ID       string `json:"id"`
	Server   string `json:"server"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Bypass   string `json:"bypass,omitempty"`
}

// SiteStore persists site and proxy definitions as two pretty-printed
// JSON files. Reads tolerate missing or corrupt files.
type SiteStore struct {
	mu          sync.Mutex
	sitesFile   string
	proxiesFile string
}

func NewSiteStore(sitesFile, proxiesFile string) *SiteStore {
	return &SiteStore{sitesFile: sitesFile, proxiesFile: proxiesFile}
}

// Sites loads every configured site with its proxy reference resolved.
// Sites naming an unknown proxy keep running without one.
func (s *SiteStore) Sites() ([]workflow.SiteConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sites []workflow.SiteConfig
	if err := readJSONFile(s.sitesFile, &sites); err != nil {
		return nil, err
	}
	proxies, err := s.proxiesLocked()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]ProxyEntry, len(proxies))
	for _, p := range proxies {
		byID[p.ID] = p
	}
	for i := range sites {
		if sites[i].ProxyID == "" {
			continue
		}
		p, ok := byID[sites[i].ProxyID]
		if !ok {
			slog.Warn("site references unknown proxy", "site", sites[i].ID, "proxy", sites[i].ProxyID)
			continue
		}
		sites[i].Proxy = &engine.ProxyConfig{
			Server:   p.Server,
			Username: p.Username,
			Password: p.Password,
			Bypass:   p.Bypass,
		}
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].ID < sites[j].ID })
	return sites, nil
}

// UpsertSite inserts or replaces a site by ID.
func (s *SiteStore) UpsertSite(cfg workflow.SiteConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("site id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var sites []workflow.SiteConfig
	if err := readJSONFile(s.sitesFile, &sites); err != nil {
		return err
	}
	replaced := false
	for i := range sites {
		if sites[i].ID == cfg.ID {
			sites[i] = cfg
			replaced = true
			break
		}
	}
	if !replaced {
		sites = append(sites, cfg)
	}
	return writeJSONFile(s.sitesFile, sites)
}

// DeleteSite removes a site by ID; absent IDs are a no-op.
func (s *SiteStore) DeleteSite(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sites []workflow.SiteConfig
	if err := readJSONFile(s.sitesFile, &sites); err != nil {
		return err
	}
	kept := sites[:0]
	for _, cfg := range sites {
		if cfg.ID != id {
			kept = append(kept, cfg)
		}
	}
	return writeJSONFile(s.sitesFile, kept)
}

// Proxies loads every proxy definition sorted by ID.
func (s *SiteStore) Proxies() ([]ProxyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proxiesLocked()
}

func (s *SiteStore) proxiesLocked() ([]ProxyEntry, error) {
	var proxies []ProxyEntry
	if err := readJSONFile(s.proxiesFile, &proxies); err != nil {
		return nil, err
	}
	sort.Slice(proxies, func(i, j int) bool { return proxies[i].ID < proxies[j].ID })
	return proxies, nil
}

// UpsertProxy inserts or replaces a proxy by ID.
func (s *SiteStore) UpsertProxy(entry ProxyEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("proxy id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	proxies, err := s.proxiesLocked()
	if err != nil {
		return err
	}
	replaced := false
	for i := range proxies {
		if proxies[i].ID == entry.ID {
			proxies[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		proxies = append(proxies, entry)
	}
	return writeJSONFile(s.proxiesFile, proxies)
}

// DeleteProxy removes a proxy by ID; absent IDs are a no-op.
func (s *SiteStore) DeleteProxy(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	proxies, err := s.proxiesLocked()
	if err != nil {
		return err
	}
	kept := proxies[:0]
	for _, p := range proxies {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	return writeJSONFile(s.proxiesFile, kept)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("ignoring corrupt config file", "path", path, "error", err)
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
