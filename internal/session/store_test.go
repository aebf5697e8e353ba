package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/WarDekar/BB-Browser/internal/engine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	rec := &Record{
		Name:     "pinnacle-session",
		Instance: "pinnacle",
		Cookies: []engine.Cookie{
			{Name: "auth", Value: "tok", Domain: ".example.com", Path: "/", Secure: true},
		},
		LocalStorage:   map[string]string{"theme": "dark"},
		SessionStorage: map[string]string{"csrf": "abc"},
		LastURL:        "https://example.com/account",
		CreatedAt:      time.Now().Add(-time.Hour),
	}
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("pinnacle-session")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil for a saved session")
	}
	if got.Name != rec.Name || got.Instance != rec.Instance || got.LastURL != rec.LastURL {
		t.Fatalf("loaded record mismatch: %+v", got)
	}
	if len(got.Cookies) != 1 || got.Cookies[0].Value != "tok" {
		t.Fatalf("cookies = %+v, want the saved cookie", got.Cookies)
	}
	if got.LocalStorage["theme"] != "dark" || got.SessionStorage["csrf"] != "abc" {
		t.Fatalf("storage mismatch: local=%v session=%v", got.LocalStorage, got.SessionStorage)
	}
}

func TestLoadAbsentReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Load("never-saved")
	if err != nil {
		t.Fatalf("Load absent: %v", err)
	}
	if got != nil {
		t.Fatalf("Load absent = %+v, want nil", got)
	}
}

func TestLoadCorruptTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	got, err := s.Load("broken")
	if err != nil {
		t.Fatalf("Load corrupt: %v", err)
	}
	if got != nil {
		t.Fatalf("Load corrupt = %+v, want nil", got)
	}
}

// "a/b" and "a_b" sanitize to the same storage key, so the second save
// overwrites the first. This aliasing is accepted behavior.
func TestSanitizedNamesAlias(t *testing.T) {
	s := newTestStore(t)

	if SanitizeName("a/b") != SanitizeName("a_b") {
		t.Fatal("expected a/b and a_b to share a storage key")
	}

	if err := s.Save(&Record{Name: "a/b", LastURL: "https://first.example"}); err != nil {
		t.Fatalf("Save a/b: %v", err)
	}
	if err := s.Save(&Record{Name: "a_b", LastURL: "https://second.example"}); err != nil {
		t.Fatalf("Save a_b: %v", err)
	}

	got, err := s.Load("a/b")
	if err != nil {
		t.Fatalf("Load a/b: %v", err)
	}
	if got == nil || got.LastURL != "https://second.example" {
		t.Fatalf("expected a/b to read back the a_b record, got %+v", got)
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 {
		t.Fatalf("List = %v, want one aliased entry", names)
	}
}

func TestListSorted(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := s.Save(&Record{Name: name}); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}
	names, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("List = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("List = %v, want %v", names, want)
		}
	}
}

func TestDeleteAbsentIsNoOp(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete("never-saved"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}

	if err := s.Save(&Record{Name: "gone"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete("gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := s.Load("gone")
	if err != nil || got != nil {
		t.Fatalf("Load after delete = %+v, %v; want nil, nil", got, err)
	}
}

func TestSaveRequiresName(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(&Record{}); err == nil {
		t.Fatal("Save with empty name should fail")
	}
}
