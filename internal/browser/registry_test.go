package browser

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/WarDekar/BB-Browser/internal/engine/enginetest"
	"github.com/WarDekar/BB-Browser/internal/session"
)

func newTestRegistry(t *testing.T) (*Registry, *enginetest.Fake) {
	t.Helper()
	eng := enginetest.New()
	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewRegistry(eng, store), eng
}

func TestCreateDuplicateName(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	first, err := reg.Create(ctx, InstanceConfig{Name: "dup"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = reg.Create(ctx, InstanceConfig{Name: "dup"})
	if err == nil {
		t.Fatal("second Create with the same name should fail")
	}
	if code := codeOf(t, err); code != CodeDuplicateName {
		t.Fatalf("code = %s, want %s", code, CodeDuplicateName)
	}

	// The first instance is unaffected.
	if got := first.Status(); got != StatusReady {
		t.Fatalf("first instance status = %s, want %s", got, StatusReady)
	}
	if len(reg.List()) != 1 {
		t.Fatalf("List = %+v, want one instance", reg.List())
	}
}

func TestCreateRequiresName(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if _, err := reg.Create(context.Background(), InstanceConfig{Name: "  "}); codeOf(t, err) != CodeValidation {
		t.Fatalf("Create with blank name: %v", err)
	}
}

func TestCreateFailedLaunchNotRegistered(t *testing.T) {
	reg, eng := newTestRegistry(t)
	eng.LaunchErr = fmt.Errorf("boom")

	if _, err := reg.Create(context.Background(), InstanceConfig{Name: "broken"}); err == nil {
		t.Fatal("Create should fail when the launch fails")
	}
	if len(reg.List()) != 0 {
		t.Fatalf("failed launch left instances registered: %+v", reg.List())
	}

	// The name is free again after the failure.
	eng.LaunchErr = nil
	if _, err := reg.Create(context.Background(), InstanceConfig{Name: "broken"}); err != nil {
		t.Fatalf("Create after failed launch: %v", err)
	}
}

func TestCloseRemovesInstance(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, InstanceConfig{Name: "gone"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := reg.Close(ctx, "gone"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := reg.Get("gone"); ok {
		t.Fatal("closed instance still registered")
	}
	if err := reg.Close(ctx, "gone"); codeOf(t, err) != CodeInstanceNotFound {
		t.Fatalf("second Close: %v", err)
	}
}

func TestCloseAllClosesEveryInstanceDespiteFailure(t *testing.T) {
	eng := enginetest.New()
	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	reg := NewRegistry(eng, store)
	ctx := context.Background()

	var instances []*Instance
	for i := 0; i < 3; i++ {
		inst, err := reg.Create(ctx, InstanceConfig{Name: fmt.Sprintf("inst-%d", i)})
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		instances = append(instances, inst)
	}
	// Make one teardown fail; the others must still complete.
	eng.Browsers()[1].SetCloseErr(fmt.Errorf("stuck process"))

	err = reg.CloseAll(ctx)
	if err == nil {
		t.Fatal("CloseAll should surface the failing close")
	}
	if len(reg.List()) != 0 {
		t.Fatalf("CloseAll left instances registered: %+v", reg.List())
	}
	for i, inst := range instances {
		if got := inst.Status(); got != StatusClosed {
			t.Fatalf("instance %d status = %s, want %s", i, got, StatusClosed)
		}
	}
}

func TestCloseAllConcurrent(t *testing.T) {
	eng := enginetest.New()
	eng.CloseDelay = 50 * time.Millisecond
	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	reg := NewRegistry(eng, store)
	ctx := context.Background()

	const n = 8
	for i := 0; i < n; i++ {
		if _, err := reg.Create(ctx, InstanceConfig{Name: fmt.Sprintf("inst-%d", i)}); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	// Teardowns fan out together, so total latency tracks the slowest
	// close rather than the sum.
	start := time.Now()
	if err := reg.CloseAll(ctx); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Duration(n)*eng.CloseDelay/2 {
		t.Fatalf("CloseAll took %v; closes do not appear concurrent", elapsed)
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, InstanceConfig{Name: "sess"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	inst, _ := reg.Get("sess")
	if err := inst.Goto(ctx, "https://example.com/login"); err != nil {
		t.Fatalf("Goto: %v", err)
	}
	p := inst.CurrentPage().(*enginetest.Page)
	p.SeedStorage("local", map[string]string{"token": "abc"})

	rec, err := reg.SaveSession(ctx, "sess", "checkpoint")
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if rec.Name != "checkpoint" || rec.Instance != "sess" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.LocalStorage["token"] != "abc" {
		t.Fatalf("record storage = %v", rec.LocalStorage)
	}

	if err := reg.LoadSession(ctx, "sess", "checkpoint"); err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
}

func TestSaveSessionValidation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, InstanceConfig{Name: "sess"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reg.SaveSession(ctx, "sess", ""); codeOf(t, err) != CodeValidation {
		t.Fatalf("SaveSession with empty name: %v", err)
	}
	if _, err := reg.SaveSession(ctx, "missing", "x"); codeOf(t, err) != CodeInstanceNotFound {
		t.Fatalf("SaveSession on missing instance: %v", err)
	}
}

func TestLoadSessionNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, InstanceConfig{Name: "sess"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := reg.LoadSession(ctx, "sess", "never-saved"); codeOf(t, err) != CodeSessionNotFound {
		t.Fatalf("LoadSession absent: %v", err)
	}
}

func TestCreateWithMissingSessionStartsFresh(t *testing.T) {
	reg, _ := newTestRegistry(t)

	inst, err := reg.CreateWithSession(context.Background(), InstanceConfig{Name: "fresh"}, "nonexistent")
	if err != nil {
		t.Fatalf("CreateWithSession: %v", err)
	}
	if got := inst.Status(); got != StatusReady {
		t.Fatalf("status = %s, want %s", got, StatusReady)
	}
}

func TestCreateWithSessionRestoresState(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, InstanceConfig{Name: "orig"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	orig, _ := reg.Get("orig")
	if err := orig.Goto(ctx, "https://example.com/app"); err != nil {
		t.Fatalf("Goto: %v", err)
	}
	orig.CurrentPage().(*enginetest.Page).SeedStorage("local", map[string]string{"k": "v"})
	if _, err := reg.SaveSession(ctx, "orig", "handoff"); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	inst, err := reg.CreateWithSession(ctx, InstanceConfig{Name: "restored"}, "handoff")
	if err != nil {
		t.Fatalf("CreateWithSession: %v", err)
	}
	rec, err := inst.ExtractSessionState(ctx)
	if err != nil {
		t.Fatalf("ExtractSessionState: %v", err)
	}
	if rec.LocalStorage["k"] != "v" {
		t.Fatalf("restored storage = %v", rec.LocalStorage)
	}
	if rec.LastURL != "https://example.com/app" {
		t.Fatalf("restored LastURL = %s", rec.LastURL)
	}
}
