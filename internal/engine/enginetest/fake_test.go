package enginetest

import (
	"context"
	"testing"

	"github.com/WarDekar/BB-Browser/internal/engine"
)

func TestOnPageNotifiesAndReplays(t *testing.T) {
	f := New()
	b, err := f.Launch(context.Background(), engine.LaunchOptions{})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	var early []string
	b.OnPage(func(p engine.Page) { early = append(early, p.ID()) })

	p1, err := b.NewPage(context.Background())
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if len(early) != 1 || early[0] != p1.ID() {
		t.Fatalf("early listener saw %v, want [%s]", early, p1.ID())
	}

	// A listener registered after the page exists is replayed it.
	var late []string
	b.OnPage(func(p engine.Page) { late = append(late, p.ID()) })
	if len(late) != 1 || late[0] != p1.ID() {
		t.Fatalf("late listener saw %v, want [%s]", late, p1.ID())
	}

	p2, err := b.NewPage(context.Background())
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if len(early) != 2 || len(late) != 2 {
		t.Fatalf("listeners saw %v / %v after second page", early, late)
	}
	if early[1] != p2.ID() || late[1] != p2.ID() {
		t.Fatalf("second page delivered as %s / %s, want %s", early[1], late[1], p2.ID())
	}
}
