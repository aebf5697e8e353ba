package netutil

import (
	"net"
	"testing"
)

// reserveAddr grabs an ephemeral port and returns its address either
// still held (busy) or released (free).
func reserveAddr(t *testing.T, keepOpen bool) (string, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	if keepOpen {
		return addr, func() { _ = ln.Close() }
	}
	_ = ln.Close()
	return addr, func() {}
}

func TestSelectBindAddrPreferredFree(t *testing.T) {
	addr, _ := reserveAddr(t, false)

	got, err := SelectBindAddr(addr, nil, false)
	if err != nil {
		t.Fatalf("SelectBindAddr() error = %v", err)
	}
	if got != addr {
		t.Fatalf("SelectBindAddr() = %q, want %q", got, addr)
	}
}

func TestSelectBindAddrPreferredBusyNoFallback(t *testing.T) {
	busy, release := reserveAddr(t, true)
	defer release()

	if _, err := SelectBindAddr(busy, []string{"127.0.0.1:0"}, false); err == nil {
		t.Fatalf("SelectBindAddr() error = nil, want busy-address error")
	}
}

func TestSelectBindAddrFallsBackToFreeCandidate(t *testing.T) {
	busy, release := reserveAddr(t, true)
	defer release()
	free, _ := reserveAddr(t, false)

	got, err := SelectBindAddr(busy, []string{busy, free}, true)
	if err != nil {
		t.Fatalf("SelectBindAddr() error = %v", err)
	}
	if got != free {
		t.Fatalf("SelectBindAddr() = %q, want %q", got, free)
	}
}

func TestSelectBindAddrAllCandidatesBusy(t *testing.T) {
	busy, release := reserveAddr(t, true)
	defer release()

	if _, err := SelectBindAddr(busy, []string{busy}, true); err == nil {
		t.Fatalf("SelectBindAddr() error = nil, want exhausted-candidates error")
	}
}
