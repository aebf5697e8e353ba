package notify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestLoginRequiredPostsMessage(t *testing.T) {
	ctx := context.Background()

	var receivedMethod string
	var receivedPath string
	var receivedBody string
	var receivedContentType string

	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			receivedMethod = r.Method
			receivedPath = r.URL.Path
			receivedContentType = r.Header.Get("Content-Type")
			rawBody, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			receivedBody = string(rawBody)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("ok")),
				Header:     make(http.Header),
			}, nil
		}),
	}
	n := NewNotifier("http://example.com/notifications", client)

	if err := n.LoginRequired(ctx, "Pinnacle"); err != nil {
		t.Fatalf("LoginRequired() error = %v", err)
	}

	if got, want := receivedMethod, http.MethodPost; got != want {
		t.Fatalf("method = %q; want %q", got, want)
	}
	if got, want := receivedPath, "/notifications"; got != want {
		t.Fatalf("path = %q; want %q", got, want)
	}
	if got, want := receivedContentType, "text/plain"; got != want {
		t.Fatalf("content-type = %q; want %q", got, want)
	}
	if !strings.Contains(receivedBody, "Pinnacle") {
		t.Fatalf("body = %q; want it to name the site", receivedBody)
	}
}

func TestSendReturnsErrorForServerError(t *testing.T) {
	ctx := context.Background()

	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader("server failure")),
				Header:     make(http.Header),
			}, nil
		}),
	}
	n := NewNotifier("http://example.com/notifications", client)

	err := n.Send(ctx, "hello")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "webhook notification failed") {
		t.Fatalf("error = %q; want to contain %q", err, "webhook notification failed")
	}
}

func TestDisabledNotifierSkipsSend(t *testing.T) {
	ctx := context.Background()

	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			t.Fatal("disabled notifier must not send")
			return nil, nil
		}),
	}
	n := NewNotifier("", client)

	if n.Enabled() {
		t.Fatal("notifier with no endpoint reports enabled")
	}
	if err := n.Send(ctx, "hello"); err != nil {
		t.Fatalf("Send() on disabled notifier = %v", err)
	}
}

func TestNilNotifierIsDisabled(t *testing.T) {
	var n *Notifier
	if n.Enabled() {
		t.Fatal("nil notifier reports enabled")
	}
}
