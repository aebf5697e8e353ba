// Package notify posts plain-text webhook notifications (ntfy-style) when
// a site workflow needs the user or finishes a login.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Notifier sends plain-text messages to a single webhook endpoint. An
// empty endpoint disables it; every send becomes a no-op.
type Notifier struct {
	endpoint string
	client   *http.Client
}

func NewNotifier(endpoint string, client *http.Client) *Notifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Notifier{endpoint: endpoint, client: client}
}

// Enabled reports whether an endpoint is configured. Safe on a nil
// receiver so callers can skip the wiring entirely.
func (n *Notifier) Enabled() bool { return n != nil && n.endpoint != "" }

// LoginRequired announces that a site is waiting on a manual login.
func (n *Notifier) LoginRequired(ctx context.Context, site string) error {
	return n.Send(ctx, fmt.Sprintf("Login required for %s: open the browser window and sign in.", site))
}

// LoginSucceeded announces that a manual login completed and was saved.
func (n *Notifier) LoginSucceeded(ctx context.Context, site string) error {
	return n.Send(ctx, fmt.Sprintf("Login for %s detected and session saved.", site))
}

// Send posts a message to the configured endpoint using HTTP POST.
func (n *Notifier) Send(ctx context.Context, message string) error {
	if !n.Enabled() {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
