//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestHealth(t *testing.T) {
	resp := env.GET(t, "/health")
	requireStatus(t, resp, http.StatusOK)
	result := decodeJSON[struct {
		Status string `json:"status"`
	}](t, resp)
	requireField(t, result.Status, "ok", "status")
}

func TestInstanceLifecycle(t *testing.T) {
	const name = "it-lifecycle"

	resp := env.POST(t, "/api/v1/instances", map[string]any{
		"name":     name,
		"headless": true,
	})
	requireStatus(t, resp, http.StatusOK)
	created := decodeJSON[struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}](t, resp)
	requireField(t, created.Name, name, "name")
	requireField(t, created.Status, "ready", "status")

	defer func() {
		resp := env.DELETE(t, "/api/v1/instances/"+name)
		resp.Body.Close()
	}()

	// Duplicate names are rejected.
	resp = env.POST(t, "/api/v1/instances", map[string]any{
		"name":     name,
		"headless": true,
	})
	requireStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = env.POST(t, "/api/v1/instances/"+name+"/goto", map[string]any{
		"url": "https://example.com/",
	})
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.GET(t, "/api/v1/instances/"+name+"/content")
	requireStatus(t, resp, http.StatusOK)
	content := decodeJSON[struct {
		Content string `json:"content"`
	}](t, resp)
	if content.Content == "" {
		t.Fatal("expected page content")
	}

	resp = env.GET(t, "/api/v1/instances/"+name+"/screenshot")
	requireStatus(t, resp, http.StatusOK)
	shot := decodeJSON[struct {
		Format string `json:"format"`
		Data   string `json:"data"`
	}](t, resp)
	requireField(t, shot.Format, "png", "format")
	if shot.Data == "" {
		t.Fatal("expected screenshot data")
	}
}

func TestInstanceNotFound(t *testing.T) {
	resp := env.GET(t, "/api/v1/instances/no-such-instance")
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestSessionRoundTrip(t *testing.T) {
	const name = "it-session"
	const sessionName = "it-session-state"

	resp := env.POST(t, "/api/v1/instances", map[string]any{
		"name":     name,
		"headless": true,
	})
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	defer func() {
		resp := env.DELETE(t, "/api/v1/instances/"+name)
		resp.Body.Close()
		resp = env.DELETE(t, "/api/v1/sessions/"+sessionName)
		resp.Body.Close()
	}()

	resp = env.POST(t, "/api/v1/instances/"+name+"/goto", map[string]any{
		"url": "https://example.com/",
	})
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.POST(t, "/api/v1/instances/"+name+"/session/save", map[string]any{
		"session": sessionName,
	})
	requireStatus(t, resp, http.StatusOK)
	saved := decodeJSON[struct {
		Name    string `json:"name"`
		LastURL string `json:"last_url"`
	}](t, resp)
	requireField(t, saved.Name, sessionName, "session name")

	resp = env.POST(t, "/api/v1/instances/"+name+"/session/load", map[string]any{
		"session": sessionName,
	})
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.POST(t, "/api/v1/instances/"+name+"/session/load", map[string]any{
		"session": "never-saved",
	})
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}
