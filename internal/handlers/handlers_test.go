package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"

	"touchview/internal/cache"
	"touchview/internal/config"
	"touchview/internal/models"
	"touchview/internal/services"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		ViewerCommand: []string{"/bin/sh", "-c", "sleep 60"},
		CacheDir:      t.TempDir(),
	}
	converter := cache.ConverterFunc(func(containerPath, destPath string) error {
		return os.WriteFile(destPath, []byte("recording"), 0o644)
	})
	svc := services.NewSessionService(cfg, cache.New(cfg.CacheDir), converter, nil, nil)
	t.Cleanup(svc.Shutdown)

	sessionHandler := NewSessionHandler(svc)
	healthHandler := NewHealthHandler(svc)

	app := fiber.New()
	app.Get("/health", healthHandler.Health)
	app.Post("/sessions", sessionHandler.Create)
	app.Get("/sessions", sessionHandler.List)
	app.Post("/sessions/:id/load", sessionHandler.Load)
	app.Get("/sessions/:id/state", sessionHandler.State)
	app.Delete("/sessions/:id", sessionHandler.Delete)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp, payload
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, body := doJSON(t, app, "GET", "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var health map[string]any
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "healthy" {
		t.Fatalf("health status = %v, want healthy", health["status"])
	}
}

func TestSessionLifecycle(t *testing.T) {
	app := newTestApp(t)

	resp, body := doJSON(t, app, "POST", "/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", resp.StatusCode, body)
	}
	var created models.SessionInfo
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}
	if created.SessionID == "" || created.Status != "running" {
		t.Fatalf("unexpected session info: %+v", created)
	}

	resp, body = doJSON(t, app, "GET", "/sessions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	var listing struct {
		Sessions []models.SessionInfo `json:"sessions"`
		Count    int                  `json:"count"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		t.Fatal(err)
	}
	if listing.Count != 1 || len(listing.Sessions) != 1 {
		t.Fatalf("expected one session, got %+v", listing)
	}

	resp, body = doJSON(t, app, "GET", "/sessions/"+created.SessionID+"/state", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("state status = %d, want 200", resp.StatusCode)
	}
	var state models.SessionState
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatal(err)
	}
	if state.Playback.State != "unknown" {
		t.Fatalf("playback state = %q, want unknown", state.Playback.State)
	}

	resp, _ = doJSON(t, app, "DELETE", "/sessions/"+created.SessionID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}

	resp, _ = doJSON(t, app, "GET", "/sessions/"+created.SessionID+"/state", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("state after delete = %d, want 404", resp.StatusCode)
	}
}

func TestLoadIntoSession(t *testing.T) {
	app := newTestApp(t)
	recording := filepath.Join(t.TempDir(), "session.rec")
	if err := os.WriteFile(recording, []byte("recording"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp, body := doJSON(t, app, "POST", "/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created models.SessionInfo
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}

	resp, body = doJSON(t, app, "POST", "/sessions/"+created.SessionID+"/load",
		models.LoadSessionRequest{RecordingPath: recording})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load status = %d, want 200: %s", resp.StatusCode, body)
	}
	var loaded models.SessionInfo
	if err := json.Unmarshal(body, &loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.LoadedRecording != recording {
		t.Fatalf("loaded recording = %q, want %q", loaded.LoadedRecording, recording)
	}
}

func TestLoadErrorStatuses(t *testing.T) {
	app := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/sessions/unknown/load",
		models.LoadSessionRequest{RecordingPath: "/tmp/whatever.rec"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session load = %d, want 404", resp.StatusCode)
	}

	resp, body := doJSON(t, app, "POST", "/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created models.SessionInfo
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}

	resp, _ = doJSON(t, app, "POST", "/sessions/"+created.SessionID+"/load",
		models.LoadSessionRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty load = %d, want 400", resp.StatusCode)
	}

	resp, _ = doJSON(t, app, "POST", "/sessions/"+created.SessionID+"/load",
		models.LoadSessionRequest{RecordingPath: "/nope/missing.rec"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing recording load = %d, want 404", resp.StatusCode)
	}
}

func TestCreateRejectsMalformedBody(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("POST", "/sessions", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
