package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// mockConsumer implements ConsumerStatus for testing.
type mockConsumer struct {
	joined bool
}

func (m *mockConsumer) IsJoined() bool { return m.joined }

// mockDBChecker implements DBChecker for testing.
type mockDBChecker struct {
	err error
}

func (m *mockDBChecker) Ping(_ context.Context) error { return m.err }

func newTestServer(routesJoined bool, dispatch CLIDispatcher) *Server {
	logger := zap.NewNop()
	rc := &mockConsumer{joined: routesJoined}
	// nil pool — readyz will report postgres as "error".
	return NewServer(":0", nil, rc, dispatch, logger)
}

func newTestServerWithDB(db DBChecker, routesJoined bool) *Server {
	s := newTestServer(routesJoined, nil)
	s.dbChecker = db
	return s
}

func TestHealthz_AlwaysOK(t *testing.T) {
	s := newTestServer(false, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	s.handleHealthz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", body["status"])
	}
}

func TestHealthz_ContentType(t *testing.T) {
	s := newTestServer(false, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	s.handleHealthz(w, req)

	ct := w.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}
}

func TestReadyz_NotReady_ConsumerNotJoined(t *testing.T) {
	s := newTestServer(false, nil)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "not_ready" {
		t.Errorf("expected status 'not_ready', got '%v'", body["status"])
	}

	checks := body["checks"].(map[string]any)
	if checks["kafka_routes"] != "not_joined" {
		t.Errorf("expected kafka_routes 'not_joined', got '%v'", checks["kafka_routes"])
	}
	if checks["postgres"] != "error" {
		t.Errorf("expected postgres 'error' (nil pool), got '%v'", checks["postgres"])
	}
}

func TestReadyz_ConsumerJoinedButDBDown(t *testing.T) {
	s := newTestServer(true, nil)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	// Consumer joined but pool is nil → postgres check fails → 503.
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 (DB down), got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	checks := body["checks"].(map[string]any)
	if checks["kafka_routes"] != "ok" {
		t.Errorf("expected kafka_routes 'ok', got '%v'", checks["kafka_routes"])
	}
	if checks["postgres"] != "error" {
		t.Errorf("expected postgres 'error', got '%v'", checks["postgres"])
	}
}

func TestReadyz_ContentType(t *testing.T) {
	s := newTestServer(false, nil)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	ct := w.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}
}

func TestReadyz_AllHealthy(t *testing.T) {
	db := &mockDBChecker{err: nil}
	s := newTestServerWithDB(db, true)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ready" {
		t.Errorf("expected status 'ready', got '%v'", body["status"])
	}

	checks := body["checks"].(map[string]any)
	if checks["postgres"] != "ok" {
		t.Errorf("expected postgres 'ok', got '%v'", checks["postgres"])
	}
	if checks["kafka_routes"] != "ok" {
		t.Errorf("expected kafka_routes 'ok', got '%v'", checks["kafka_routes"])
	}
}

func TestCLI_MethodNotAllowed(t *testing.T) {
	s := newTestServer(false, func(ctx context.Context, line string) CLIResult {
		t.Fatalf("dispatch should not be called for a GET request")
		return CLIResult{}
	})

	req := httptest.NewRequest(http.MethodGet, "/cli", nil)
	w := httptest.NewRecorder()

	s.handleCLI(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestCLI_NoDispatcherConfigured(t *testing.T) {
	s := newTestServer(false, nil)

	req := httptest.NewRequest(http.MethodPost, "/cli", strings.NewReader("show ip route 10.0.0.0/24"))
	w := httptest.NewRecorder()

	s.handleCLI(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with no dispatcher wired, got %d", w.Code)
	}
}

func TestCLI_DispatchesRequestBody(t *testing.T) {
	var gotLine string
	s := newTestServer(false, func(ctx context.Context, line string) CLIResult {
		gotLine = line
		return CLIResult{Code: 0, Message: "% Static route added"}
	})

	req := httptest.NewRequest(http.MethodPost, "/cli", strings.NewReader("ip route 10.0.0.0/24 192.0.2.1"))
	w := httptest.NewRecorder()

	s.handleCLI(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if gotLine != "ip route 10.0.0.0/24 192.0.2.1" {
		t.Errorf("dispatch received %q, want the raw request body", gotLine)
	}

	var result CLIResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Message != "% Static route added" {
		t.Errorf("unexpected message: %q", result.Message)
	}
}

func TestCLI_WarningCodeStillReturns200(t *testing.T) {
	s := newTestServer(false, func(ctx context.Context, line string) CLIResult {
		return CLIResult{Code: 1, Message: "% Warning: deprecated syntax", Deprecated: true}
	})

	req := httptest.NewRequest(http.MethodPost, "/cli", strings.NewReader("ip route 10.0.0.0 255.255.255.0 192.0.2.1"))
	w := httptest.NewRecorder()

	s.handleCLI(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("a CmdWarning result should still round-trip as HTTP 200, got %d", w.Code)
	}

	var result CLIResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Deprecated {
		t.Errorf("expected deprecated=true to survive the JSON round trip")
	}
}
