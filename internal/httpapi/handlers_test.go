package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mesaviva/backend/internal/cache"
	"mesaviva/backend/internal/domain"
	"mesaviva/backend/internal/intelligence"
	"mesaviva/backend/internal/service"
	"mesaviva/backend/internal/store/memory"
)

// newTestAPI builds a full API over the seeded in-memory store so handler
// tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	engine := intelligence.NewEngine(repo, intelligence.DefaultConfig())
	svc := service.New(repo, engine, cache.NoopEventFeedCache{}, 5*time.Second)
	auth := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, repo)

	return New(svc, auth, "*")
}

func login(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login response not JSON: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("empty access token")
	}
	return resp.AccessToken
}

func authedRequest(method string, target string, body []byte, token string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("health response not JSON: %v", err)
	}
	if payload["ok"] != true {
		t.Fatalf("unexpected health payload: %v", payload)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	handler := newTestAPI(t).Handler()

	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestIntelligenceFeedRequiresAuth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/intelligence", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestIntelligenceFeedReturnsClassifiedEvents(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/intelligence?branch_id=BR-CENTRO", nil, token))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	var feed domain.IntelligenceFeed
	if err := json.Unmarshal(rec.Body.Bytes(), &feed); err != nil {
		t.Fatalf("feed not JSON: %v", err)
	}
	if len(feed.Suggestions) == 0 {
		t.Fatalf("expected seeded suggestions for BR-CENTRO")
	}
	for _, ev := range feed.RawEvents {
		if ev.BranchID != "BR-CENTRO" {
			t.Fatalf("branch filter leaked event %s", ev.ID)
		}
	}
}

func TestSimulateEndpoint(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "gerente", "gerente123")

	body, _ := json.Marshal(domain.SimulateRequest{EventID: "EVT-1001"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/intelligence/simulate", body, token))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	var payload struct {
		Result domain.SimulationResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("simulate response not JSON: %v", err)
	}
	if !payload.Result.ReadOnly || payload.Result.Disclosure == "" {
		t.Fatalf("read-only contract missing: %+v", payload.Result)
	}
	if payload.Result.Dish != "Hamburguesa Clásica" {
		t.Fatalf("unexpected dish: %q", payload.Result.Dish)
	}
}

func TestSimulateEndpointRejectsAlertEvent(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	body, _ := json.Marshal(domain.SimulateRequest{EventID: "EVT-1005"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/intelligence/simulate", body, token))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-simulatable event, got %d", rec.Code)
	}
}

func TestSimulateEndpointUnknownEvent(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	body, _ := json.Marshal(domain.SimulateRequest{EventID: "EVT-NOPE"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/intelligence/simulate", body, token))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestResolveEventEndpoint(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "gerente", "gerente123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/events/EVT-1005/resolve", nil, token))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	var payload struct {
		Event domain.SystemEvent `json:"event"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("resolve response not JSON: %v", err)
	}
	if !payload.Event.Resolved {
		t.Fatalf("event not resolved: %+v", payload.Event)
	}
}

func TestResolveEventUnknownAction(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/events/EVT-1005/archive", nil, token))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", rec.Code)
	}
}

func TestListEventsEndpoint(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/events?limit=3", nil, token))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload struct {
		Events []domain.SystemEvent `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("events response not JSON: %v", err)
	}
	if len(payload.Events) != 3 {
		t.Fatalf("limit not applied, got %d events", len(payload.Events))
	}
}

func TestAuditLogsForbiddenForManager(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "gerente", "gerente123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/audit-logs", nil, token))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for manager, got %d", rec.Code)
	}
}

func TestBranchesEndpoint(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/branches", nil, token))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload struct {
		Branches []domain.Branch `json:"branches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("branches response not JSON: %v", err)
	}
	if len(payload.Branches) != 2 {
		t.Fatalf("expected 2 seeded branches, got %d", len(payload.Branches))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/intelligence", nil, token))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/intelligence/simulate",
		[]byte(`{"event_id":"EVT-1001","surprise":true}`), token))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	handler := newTestAPI(t).Handler()

	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong"})
	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.1.2.3:4444"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated attempts, got %d", last)
	}
}
