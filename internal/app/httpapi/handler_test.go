package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aidgrid/platform/internal/app"
	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/user"
	"github.com/aidgrid/platform/internal/config"
	"github.com/aidgrid/platform/internal/middleware"
)

type testEnv struct {
	app    *app.Application
	server *httptest.Server
	tokens map[string]string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"

	application, err := app.New(cfg, app.Stores{}, nil)
	if err != nil {
		t.Fatalf("assemble app: %v", err)
	}

	audit, err := NewAuditLog(50, "")
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}
	handler := New(application, audit, nil)

	auth := middleware.NewAuthMiddleware([]byte(cfg.Auth.JWTSecret), nil, PublicPaths())
	server := httptest.NewServer(auth.Handler(handler.Routes()))
	t.Cleanup(server.Close)

	env := &testEnv{app: application, server: server, tokens: make(map[string]string)}

	// Seed one account per role. The admin is created directly because
	// admins cannot self-register.
	ctx := context.Background()
	for _, role := range []user.Role{user.RoleCoordinator, user.RoleResponder, user.RoleDonor, user.RoleAssessor} {
		email := fmt.Sprintf("%s@example.org", role)
		if _, err := application.Users.Register(ctx, email, string(role), role, "", "password123"); err != nil {
			t.Fatalf("register %s: %v", role, err)
		}
		token, _, err := application.Users.Authenticate(ctx, email, "password123")
		if err != nil {
			t.Fatalf("authenticate %s: %v", role, err)
		}
		env.tokens[string(role)] = token
	}
	admin, err := application.Users.Register(ctx, "admin@example.org", "Admin", user.RoleCoordinator, "", "password123")
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if _, err := application.Users.ChangeRole(ctx, admin.ID, user.RoleAdmin); err != nil {
		t.Fatalf("promote admin: %v", err)
	}
	adminToken, _, err := application.Users.Authenticate(ctx, "admin@example.org", "password123")
	if err != nil {
		t.Fatalf("authenticate admin: %v", err)
	}
	env.tokens["admin"] = adminToken
	return env
}

func (e *testEnv) do(t *testing.T, method, path, role string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[role])
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		var body map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		t.Fatalf("expected %d, got %d (%v)", want, resp.StatusCode, body)
	}
}

func TestHealthIsPublic(t *testing.T) {
	env := newEnv(t)
	resp := env.do(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestUnauthenticatedRejected(t *testing.T) {
	env := newEnv(t)
	resp := env.do(t, http.MethodGet, "/v1/incidents", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestEntityRoleGating(t *testing.T) {
	env := newEnv(t)

	body := map[string]interface{}{"name": "Camp A", "type": "camp", "population": 500}

	resp := env.do(t, http.MethodPost, "/v1/entities", "donor", body)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/v1/entities", "coordinator", body)
	expectStatus(t, resp, http.StatusCreated)
	var created map[string]interface{}
	decode(t, resp, &created)
	if created["id"] == "" {
		t.Fatal("expected entity ID")
	}

	resp = env.do(t, http.MethodGet, "/v1/entities", "donor", nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestFullFlow(t *testing.T) {
	env := newEnv(t)

	// Coordinator sets up an entity and an incident.
	resp := env.do(t, http.MethodPost, "/v1/entities", "coordinator",
		map[string]interface{}{"name": "Camp A", "type": "camp"})
	expectStatus(t, resp, http.StatusCreated)
	var ent struct {
		ID string `json:"id"`
	}
	decode(t, resp, &ent)

	resp = env.do(t, http.MethodPost, "/v1/incidents", "coordinator",
		map[string]interface{}{"name": "Flood", "type": "flood", "severity": "severe"})
	expectStatus(t, resp, http.StatusCreated)
	var inc struct {
		ID string `json:"id"`
	}
	decode(t, resp, &inc)

	resp = env.do(t, http.MethodPost, "/v1/incidents/"+inc.ID+"/entities", "coordinator",
		map[string]interface{}{"entity_id": ent.ID})
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	// Assessor submits, coordinator verifies.
	resp = env.do(t, http.MethodPost, "/v1/assessments", "assessor", map[string]interface{}{
		"entity_id":   ent.ID,
		"incident_id": inc.ID,
		"sector":      "wash",
		"needs":       []map[string]interface{}{{"item": "water", "unit": "litre", "quantity": 1000}},
	})
	expectStatus(t, resp, http.StatusCreated)
	var assess struct {
		ID string `json:"id"`
	}
	decode(t, resp, &assess)

	resp = env.do(t, http.MethodPost, "/v1/assessments/"+assess.ID+"/verify", "donor", nil)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/v1/assessments/"+assess.ID+"/verify", "coordinator", nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Donor pledges, responder converts and delivers.
	resp = env.do(t, http.MethodPost, "/v1/commitments", "donor", map[string]interface{}{
		"entity_id":   ent.ID,
		"incident_id": inc.ID,
		"items":       []map[string]interface{}{{"item": "water", "unit": "litre", "quantity": 400}},
	})
	expectStatus(t, resp, http.StatusCreated)
	var com struct {
		ID string `json:"id"`
	}
	decode(t, resp, &com)

	resp = env.do(t, http.MethodPost, "/v1/commitments/"+com.ID+"/convert", "responder", map[string]interface{}{})
	expectStatus(t, resp, http.StatusCreated)
	var delivery struct {
		ID string `json:"id"`
	}
	decode(t, resp, &delivery)

	resp = env.do(t, http.MethodPost, "/v1/responses/"+delivery.ID+"/status", "responder",
		map[string]interface{}{"status": "delivered"})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Gap report reflects requirement minus delivery.
	resp = env.do(t, http.MethodGet, "/v1/entities/"+ent.ID+"/gaps", "coordinator", nil)
	expectStatus(t, resp, http.StatusOK)
	var report struct {
		Gaps []struct {
			Item string  `json:"item"`
			Gap  float64 `json:"gap"`
		} `json:"gaps"`
	}
	decode(t, resp, &report)
	if len(report.Gaps) != 1 || report.Gaps[0].Item != "water" {
		t.Fatalf("unexpected gap report: %+v", report)
	}
	if report.Gaps[0].Gap != 600 {
		t.Fatalf("expected gap 600, got %f", report.Gaps[0].Gap)
	}

	// Leaderboard surfaces the delivered pledge.
	resp = env.do(t, http.MethodGet, "/v1/analytics/leaderboard", "coordinator", nil)
	expectStatus(t, resp, http.StatusOK)
	var entries []struct {
		Delivered float64 `json:"delivered"`
	}
	decode(t, resp, &entries)
	if len(entries) != 1 || entries[0].Delivered != 400 {
		t.Fatalf("unexpected leaderboard: %+v", entries)
	}

	// Audit trail is admin-only and non-empty.
	resp = env.do(t, http.MethodGet, "/v1/audit", "coordinator", nil)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/v1/audit", "admin", nil)
	expectStatus(t, resp, http.StatusOK)
	var audit []AuditEntry
	decode(t, resp, &audit)
	if len(audit) == 0 {
		t.Fatal("expected audit entries")
	}
}

func TestSyncBatchEndpoint(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPost, "/v1/entities", "coordinator",
		map[string]interface{}{"name": "Camp A", "type": "camp"})
	expectStatus(t, resp, http.StatusCreated)
	var ent struct {
		ID string `json:"id"`
	}
	decode(t, resp, &ent)

	resp = env.do(t, http.MethodPost, "/v1/incidents", "coordinator",
		map[string]interface{}{"name": "Flood", "type": "flood", "severity": "severe"})
	expectStatus(t, resp, http.StatusCreated)
	var inc struct {
		ID string `json:"id"`
	}
	decode(t, resp, &inc)

	batch := map[string]interface{}{
		"items": []map[string]interface{}{
			{"client_ref": "d1-1", "entity_id": ent.ID, "incident_id": inc.ID, "sector": "wash"},
			{"client_ref": "d1-1", "entity_id": ent.ID, "incident_id": inc.ID, "sector": "wash"},
			{"client_ref": "d1-2", "entity_id": "999", "incident_id": inc.ID, "sector": "wash"},
		},
	}
	resp = env.do(t, http.MethodPost, "/v1/sync/assessments", "assessor", batch)
	expectStatus(t, resp, http.StatusOK)
	var result struct {
		Created    int `json:"created"`
		Duplicates int `json:"duplicates"`
		Invalid    int `json:"invalid"`
	}
	decode(t, resp, &result)
	if result.Created != 1 || result.Duplicates != 1 || result.Invalid != 1 {
		t.Fatalf("unexpected batch result: %+v", result)
	}

	resp = env.do(t, http.MethodPost, "/v1/sync/assessments", "donor", batch)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
}

func TestAssessmentStatusFilter(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodGet, "/v1/assessments?status=pending", "coordinator", nil)
	expectStatus(t, resp, http.StatusOK)
	var list []assessment.RapidAssessment
	decode(t, resp, &list)
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
}
