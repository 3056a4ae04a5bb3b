package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opensource-health/harrier/internal/bus"
	"github.com/opensource-health/harrier/internal/cache"
	"github.com/opensource-health/harrier/internal/domain"
	"github.com/opensource-health/harrier/internal/reference"
	"github.com/opensource-health/harrier/internal/repository"
	"github.com/opensource-health/harrier/internal/rules"
	"github.com/opensource-health/harrier/internal/triage"
)

const testTenant = "tenant-001"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "harrier_test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(100)
	b := bus.NewChannelBus(100)
	t.Cleanup(func() { b.Close() })

	ref, err := reference.NewStatic(domain.ReferenceConfig{})
	if err != nil {
		t.Fatalf("failed to create reference data: %v", err)
	}

	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("failed to create rules engine: %v", err)
	}

	pipeline := triage.NewPipeline(domain.DefaultTriageConfig(), ref, nil, engine)

	return NewServer(domain.ServerConfig{Port: 8080}, repo, c, b, pipeline, engine, "test")
}

func doRequest(t *testing.T, srv *Server, method, path string, body []byte, tenant string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if tenant != "" {
		req.Header.Set(TenantIDHeader, tenant)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", rec.Code)
	}
	var health map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected healthy status, got %s", health["status"])
	}
	if health["version"] != "test" {
		t.Errorf("expected version test, got %s", health["version"])
	}

	rec = doRequest(t, srv, http.MethodGet, "/ready", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /ready, got %d", rec.Code)
	}
}

func TestTriageBatch(t *testing.T) {
	srv := newTestServer(t)

	body := []byte(`[
		{"claim_id": "CLM001", "member_id": "MBR001", "provider_id": "PRV001",
		 "procedure_code": "99213", "diagnosis_code": "M54.5", "cost": 100,
		 "date_of_service": "2025-06-01", "claim_type": "outpatient"},
		{"claim_id": "CLM002", "member_id": "MBR003", "provider_id": "PRV001",
		 "procedure_code": "99213", "diagnosis_code": "M54.5", "cost": 100,
		 "date_of_service": "2025-06-02", "claim_type": "outpatient"}
	]`)

	rec := doRequest(t, srv, http.MethodPost, "/triage", body, testTenant)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp TriageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.BatchID == "" {
		t.Error("expected a batch ID to be assigned")
	}
	if resp.Received != 2 {
		t.Errorf("expected 2 received, got %d", resp.Received)
	}
	if resp.Approved != 1 || resp.Audited != 1 {
		t.Errorf("expected 1 approved / 1 audited, got %d / %d", resp.Approved, resp.Audited)
	}
	if resp.Metadata.Version != "test" {
		t.Errorf("expected version test, got %s", resp.Metadata.Version)
	}

	clean := resp.Claims[0]
	if clean.FinalRouting != domain.RoutingApproved {
		t.Errorf("expected CLM001 approved, got %s", clean.FinalRouting)
	}
	ineligible := resp.Claims[1]
	if ineligible.ValidationStatus != domain.ValidationIneligibleMember {
		t.Errorf("expected CLM002 ineligible, got %s", ineligible.ValidationStatus)
	}
	if ineligible.FinalRouting != domain.RoutingAudit {
		t.Errorf("expected CLM002 audited, got %s", ineligible.FinalRouting)
	}

	// The stored batch can be fetched back
	rec = doRequest(t, srv, http.MethodGet, "/batches/"+resp.BatchID, nil, testTenant)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching batch, got %d", rec.Code)
	}
	var stored domain.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &stored); err != nil {
		t.Fatalf("failed to decode stored batch: %v", err)
	}
	if len(stored.Claims) != 2 {
		t.Errorf("expected 2 stored claims, got %d", len(stored.Claims))
	}

	// The rendered report is served as markdown
	rec = doRequest(t, srv, http.MethodGet, "/batches/"+resp.BatchID+"/report", nil, testTenant)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching report, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("expected markdown content type, got %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "CLM002") {
		t.Errorf("expected report to mention the audited claim: %s", rec.Body.String())
	}

	// Individual claim lookup
	rec = doRequest(t, srv, http.MethodGet, "/claims/CLM002", nil, testTenant)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching claim, got %d", rec.Code)
	}

	// Provider listing
	rec = doRequest(t, srv, http.MethodGet, "/providers/PRV001/claims", nil, testTenant)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing provider claims, got %d", rec.Code)
	}
	var listing struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	if listing.Count != 2 {
		t.Errorf("expected 2 provider claims, got %d", listing.Count)
	}
}

func TestTriageBatchMalformed(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"NotJSON", "not json"},
		{"Object", `{"claim_id": "CLM001"}`},
		{"Truncated", `[{"claim_id": "CLM001"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/triage", []byte(tc.body), testTenant)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestTriageRequiresTenant(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/triage", []byte(`[]`), "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without tenant header, got %d", rec.Code)
	}
}

func TestTriageAsync(t *testing.T) {
	srv := newTestServer(t)

	body := []byte(`[
		{"claim_id": "CLM001", "member_id": "MBR001", "provider_id": "PRV001",
		 "procedure_code": "99213", "diagnosis_code": "M54.5", "cost": 100,
		 "date_of_service": "2025-06-01", "claim_type": "outpatient"}
	]`)

	rec := doRequest(t, srv, http.MethodPost, "/triage/async", body, testTenant)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		BatchID  string `json:"batchId"`
		Received int    `json:"received"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.BatchID == "" || resp.Received != 1 || resp.Status != "queued" {
		t.Errorf("unexpected async response: %+v", resp)
	}

	rec = doRequest(t, srv, http.MethodPost, "/triage/async", []byte("not json"), testTenant)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed async batch, got %d", rec.Code)
	}
}

func TestBatchNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/batches/missing", nil, testTenant)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown batch, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/claims/missing", nil, testTenant)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown claim, got %d", rec.Code)
	}
}

func TestRuleLifecycle(t *testing.T) {
	srv := newTestServer(t)

	// Nothing loaded at startup
	rec := doRequest(t, srv, http.MethodGet, "/rules", nil, testTenant)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing rules, got %d", rec.Code)
	}
	var listing struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	if listing.Count != 0 {
		t.Errorf("expected no rules initially, got %d", listing.Count)
	}

	// Create a rule
	create := []byte(`{
		"id": "rule-001",
		"name": "expensive_outpatient",
		"expression": "category == \"outpatient\" && cost > 1000",
		"tag": "expensive_outpatient",
		"severity": 60,
		"enabled": true
	}`)
	rec = doRequest(t, srv, http.MethodPost, "/rules", create, testTenant)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// The rule appears in the engine via LoadRule
	rec = doRequest(t, srv, http.MethodGet, "/rules/rule-001", nil, testTenant)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching rule, got %d", rec.Code)
	}

	// Reload pulls the persisted rules back from the database
	rec = doRequest(t, srv, http.MethodPost, "/rules/reload", nil, testTenant)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 reloading rules, got %d: %s", rec.Code, rec.Body.String())
	}
	var reload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reload); err != nil {
		t.Fatalf("failed to decode reload response: %v", err)
	}
	if reload.Count != 1 {
		t.Errorf("expected 1 rule after reload, got %d", reload.Count)
	}

	rec = doRequest(t, srv, http.MethodGet, "/rules/missing", nil, testTenant)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown rule, got %d", rec.Code)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"MissingFields", `{"id": "rule-001"}`},
		{"BadExpression", `{"id": "rule-001", "name": "bad", "expression": "cost >", "tag": "bad"}`},
		{"NotJSON", "not json"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/rules", []byte(tc.body), testTenant)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}
