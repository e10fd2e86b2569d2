package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"repairdesk/internal/infrastructure/cache"
	"repairdesk/internal/infrastructure/catalog"
	"repairdesk/internal/infrastructure/metrics"
	"repairdesk/internal/infrastructure/notify"
	"repairdesk/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "repairdesk/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "repairdesk/internal/infrastructure/persistence/sqlite/uow"
	"repairdesk/internal/usecase/servicedesk"
)

type testServer struct {
	handler http.Handler
	saver   *servicedesk.DraftAutoSaver
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "httpapi.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	parts, err := catalog.Parse([]byte(`
version = 1

[[parts]]
code = "SCR-01"
description = "screen"
parent = "SCR-00"

[[parts]]
code = "SCR-00"
description = "screen assembly"
`))
	if err != nil {
		t.Fatalf("catalog.Parse() error = %v", err)
	}

	reg := prometheus.NewRegistry()
	collectors, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("metrics.New() error = %v", err)
	}

	var seq atomic.Int64
	svc, err := servicedesk.NewService(servicedesk.Dependencies{
		Incidents:      sqliterepo.NewIncidentRepository(db),
		Diagnostics:    sqliterepo.NewDiagnosticRepository(db),
		PartsRequests:  sqliterepo.NewPartsRequestRepository(db),
		ChangeRequests: sqliterepo.NewChangeRequestRepository(db),
		Verifications:  sqliterepo.NewRecurrenceVerificationRepository(db),
		Photos:         sqliterepo.NewPhotoRepository(db),
		ChangeLog:      sqliterepo.NewChangeLogRepository(db),
		UnitOfWork:     sqliteuow.NewUnitOfWork(db),
		Cache:          cache.NewSQLiteCache(db),
		Catalog:        parts,
		Notifier:       notify.NewLogNotifier(),
		Metrics:        collectors,
	}, servicedesk.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	saver := servicedesk.NewDraftAutoSaver(svc, time.Hour)
	return &testServer{
		handler: NewRouter(svc, saver, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		saver:   saver,
	}
}

func (s *testServer) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

func decodeBody[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v; body=%s", err, resp.Body.String())
	}
	return out
}

func wantStatus(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()

	if resp.Code != want {
		t.Fatalf("status = %d, want %d; body=%s", resp.Code, want, resp.Body.String())
	}
}

// benchIncident creates an incident over HTTP and brings it to in_diagnosis.
func (s *testServer) benchIncident(t *testing.T, customerID string) incidentResponse {
	t.Helper()

	resp := s.do(t, http.MethodPost, "/incidents", map[string]any{
		"customer_id":         customerID,
		"product_id":          "phone-x",
		"problem_description": "screen flickers",
		"entry_channel":       "counter",
		"actor":               "desk",
	})
	wantStatus(t, resp, http.StatusCreated)
	created := decodeBody[incidentResponse](t, resp)

	wantStatus(t, s.do(t, http.MethodPost, "/incidents/"+created.ID+"/admit", map[string]any{"actor": "desk"}), http.StatusOK)
	resp = s.do(t, http.MethodPost, "/incidents/"+created.ID+"/start-diagnosis", map[string]any{"actor": "tech-1"})
	wantStatus(t, resp, http.StatusOK)
	return decodeBody[incidentResponse](t, resp)
}

func TestCreateIncidentAndFetchDetail(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp := srv.do(t, http.MethodPost, "/incidents", map[string]any{
		"customer_id":         "cust-1",
		"problem_description": "does not boot",
		"entry_channel":       "counter",
		"actor":               "desk",
	})
	wantStatus(t, resp, http.StatusCreated)
	created := decodeBody[incidentResponse](t, resp)
	if created.Status != "registered" {
		t.Fatalf("status = %q, want registered", created.Status)
	}
	if !strings.HasPrefix(created.Code, "INC-") {
		t.Fatalf("code = %q, want INC- prefix", created.Code)
	}

	resp = srv.do(t, http.MethodGet, "/incidents/"+created.ID, nil)
	wantStatus(t, resp, http.StatusOK)
	detail := decodeBody[detailResponse](t, resp)
	if detail.Incident.ID != created.ID {
		t.Fatalf("detail id = %q, want %q", detail.Incident.ID, created.ID)
	}
	if detail.CurrentDiagnostic != nil {
		t.Fatalf("current diagnostic = %+v, want nil", detail.CurrentDiagnostic)
	}

	resp = srv.do(t, http.MethodGet, "/incidents?customer_id=cust-1", nil)
	wantStatus(t, resp, http.StatusOK)
	if list := decodeBody[[]incidentResponse](t, resp); len(list) != 1 {
		t.Fatalf("list len = %d, want 1", len(list))
	}
}

func TestErrorStatusMapping(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/incidents", map[string]any{"entry_channel": "counter"})
	wantStatus(t, resp, http.StatusUnprocessableEntity)
	if body := decodeBody[errorResponse](t, resp); body.Field != "customer_id" || body.Kind != "validation" {
		t.Fatalf("error body = %+v, want validation on customer_id", body)
	}

	wantStatus(t, srv.do(t, http.MethodGet, "/incidents/missing", nil), http.StatusNotFound)

	req := httptest.NewRequest(http.MethodPost, "/incidents", strings.NewReader(`{"unknown":1}`))
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	wantStatus(t, rec, http.StatusBadRequest)

	bench := srv.benchIncident(t, "cust-2")
	resp = srv.do(t, http.MethodPost, "/incidents/"+bench.ID+"/admit", map[string]any{"actor": "desk"})
	wantStatus(t, resp, http.StatusUnprocessableEntity)

	resp = srv.do(t, http.MethodPost, "/incidents/"+bench.ID+"/observations", map[string]any{
		"user":    "tech-1",
		"message": "battery swollen",
	})
	wantStatus(t, resp, http.StatusOK)

	resp = srv.do(t, http.MethodPost, "/incidents/"+bench.ID+"/reject", map[string]any{
		"actor":            "tech-1",
		"reason":           "customer withdrew",
		"expected_version": bench.Version,
	})
	wantStatus(t, resp, http.StatusConflict)

	if _, err := queryInt(httptest.NewRequest(http.MethodGet, "/incidents?limit=-1", nil), "limit"); err == nil {
		t.Fatal("queryInt() error = nil, want validation error")
	}
}

func TestGatedDecisionThroughApproval(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	bench := srv.benchIncident(t, "cust-3")

	resp := srv.do(t, http.MethodPost, "/incidents/"+bench.ID+"/diagnosis", map[string]any{
		"technician_id": "tech-1",
		"faults":        []string{"dead panel"},
		"causes":        []string{"factory defect"},
		"resolution":    "warranty_exchange",
		"justification": "panel failed twice under warranty",
		"evidence_refs": []string{"photo-1"},
	})
	wantStatus(t, resp, http.StatusAccepted)
	decision := decodeBody[decisionResponse](t, resp)
	if !decision.Gated || decision.ChangeRequest == nil {
		t.Fatalf("decision = %+v, want gated with change request", decision)
	}
	if decision.Incident.Status != "in_diagnosis" {
		t.Fatalf("incident status = %q, want in_diagnosis", decision.Incident.Status)
	}

	resp = srv.do(t, http.MethodPost, "/change-requests/"+decision.ChangeRequest.ID+"/resolve", map[string]any{
		"outcome":     "approved",
		"resolved_by": "supervisor",
	})
	wantStatus(t, resp, http.StatusOK)
	resolved := decodeBody[struct {
		ChangeRequest changeRequestResponse `json:"change_request"`
		Incident      incidentResponse      `json:"incident"`
	}](t, resp)
	if resolved.ChangeRequest.Status != "approved" {
		t.Fatalf("change request status = %q, want approved", resolved.ChangeRequest.Status)
	}
	if resolved.Incident.Status != "warranty_exchange" {
		t.Fatalf("incident status = %q, want warranty_exchange", resolved.Incident.Status)
	}

	resp = srv.do(t, http.MethodPost, "/change-requests/"+decision.ChangeRequest.ID+"/resolve", map[string]any{
		"outcome":     "rejected",
		"resolved_by": "supervisor",
	})
	wantStatus(t, resp, http.StatusConflict)

	resp = srv.do(t, http.MethodGet, "/incidents/"+bench.ID+"/timeline?order=asc", nil)
	wantStatus(t, resp, http.StatusOK)
	tl := decodeBody[timelineResponse](t, resp)
	if tl.Order != "asc" || len(tl.Events) == 0 {
		t.Fatalf("timeline = %+v, want ascending events", tl)
	}
}

func TestPendingPartsFlow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	bench := srv.benchIncident(t, "cust-4")

	resp := srv.do(t, http.MethodPost, "/incidents/"+bench.ID+"/parts-requests", map[string]any{
		"requester_id": "tech-1",
		"items":        []map[string]any{{"code": "ZZZ-9", "quantity": 1, "description": "unlisted"}},
	})
	wantStatus(t, resp, http.StatusNotFound)

	resp = srv.do(t, http.MethodPost, "/incidents/"+bench.ID+"/diagnosis", map[string]any{
		"technician_id": "tech-1",
		"faults":        []string{"cracked screen"},
		"causes":        []string{"drop"},
		"resolution":    "pending_parts",
		"parts": []map[string]any{
			{"code": "SCR-01", "quantity": 1, "description": "screen"},
		},
	})
	wantStatus(t, resp, http.StatusOK)
	decision := decodeBody[decisionResponse](t, resp)
	if decision.PartsRequest == nil {
		t.Fatal("parts request = nil, want created")
	}
	if got := decision.PartsRequest.Items[0]; got.Code != "SCR-00" || got.OriginalCode != "SCR-01" {
		t.Fatalf("parts item = %+v, want SCR-01 substituted by SCR-00", got)
	}

	resp = srv.do(t, http.MethodPost, "/parts-requests/"+decision.PartsRequest.ID+"/fulfill", map[string]any{"resolved_by": "warehouse"})
	wantStatus(t, resp, http.StatusOK)
	if pr := decodeBody[partsRequestResponse](t, resp); pr.Status != "fulfilled" {
		t.Fatalf("parts request status = %q, want fulfilled", pr.Status)
	}

	resp = srv.do(t, http.MethodPost, "/parts-requests/"+decision.PartsRequest.ID+"/reject", map[string]any{"resolved_by": "warehouse"})
	wantStatus(t, resp, http.StatusConflict)

	resp = srv.do(t, http.MethodGet, "/incidents/"+bench.ID+"/parts-requests", nil)
	wantStatus(t, resp, http.StatusOK)
	if list := decodeBody[[]partsRequestResponse](t, resp); len(list) != 1 {
		t.Fatalf("parts requests = %d, want 1", len(list))
	}
}

func TestDraftIsStagedForAutosave(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	bench := srv.benchIncident(t, "cust-5")

	draft := map[string]any{
		"technician_id": "tech-1",
		"faults":        []string{"noisy fan"},
	}
	resp := srv.do(t, http.MethodPut, "/incidents/"+bench.ID+"/diagnosis/draft", draft)
	wantStatus(t, resp, http.StatusAccepted)
	if got := srv.saver.Pending(); got != 1 {
		t.Fatalf("pending drafts = %d, want 1", got)
	}

	resp = srv.do(t, http.MethodPut, "/incidents/"+bench.ID+"/diagnosis/draft?now=true", draft)
	wantStatus(t, resp, http.StatusOK)
	saved := decodeBody[diagnosticResponse](t, resp)
	if saved.State != "draft" || saved.Version != 1 {
		t.Fatalf("draft = %+v, want draft version 1", saved)
	}
}

func TestMetricsAndHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.benchIncident(t, "cust-6")

	wantStatus(t, srv.do(t, http.MethodGet, "/healthz", nil), http.StatusOK)

	resp := srv.do(t, http.MethodGet, "/metrics", nil)
	wantStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.Body.String(), "repairdesk_status_transitions_total") {
		t.Fatalf("metrics body missing transitions counter:\n%s", resp.Body.String())
	}
}
