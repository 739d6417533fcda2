package rebac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	snap, err := sampleConfig().BuildSnapshot()
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return NewServer(NewEngine(), &StaticSnapshotSource{Snap: snap})
}

func postJSON(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestServerEvaluate(t *testing.T) {
	srv := testServer(t)

	rec := postJSON(t, srv, "/evaluate", `{
		"resource": "subtask-1",
		"action": "read",
		"actor": {"id": "user-1", "assignments": [{"role": "viewer"}]}
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var d Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Status != StatusGranted {
		t.Fatalf("expected granted, got %s", d.Status)
	}
	if len(d.Trace) == 0 {
		t.Fatalf("expected trace in response")
	}
}

func TestServerEvaluateValidation(t *testing.T) {
	srv := testServer(t)

	rec := postJSON(t, srv, "/evaluate", `{"resource": "subtask-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rec.Code)
	}

	rec = postJSON(t, srv, "/evaluate", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", rec.Code)
	}
}

func TestServerSnapshotFault(t *testing.T) {
	srv := NewServer(NewEngine(), &StaticSnapshotSource{})

	rec := postJSON(t, srv, "/evaluate", `{
		"resource": "subtask-1",
		"action": "read",
		"actor": {"id": "user-1"}
	}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for snapshot fault, got %d", rec.Code)
	}
}

func TestServerEvaluateBatch(t *testing.T) {
	srv := testServer(t)

	rec := postJSON(t, srv, "/evaluate/batch", `{
		"actor": {"id": "user-1", "assignments": [{"role": "viewer"}]},
		"requests": [
			{"resource": "subtask-1", "action": "read"},
			{"resource": "subtask-1", "action": "delete"}
		]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var decisions []Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &decisions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}
	if decisions[0].Status != StatusGranted || decisions[1].Status != StatusInherited {
		t.Fatalf("unexpected statuses: %s %s", decisions[0].Status, decisions[1].Status)
	}
}

func TestServerSimulateRoleChange(t *testing.T) {
	srv := testServer(t)

	rec := postJSON(t, srv, "/simulate-role-change", `{
		"role": "viewer",
		"added": ["write"],
		"population": [
			{"actor": "user-9", "resource": "project-1", "action": "write"}
		],
		"actors": {
			"user-9": {"id": "user-9", "assignments": [{"role": "viewer"}]}
		}
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var report RoleChangeReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.AffectedCount != 1 || len(report.GainedAccess) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestServerNavigation(t *testing.T) {
	srv := testServer(t)

	rec := postJSON(t, srv, "/navigation/evaluate", `{"permissions": ["ui.view.roles"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sections []NavSectionVisibility
	if err := json.Unmarshal(rec.Body.Bytes(), &sections); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sections) == 0 {
		t.Fatalf("expected sections")
	}

	rec = postJSON(t, srv, "/navigation/simulate", `{
		"baseline_permissions": [],
		"proposed_permissions": ["ui.view.roles"]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sim NavSimulation
	if err := json.Unmarshal(rec.Body.Bytes(), &sim); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sim.Summary.Added == 0 {
		t.Fatalf("expected added items, got %+v", sim.Summary)
	}
}

func TestServerValidateSchedule(t *testing.T) {
	srv := testServer(t)

	rec := postJSON(t, srv, "/validate-schedule", `{"expression": "* 9-17 * * 1-5"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp validateScheduleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Valid || len(resp.NextOccurrences) == 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rec = postJSON(t, srv, "/validate-schedule", `{"expression": "junk"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("malformed expression is a valid request, got %d", rec.Code)
	}
	resp = validateScheduleResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Valid || resp.Error == "" {
		t.Fatalf("expected invalid verdict, got %+v", resp)
	}
}

func TestServerSchedulePresets(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/schedule-presets", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var presets []SchedulePreset
	if err := json.Unmarshal(rec.Body.Bytes(), &presets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(presets) != 4 {
		t.Fatalf("expected 4 presets, got %d", len(presets))
	}
}
