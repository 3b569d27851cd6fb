package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clinicore/scheduling/pkg/common/models"
	"github.com/gorilla/mux"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	store := NewMemStore()
	svc := NewSchedulerService(store, nil, nil)
	if _, err := svc.Seed(context.Background(), DefaultSeed()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	NewHandler(svc, NewReportingService(store, nil)).Register(api)
	return router
}

func doRequest(t *testing.T, router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestBookAppointmentEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/appointments",
		`{"patient_id": 1, "doctor_id": 1, "room_id": 1, "start_time": "2025-08-30 09:00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Appointment models.Appointment `json:"appointment"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Appointment.ID == 0 {
		t.Error("expected an assigned appointment id")
	}
	if body.Appointment.StartTime != "2025-08-30 09:00:00" {
		t.Errorf("start time = %q", body.Appointment.StartTime)
	}
	if body.Appointment.Status != models.StatusBooked {
		t.Errorf("status = %s", body.Appointment.Status)
	}
}

func TestBookAppointmentEndpointConflict(t *testing.T) {
	router := newTestRouter(t)

	payload := `{"patient_id": 1, "doctor_id": 1, "start_time": "2025-08-30 09:00"}`
	if rec := doRequest(t, router, http.MethodPost, "/api/v1/appointments", payload); rec.Code != http.StatusCreated {
		t.Fatalf("first booking failed: %d %s", rec.Code, rec.Body.String())
	}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/appointments",
		`{"patient_id": 2, "doctor_id": 1, "start_time": "2025-08-30 09:00"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Doctor already booked at this time") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestBookAppointmentEndpointRejects(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"patient_id": `, http.StatusBadRequest},
		{"bad time", `{"patient_id": 1, "doctor_id": 1, "start_time": "whenever"}`, http.StatusBadRequest},
		{"unknown doctor", `{"patient_id": 1, "doctor_id": 42, "start_time": "2025-08-30 09:00"}`, http.StatusNotFound},
		{"unknown patient", `{"patient_id": 42, "doctor_id": 1, "start_time": "2025-08-30 09:00"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/appointments", tc.body)
		if rec.Code != tc.code {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.code)
		}
	}
}

func TestUpdateAppointmentStatusEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/appointments",
		`{"patient_id": 1, "doctor_id": 1, "start_time": "2025-08-30 09:00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("booking failed: %d", rec.Code)
	}
	var created struct {
		Appointment models.Appointment `json:"appointment"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	path := fmt.Sprintf("/api/v1/appointments/%d/status", created.Appointment.ID)
	rec = doRequest(t, router, http.MethodPatch, path, `{"status": "Cancelled"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Appointment models.Appointment `json:"appointment"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Appointment.Status != models.StatusCancelled {
		t.Errorf("status = %s, want Cancelled", updated.Appointment.Status)
	}

	if rec := doRequest(t, router, http.MethodPatch, path, `{"status": "archived"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status: code = %d, want 400", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodPatch, "/api/v1/appointments/999/status", `{"status": "Cancelled"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown appointment: code = %d, want 404", rec.Code)
	}
}

func TestDeletePatientEndpoint(t *testing.T) {
	router := newTestRouter(t)

	if rec := doRequest(t, router, http.MethodDelete, "/api/v1/patients/1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/api/v1/patients/1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodDelete, "/api/v1/patients/1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", rec.Code)
	}
}

func TestCreateRoomEndpointDuplicate(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/rooms", `{"room_number": "C101"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestListPatientsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/patients", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Items []models.Patient `json:"items"`
		Count int              `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || len(body.Items) != 2 {
		t.Errorf("count = %d, items = %d", body.Count, len(body.Items))
	}
	if body.Items[0].FullName != "Alice Johnson" {
		t.Errorf("first patient = %s", body.Items[0].FullName)
	}
}

func TestDoctorReportEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/reports/doctors", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Items []models.DoctorAppointmentCount `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 2 {
		t.Errorf("items = %d, want 2", len(body.Items))
	}
}

func TestRoomUtilizationEndpoint(t *testing.T) {
	router := newTestRouter(t)

	if rec := doRequest(t, router, http.MethodGet, "/api/v1/reports/rooms", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing date: status = %d, want 400", rec.Code)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/v1/reports/rooms?date=2025-08-30", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Items []models.RoomUtilizationRow `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 3 {
		t.Errorf("items = %d, want all 3 rooms", len(body.Items))
	}
}

func TestCountsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/reports/counts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var counts models.EntityCounts
	if err := json.NewDecoder(rec.Body).Decode(&counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if counts.Patients != 2 || counts.Doctors != 2 || counts.Appointments != 0 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestAuditLogEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/audit?limit=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Items []models.AuditLogEntry `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(body.Items))
	}
	// Seeding writes rooms last, so the newest entries are room inserts.
	if body.Items[0].Entity != "Rooms" || body.Items[0].Action != "INSERT" {
		t.Errorf("latest entry = %s %s", body.Items[0].Entity, body.Items[0].Action)
	}
	if body.Items[0].ID <= body.Items[1].ID {
		t.Errorf("expected descending log ids, got %d then %d", body.Items[0].ID, body.Items[1].ID)
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"", 100},
		{"limit=5", 5},
		{"limit=0", 100},
		{"limit=-3", 100},
		{"limit=501", 100},
		{"limit=abc", 100},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/audit?"+tc.query, nil)
		if got := parseLimit(req, 100); got != tc.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tc.query, got, tc.want)
		}
	}
}
