package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWritePrometheus(t *testing.T) {
	IncBooking()
	IncDoctorConflict()

	rec := httptest.NewRecorder()
	WritePrometheus(rec)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"clinic_bookings_total",
		"clinic_booking_conflicts_doctor_total",
		"clinic_booking_conflicts_room_total",
		"clinic_audit_appends_total",
		"clinic_events_published_total",
	} {
		if !strings.Contains(body, "# TYPE "+name+" counter") {
			t.Errorf("missing TYPE line for %s", name)
		}
	}
	if !strings.Contains(body, "clinic_bookings_total 1") {
		t.Errorf("booking counter not rendered: %s", body)
	}
}
