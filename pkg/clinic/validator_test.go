package clinic

import (
	"errors"
	"testing"

	"github.com/clinicore/scheduling/pkg/common/models"
)

func validationField(t *testing.T, err error) string {
	t.Helper()
	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	return ve.Field
}

func TestCanonicalTime(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-08-30 09:00", "2025-08-30 09:00:00"},
		{"2025-08-30 09:00:05", "2025-08-30 09:00:05"},
		{"2025-08-30T09:00:00Z", "2025-08-30 09:00:00"},
		{"2025-08-30T11:30:00+02:00", "2025-08-30 09:30:00"},
		{"  2025-08-30 09:00  ", "2025-08-30 09:00:00"},
	}
	for _, tc := range cases {
		got, err := CanonicalTime(tc.in)
		if err != nil {
			t.Errorf("CanonicalTime(%q) returned error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CanonicalTime(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalTimeRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "next tuesday", "2025-13-40 09:00", "09:00"} {
		if _, err := CanonicalTime(in); err == nil {
			t.Errorf("CanonicalTime(%q) accepted an invalid input", in)
		}
	}
}

func TestCanonicalDate(t *testing.T) {
	got, err := CanonicalDate(" 2025-08-30 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2025-08-30" {
		t.Errorf("CanonicalDate = %q, want 2025-08-30", got)
	}
	for _, in := range []string{"", "30/08/2025", "2025-08-30 09:00"} {
		if _, err := CanonicalDate(in); err == nil {
			t.Errorf("CanonicalDate(%q) accepted an invalid input", in)
		}
	}
}

func TestValidatePatientNormalizes(t *testing.T) {
	v := NewValidator()
	req := models.CreatePatientRequest{
		FullName:    "  Carol Silva  ",
		DateOfBirth: "1990-01-05",
		Gender:      "female",
		Email:       "  Carol.Silva@Example.COM ",
	}
	if err := v.ValidatePatient(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.FullName != "Carol Silva" {
		t.Errorf("full name = %q", req.FullName)
	}
	if req.Gender != "Female" {
		t.Errorf("gender = %q, want Female", req.Gender)
	}
	if req.Email != "carol.silva@example.com" {
		t.Errorf("email = %q", req.Email)
	}
}

func TestValidatePatientRejects(t *testing.T) {
	v := NewValidator()

	err := v.ValidatePatient(&models.CreatePatientRequest{FullName: " "})
	if field := validationField(t, err); field != "full_name" {
		t.Errorf("expected full_name failure, got %s", field)
	}
	err = v.ValidatePatient(&models.CreatePatientRequest{FullName: "Carol", Gender: "robot"})
	if field := validationField(t, err); field != "gender" {
		t.Errorf("expected gender failure, got %s", field)
	}
	err = v.ValidatePatient(&models.CreatePatientRequest{FullName: "Carol", DateOfBirth: "05-01-1990"})
	if field := validationField(t, err); field != "date_of_birth" {
		t.Errorf("expected date_of_birth failure, got %s", field)
	}
}

func TestValidateDoctor(t *testing.T) {
	v := NewValidator()

	req := models.CreateDoctorRequest{FullName: " Dr. New ", Specialization: " ENT "}
	if err := v.ValidateDoctor(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Specialization != "ENT" {
		t.Errorf("specialization = %q", req.Specialization)
	}

	err := v.ValidateDoctor(&models.CreateDoctorRequest{FullName: "Dr. New"})
	if field := validationField(t, err); field != "specialization" {
		t.Errorf("expected specialization failure, got %s", field)
	}
}

func TestValidateBooking(t *testing.T) {
	v := NewValidator()

	req := models.BookAppointmentRequest{
		PatientID: 1,
		DoctorID:  2,
		StartTime: "2025-08-30 09:00",
		EndTime:   "2025-08-30T09:30:00Z",
		Notes:     "  follow-up  ",
	}
	if err := v.ValidateBooking(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.StartTime != "2025-08-30 09:00:00" {
		t.Errorf("start = %q", req.StartTime)
	}
	if req.EndTime != "2025-08-30 09:30:00" {
		t.Errorf("end = %q", req.EndTime)
	}
	if req.Notes != "follow-up" {
		t.Errorf("notes = %q", req.Notes)
	}
}

func TestValidateBookingRejects(t *testing.T) {
	v := NewValidator()
	zero := uint64(0)

	cases := []struct {
		name  string
		req   models.BookAppointmentRequest
		field string
	}{
		{"missing patient", models.BookAppointmentRequest{DoctorID: 1, StartTime: "2025-08-30 09:00"}, "patient_id"},
		{"missing doctor", models.BookAppointmentRequest{PatientID: 1, StartTime: "2025-08-30 09:00"}, "doctor_id"},
		{"zero room", models.BookAppointmentRequest{PatientID: 1, DoctorID: 1, RoomID: &zero, StartTime: "2025-08-30 09:00"}, "room_id"},
		{"bad start", models.BookAppointmentRequest{PatientID: 1, DoctorID: 1, StartTime: "soon"}, "start_time"},
		{"end before start", models.BookAppointmentRequest{PatientID: 1, DoctorID: 1, StartTime: "2025-08-30 09:00", EndTime: "2025-08-30 08:00"}, "end_time"},
		{"end equals start", models.BookAppointmentRequest{PatientID: 1, DoctorID: 1, StartTime: "2025-08-30 09:00", EndTime: "2025-08-30 09:00"}, "end_time"},
	}
	for _, tc := range cases {
		err := v.ValidateBooking(&tc.req)
		if field := validationField(t, err); field != tc.field {
			t.Errorf("%s: expected %s failure, got %s", tc.name, tc.field, field)
		}
	}
}

func TestParseStatus(t *testing.T) {
	v := NewValidator()

	cases := map[string]models.AppointmentStatus{
		"Booked":    models.StatusBooked,
		"booked":    models.StatusBooked,
		"COMPLETED": models.StatusCompleted,
		" cancelled ": models.StatusCancelled,
	}
	for in, want := range cases {
		got, err := v.ParseStatus(in)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseStatus(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := v.ParseStatus("archived"); !IsValidationError(err) {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}
