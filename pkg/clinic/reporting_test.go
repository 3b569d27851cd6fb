package clinic

import (
	"context"
	"testing"

	"github.com/clinicore/scheduling/pkg/common/models"
)

func newTestReporting(t *testing.T) (*SchedulerService, *ReportingService) {
	t.Helper()
	store := NewMemStore()
	svc := NewSchedulerService(store, nil, nil)
	if _, err := svc.Seed(context.Background(), DefaultSeed()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return svc, NewReportingService(store, nil)
}

func TestAppointmentsPerDoctorOrdering(t *testing.T) {
	svc, reports := newTestReporting(t)

	// Two for Dr. Isuri Ranasinghe (doctor 2), one for Dr. Nimal Fernando.
	mustBook(t, svc, models.BookAppointmentRequest{PatientID: 1, DoctorID: 2, StartTime: "2025-08-30 09:00"})
	mustBook(t, svc, models.BookAppointmentRequest{PatientID: 1, DoctorID: 2, StartTime: "2025-08-30 10:00"})
	mustBook(t, svc, models.BookAppointmentRequest{PatientID: 2, DoctorID: 1, StartTime: "2025-08-30 09:00"})

	rows, err := reports.AppointmentsPerDoctor(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Doctor != "Dr. Isuri Ranasinghe" || rows[0].TotalAppointments != 2 {
		t.Errorf("row 0 = %s/%d, want Dr. Isuri Ranasinghe/2", rows[0].Doctor, rows[0].TotalAppointments)
	}
	if rows[1].Doctor != "Dr. Nimal Fernando" || rows[1].TotalAppointments != 1 {
		t.Errorf("row 1 = %s/%d, want Dr. Nimal Fernando/1", rows[1].Doctor, rows[1].TotalAppointments)
	}
}

func TestAppointmentsPerDoctorIncludesIdleDoctors(t *testing.T) {
	svc, reports := newTestReporting(t)
	ctx := context.Background()

	if _, err := svc.CreateDoctor(ctx, models.CreateDoctorRequest{FullName: "Dr. Asha Silva", Specialization: "Neurology"}); err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	mustBook(t, svc, models.BookAppointmentRequest{PatientID: 1, DoctorID: 1, StartTime: "2025-08-30 09:00"})

	rows, err := reports.AppointmentsPerDoctor(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Doctor != "Dr. Nimal Fernando" {
		t.Errorf("busiest doctor = %s", rows[0].Doctor)
	}
	// Idle doctors tie at zero; the tie breaks on name.
	if rows[1].Doctor != "Dr. Asha Silva" || rows[1].TotalAppointments != 0 {
		t.Errorf("row 1 = %s/%d", rows[1].Doctor, rows[1].TotalAppointments)
	}
	if rows[2].Doctor != "Dr. Isuri Ranasinghe" || rows[2].TotalAppointments != 0 {
		t.Errorf("row 2 = %s/%d", rows[2].Doctor, rows[2].TotalAppointments)
	}
}

func TestAppointmentsPerDoctorExcludesCancelled(t *testing.T) {
	svc, reports := newTestReporting(t)
	ctx := context.Background()

	appt := mustBook(t, svc, models.BookAppointmentRequest{PatientID: 1, DoctorID: 1, StartTime: "2025-08-30 09:00"})
	if _, err := svc.CancelAppointment(ctx, appt.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	rows, err := reports.AppointmentsPerDoctor(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, row := range rows {
		if row.TotalAppointments != 0 {
			t.Errorf("%s counts a cancelled appointment: %d", row.Doctor, row.TotalAppointments)
		}
	}
}

func TestRoomUtilization(t *testing.T) {
	svc, reports := newTestReporting(t)
	ctx := context.Background()

	mustBook(t, svc, models.BookAppointmentRequest{PatientID: 1, DoctorID: 1, RoomID: roomRef(1), StartTime: "2025-08-30 09:00"})
	mustBook(t, svc, models.BookAppointmentRequest{PatientID: 1, DoctorID: 1, RoomID: roomRef(3), StartTime: "2025-08-30 10:00"})
	// Different date, must not appear in the 08-30 report.
	mustBook(t, svc, models.BookAppointmentRequest{PatientID: 2, DoctorID: 2, RoomID: roomRef(1), StartTime: "2025-08-31 09:00"})

	rows, err := reports.RoomUtilization(ctx, "2025-08-30")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected all 3 rooms, got %d", len(rows))
	}
	expect := []struct {
		number string
		total  int64
	}{
		{"C101", 1},
		{"C102", 0},
		{"W201", 1},
	}
	for i, want := range expect {
		if rows[i].RoomNumber != want.number || rows[i].TotalAppointments != want.total {
			t.Errorf("row %d = %s/%d, want %s/%d", i, rows[i].RoomNumber, rows[i].TotalAppointments, want.number, want.total)
		}
	}
}

func TestRoomUtilizationExcludesCancelled(t *testing.T) {
	svc, reports := newTestReporting(t)
	ctx := context.Background()

	appt := mustBook(t, svc, models.BookAppointmentRequest{PatientID: 1, DoctorID: 1, RoomID: roomRef(1), StartTime: "2025-08-30 09:00"})
	if _, err := svc.CancelAppointment(ctx, appt.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	rows, err := reports.RoomUtilization(ctx, "2025-08-30")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, row := range rows {
		if row.TotalAppointments != 0 {
			t.Errorf("room %s counts a cancelled appointment", row.RoomNumber)
		}
	}
}

func TestRoomUtilizationRejectsBadDate(t *testing.T) {
	_, reports := newTestReporting(t)

	if _, err := reports.RoomUtilization(context.Background(), "30/08/2025"); !IsValidationError(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := reports.RoomUtilization(context.Background(), ""); !IsValidationError(err) {
		t.Errorf("expected validation error for empty date, got %v", err)
	}
}

func TestCounts(t *testing.T) {
	svc, reports := newTestReporting(t)
	ctx := context.Background()

	first := mustBook(t, svc, models.BookAppointmentRequest{PatientID: 1, DoctorID: 1, StartTime: "2025-08-30 09:00"})
	mustBook(t, svc, models.BookAppointmentRequest{PatientID: 2, DoctorID: 2, StartTime: "2025-08-30 09:00"})
	if _, err := svc.CancelAppointment(ctx, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	counts, err := reports.Counts(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if counts.Patients != 2 || counts.Doctors != 2 {
		t.Errorf("entity counts = %+v", counts)
	}
	if counts.Appointments != 1 {
		t.Errorf("active appointments = %d, want 1", counts.Appointments)
	}
}

func TestTopRoomLoads(t *testing.T) {
	svc, reports := newTestReporting(t)

	// C102 twice, C101 once, W201 idle.
	mustBook(t, svc, models.BookAppointmentRequest{PatientID: 1, DoctorID: 1, RoomID: roomRef(2), StartTime: "2025-08-30 09:00"})
	mustBook(t, svc, models.BookAppointmentRequest{PatientID: 1, DoctorID: 1, RoomID: roomRef(2), StartTime: "2025-08-31 09:00"})
	mustBook(t, svc, models.BookAppointmentRequest{PatientID: 2, DoctorID: 2, RoomID: roomRef(1), StartTime: "2025-08-30 09:00"})

	rows, err := reports.TopRoomLoads(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rooms, got %d", len(rows))
	}
	if rows[0].RoomNumber != "C102" || rows[0].Total != 2 {
		t.Errorf("row 0 = %s/%d, want C102/2", rows[0].RoomNumber, rows[0].Total)
	}
	if rows[1].RoomNumber != "C101" || rows[1].Total != 1 {
		t.Errorf("row 1 = %s/%d, want C101/1", rows[1].RoomNumber, rows[1].Total)
	}
	if rows[2].RoomNumber != "W201" || rows[2].Total != 0 {
		t.Errorf("row 2 = %s/%d, want W201/0", rows[2].RoomNumber, rows[2].Total)
	}
}
