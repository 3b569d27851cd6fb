package clinic

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSeedDefaultsOnEmptyPath(t *testing.T) {
	data, err := LoadSeed("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data.Patients) != 2 || len(data.Doctors) != 2 || len(data.Rooms) != 3 {
		t.Errorf("unexpected default fixture sizes: %d/%d/%d", len(data.Patients), len(data.Doctors), len(data.Rooms))
	}
	if data.Rooms[2].RoomNumber != "W201" {
		t.Errorf("third default room = %s, want W201", data.Rooms[2].RoomNumber)
	}
}

func TestLoadSeedFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `patients:
  - full_name: Test Person
    email: test@example.com
doctors:
  - full_name: Dr. Who
    specialization: General
rooms:
  - room_number: R1
    room_type: Consultation
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	data, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data.Patients) != 1 || data.Patients[0].Email != "test@example.com" {
		t.Errorf("patients = %+v", data.Patients)
	}
	if len(data.Doctors) != 1 || data.Doctors[0].Specialization != "General" {
		t.Errorf("doctors = %+v", data.Doctors)
	}
	if len(data.Rooms) != 1 || data.Rooms[0].RoomNumber != "R1" {
		t.Errorf("rooms = %+v", data.Rooms)
	}
}

func TestLoadSeedErrors(t *testing.T) {
	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(empty, []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	if _, err := LoadSeed(empty); err == nil {
		t.Error("expected an error for a fixture-less file")
	}

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("patients: {not: [a, list"), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	if _, err := LoadSeed(invalid); err == nil {
		t.Error("expected an error for malformed yaml")
	}
}

func TestSeedIdempotent(t *testing.T) {
	svc := NewSchedulerService(NewMemStore(), nil, nil)
	ctx := context.Background()

	first, err := svc.Seed(ctx, DefaultSeed())
	if err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if first.PatientsCreated != 2 || first.DoctorsCreated != 2 || first.RoomsCreated != 3 {
		t.Errorf("first seed created %+v", first)
	}

	second, err := svc.Seed(ctx, DefaultSeed())
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if second.PatientsCreated != 0 || second.DoctorsCreated != 0 || second.RoomsCreated != 0 {
		t.Errorf("second seed created %+v, want nothing", second)
	}

	patients, err := svc.ListPatients(ctx)
	if err != nil {
		t.Fatalf("list patients: %v", err)
	}
	if len(patients) != 2 {
		t.Errorf("patients = %d, want 2", len(patients))
	}
	rooms, err := svc.ListRooms(ctx)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 3 {
		t.Errorf("rooms = %d, want 3", len(rooms))
	}
}

func TestSeedFillsOnlyMissingFixtures(t *testing.T) {
	svc := NewSchedulerService(NewMemStore(), nil, nil)
	ctx := context.Background()

	if _, err := svc.Seed(ctx, DefaultSeed()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	extended := DefaultSeed()
	extended.Doctors = append(extended.Doctors, SeedDoctor{FullName: "Dr. New Hire", Specialization: "Oncology"})

	result, err := svc.Seed(ctx, extended)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if result.DoctorsCreated != 1 || result.PatientsCreated != 0 || result.RoomsCreated != 0 {
		t.Errorf("expected only the new doctor to be created, got %+v", result)
	}
	doctors, err := svc.ListDoctors(ctx)
	if err != nil {
		t.Fatalf("list doctors: %v", err)
	}
	if len(doctors) != 3 {
		t.Errorf("doctors = %d, want 3", len(doctors))
	}
}
