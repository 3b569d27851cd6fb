package clinic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clinicore/scheduling/pkg/common/models"
	"gopkg.in/yaml.v3"
)

type SeedPatient struct {
	FullName    string `yaml:"full_name" json:"full_name"`
	DateOfBirth string `yaml:"date_of_birth" json:"date_of_birth"`
	Gender      string `yaml:"gender" json:"gender"`
	Phone       string `yaml:"phone" json:"phone"`
	Email       string `yaml:"email" json:"email"`
}

type SeedDoctor struct {
	FullName       string `yaml:"full_name" json:"full_name"`
	Specialization string `yaml:"specialization" json:"specialization"`
}

type SeedRoom struct {
	RoomNumber string `yaml:"room_number" json:"room_number"`
	RoomType   string `yaml:"room_type" json:"room_type"`
}

type SeedData struct {
	Patients []SeedPatient `yaml:"patients" json:"patients"`
	Doctors  []SeedDoctor  `yaml:"doctors" json:"doctors"`
	Rooms    []SeedRoom    `yaml:"rooms" json:"rooms"`
}

type SeedResult struct {
	PatientsCreated int `json:"patients_created"`
	DoctorsCreated  int `json:"doctors_created"`
	RoomsCreated    int `json:"rooms_created"`
}

// DefaultSeed is the built-in demo dataset.
func DefaultSeed() SeedData {
	return SeedData{
		Patients: []SeedPatient{
			{FullName: "Alice Johnson", DateOfBirth: "1995-04-10", Gender: "Female", Phone: "0771234567", Email: "alice@example.com"},
			{FullName: "Bob Perera", DateOfBirth: "1989-09-12", Gender: "Male", Phone: "0717654321", Email: "bob@example.com"},
		},
		Doctors: []SeedDoctor{
			{FullName: "Dr. Nimal Fernando", Specialization: "Cardiology"},
			{FullName: "Dr. Isuri Ranasinghe", Specialization: "Dermatology"},
		},
		Rooms: []SeedRoom{
			{RoomNumber: "C101", RoomType: "Consultation"},
			{RoomNumber: "C102", RoomType: "Consultation"},
			{RoomNumber: "W201", RoomType: "Ward"},
		},
	}
}

// LoadSeed reads fixtures from a YAML file; an empty path selects the
// built-in dataset.
func LoadSeed(path string) (SeedData, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return SeedData{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	var data SeedData
	if err := yaml.Unmarshal(content, &data); err != nil {
		return SeedData{}, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(data.Patients) == 0 && len(data.Doctors) == 0 && len(data.Rooms) == 0 {
		return SeedData{}, errors.New("seed file contains no fixtures")
	}
	return data, nil
}

// Seed inserts whichever fixtures are not already present, keyed on patient
// email, doctor name, and room number. Re-running with the same data changes
// nothing. The whole pass is one transaction.
func (s *SchedulerService) Seed(ctx context.Context, data SeedData) (SeedResult, error) {
	var result SeedResult
	err := s.store.Atomic(ctx, func(tx Store) error {
		for _, fixture := range data.Patients {
			req := models.CreatePatientRequest{
				FullName:    fixture.FullName,
				DateOfBirth: fixture.DateOfBirth,
				Gender:      fixture.Gender,
				Phone:       fixture.Phone,
				Email:       fixture.Email,
			}
			if err := s.validator.ValidatePatient(&req); err != nil {
				return err
			}
			if req.Email != "" {
				if _, err := tx.FindPatientByEmail(ctx, req.Email); err == nil {
					continue
				} else if !errors.Is(err, ErrNotFound) {
					return StorageError{Op: "find patient by email", Err: err}
				}
			}
			patient := models.Patient{
				FullName:    req.FullName,
				DateOfBirth: req.DateOfBirth,
				Gender:      req.Gender,
				Phone:       req.Phone,
			}
			if req.Email != "" {
				email := req.Email
				patient.Email = &email
			}
			if err := tx.CreatePatient(ctx, &patient); err != nil {
				return StorageError{Op: "create patient", Err: err}
			}
			if err := s.audit(ctx, tx, "Patients", "INSERT",
				fmt.Sprintf("patient_id=%d, full_name=%s", patient.ID, patient.FullName),
				map[string]interface{}{"patient_id": patient.ID, "full_name": patient.FullName, "seeded": true}); err != nil {
				return err
			}
			result.PatientsCreated++
		}

		for _, fixture := range data.Doctors {
			req := models.CreateDoctorRequest{
				FullName:       fixture.FullName,
				Specialization: fixture.Specialization,
			}
			if err := s.validator.ValidateDoctor(&req); err != nil {
				return err
			}
			if _, err := tx.FindDoctorByName(ctx, req.FullName); err == nil {
				continue
			} else if !errors.Is(err, ErrNotFound) {
				return StorageError{Op: "find doctor by name", Err: err}
			}
			doctor := models.Doctor{
				FullName:       req.FullName,
				Specialization: req.Specialization,
			}
			if err := tx.CreateDoctor(ctx, &doctor); err != nil {
				return StorageError{Op: "create doctor", Err: err}
			}
			if err := s.audit(ctx, tx, "Doctors", "INSERT",
				fmt.Sprintf("doctor_id=%d, full_name=%s", doctor.ID, doctor.FullName),
				map[string]interface{}{"doctor_id": doctor.ID, "full_name": doctor.FullName, "seeded": true}); err != nil {
				return err
			}
			result.DoctorsCreated++
		}

		for _, fixture := range data.Rooms {
			req := models.CreateRoomRequest{
				RoomNumber: fixture.RoomNumber,
				RoomType:   fixture.RoomType,
			}
			if err := s.validator.ValidateRoom(&req); err != nil {
				return err
			}
			if _, err := tx.FindRoomByNumber(ctx, req.RoomNumber); err == nil {
				continue
			} else if !errors.Is(err, ErrNotFound) {
				return StorageError{Op: "find room by number", Err: err}
			}
			room := models.Room{
				RoomNumber: req.RoomNumber,
				RoomType:   req.RoomType,
			}
			if err := tx.CreateRoom(ctx, &room); err != nil {
				return StorageError{Op: "create room", Err: err}
			}
			if err := s.audit(ctx, tx, "Rooms", "INSERT",
				fmt.Sprintf("room_id=%d, room_number=%s", room.ID, room.RoomNumber),
				map[string]interface{}{"room_id": room.ID, "room_number": room.RoomNumber, "seeded": true}); err != nil {
				return err
			}
			result.RoomsCreated++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	if result.PatientsCreated+result.DoctorsCreated+result.RoomsCreated > 0 {
		s.invalidateReports(ctx)
	}
	return result, nil
}
