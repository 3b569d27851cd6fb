package clinic

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clinicore/scheduling/pkg/common/models"
)

const (
	// TimeLayout is the canonical spelling for appointment times. Canonical
	// strings sort lexically in chronological order, so the store can compare
	// and order them as plain strings.
	TimeLayout = "2006-01-02 15:04:05"
	DateLayout = "2006-01-02"
)

var acceptedTimeLayouts = []string{
	TimeLayout,
	"2006-01-02 15:04",
	time.RFC3339,
}

// CanonicalTime parses raw in any accepted layout and renders it in
// TimeLayout. Zoned inputs are converted to UTC first.
func CanonicalTime(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("time is required")
	}
	for _, layout := range acceptedTimeLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC().Format(TimeLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized time %q", raw)
}

func CanonicalDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("date is required")
	}
	t, err := time.Parse(DateLayout, trimmed)
	if err != nil {
		return "", fmt.Errorf("unrecognized date %q", raw)
	}
	return t.Format(DateLayout), nil
}

// Validator normalizes request payloads in place and rejects malformed ones.
type Validator struct {
	genders  map[string]string
	statuses map[string]models.AppointmentStatus
}

func NewValidator() *Validator {
	v := &Validator{
		genders:  make(map[string]string),
		statuses: make(map[string]models.AppointmentStatus),
	}
	for _, gender := range []string{"Male", "Female", "Other"} {
		v.genders[strings.ToLower(gender)] = gender
	}
	for _, status := range []models.AppointmentStatus{models.StatusBooked, models.StatusCompleted, models.StatusCancelled} {
		v.statuses[strings.ToLower(string(status))] = status
	}
	return v
}

func (v *Validator) ValidatePatient(req *models.CreatePatientRequest) error {
	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" {
		return ValidationError{Field: "full_name", Reason: "required"}
	}
	if req.DateOfBirth != "" {
		dob, err := CanonicalDate(req.DateOfBirth)
		if err != nil {
			return ValidationError{Field: "date_of_birth", Reason: err.Error()}
		}
		req.DateOfBirth = dob
	}
	if req.Gender != "" {
		canonical, ok := v.genders[strings.ToLower(strings.TrimSpace(req.Gender))]
		if !ok {
			return ValidationError{Field: "gender", Reason: fmt.Sprintf("unrecognized gender %q", req.Gender)}
		}
		req.Gender = canonical
	}
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	return nil
}

func (v *Validator) ValidateDoctor(req *models.CreateDoctorRequest) error {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Specialization = strings.TrimSpace(req.Specialization)
	if req.FullName == "" {
		return ValidationError{Field: "full_name", Reason: "required"}
	}
	if req.Specialization == "" {
		return ValidationError{Field: "specialization", Reason: "required"}
	}
	return nil
}

func (v *Validator) ValidateRoom(req *models.CreateRoomRequest) error {
	req.RoomNumber = strings.TrimSpace(req.RoomNumber)
	req.RoomType = strings.TrimSpace(req.RoomType)
	if req.RoomNumber == "" {
		return ValidationError{Field: "room_number", Reason: "required"}
	}
	return nil
}

func (v *Validator) ValidateBooking(req *models.BookAppointmentRequest) error {
	if req.PatientID == 0 {
		return ValidationError{Field: "patient_id", Reason: "required"}
	}
	if req.DoctorID == 0 {
		return ValidationError{Field: "doctor_id", Reason: "required"}
	}
	if req.RoomID != nil && *req.RoomID == 0 {
		return ValidationError{Field: "room_id", Reason: "must be a valid room id"}
	}
	start, err := CanonicalTime(req.StartTime)
	if err != nil {
		return ValidationError{Field: "start_time", Reason: err.Error()}
	}
	req.StartTime = start
	if strings.TrimSpace(req.EndTime) != "" {
		end, err := CanonicalTime(req.EndTime)
		if err != nil {
			return ValidationError{Field: "end_time", Reason: err.Error()}
		}
		if end <= start {
			return ValidationError{Field: "end_time", Reason: "must be after start_time"}
		}
		req.EndTime = end
	} else {
		req.EndTime = ""
	}
	req.Notes = strings.TrimSpace(req.Notes)
	return nil
}

func (v *Validator) ParseStatus(raw string) (models.AppointmentStatus, error) {
	status, ok := v.statuses[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", ValidationError{Field: "status", Reason: fmt.Sprintf("unrecognized status %q", raw)}
	}
	return status, nil
}
