package models

import "time"

// Scheduling entities

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "Booked"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
)

type Patient struct {
	ID          uint64  `json:"patient_id"`
	FullName    string  `json:"full_name"`
	DateOfBirth string  `json:"date_of_birth,omitempty"`
	Gender      string  `json:"gender,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
}

type Doctor struct {
	ID             uint64 `json:"doctor_id"`
	FullName       string `json:"full_name"`
	Specialization string `json:"specialization"`
}

type Room struct {
	ID         uint64 `json:"room_id"`
	RoomNumber string `json:"room_number"`
	RoomType   string `json:"room_type,omitempty"`
}

// Appointment times are canonical "YYYY-MM-DD HH:MM:SS" strings. Slot
// comparisons are exact string equality on the canonical form.
type Appointment struct {
	ID        uint64            `json:"appointment_id"`
	PatientID uint64            `json:"patient_id"`
	DoctorID  uint64            `json:"doctor_id"`
	RoomID    *uint64           `json:"room_id,omitempty"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	Status    AppointmentStatus `json:"status"`
}

type AuditLogEntry struct {
	ID        int64                  `json:"log_id"`
	Entity    string                 `json:"entity"`
	Action    string                 `json:"action"`
	Details   string                 `json:"details"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Request payloads

type CreatePatientRequest struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

type CreateDoctorRequest struct {
	FullName       string `json:"full_name"`
	Specialization string `json:"specialization"`
}

type CreateRoomRequest struct {
	RoomNumber string `json:"room_number"`
	RoomType   string `json:"room_type,omitempty"`
}

type BookAppointmentRequest struct {
	PatientID uint64  `json:"patient_id"`
	DoctorID  uint64  `json:"doctor_id"`
	RoomID    *uint64 `json:"room_id,omitempty"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

type UpdateAppointmentStatusRequest struct {
	Status string `json:"status"`
}

// Reporting rows

type DoctorAppointmentCount struct {
	DoctorID          uint64 `json:"doctor_id"`
	Doctor            string `json:"doctor"`
	Specialization    string `json:"specialization"`
	TotalAppointments int64  `json:"total_appointments"`
}

type RoomUtilizationRow struct {
	RoomID            uint64 `json:"room_id"`
	RoomNumber        string `json:"room_number"`
	RoomType          string `json:"room_type,omitempty"`
	TotalAppointments int64  `json:"total_appointments"`
}

type RoomLoad struct {
	RoomNumber string `json:"room_number"`
	RoomType   string `json:"room_type,omitempty"`
	Total      int64  `json:"total"`
}

type EntityCounts struct {
	Patients     int64 `json:"patients"`
	Doctors      int64 `json:"doctors"`
	Appointments int64 `json:"appointments"`
}

// Event Bus models

const (
	EventAppointmentBooked        = "appointment.booked"
	EventAppointmentStatusChanged = "appointment.status_changed"
)

type AppointmentEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	AppointmentID uint64    `json:"appointment_id"`
	PatientID     uint64    `json:"patient_id"`
	DoctorID      uint64    `json:"doctor_id"`
	RoomID        *uint64   `json:"room_id,omitempty"`
	StartTime     string    `json:"start_time"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}
