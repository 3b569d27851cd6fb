package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinicore/scheduling/pkg/common/logger"
	"github.com/clinicore/scheduling/pkg/common/models"
	"github.com/clinicore/scheduling/pkg/observability/metrics"
)

// EventPublisher receives appointment lifecycle events after commit. A nil
// publisher disables the stream.
type EventPublisher interface {
	PublishAppointmentEvent(ctx context.Context, event models.AppointmentEvent) error
}

type SchedulerService struct {
	store     Store
	validator *Validator
	events    EventPublisher
	cache     *ReportCache
}

func NewSchedulerService(store Store, events EventPublisher, cache *ReportCache) *SchedulerService {
	return &SchedulerService{
		store:     store,
		validator: NewValidator(),
		events:    events,
		cache:     cache,
	}
}

// Patients

func (s *SchedulerService) CreatePatient(ctx context.Context, req models.CreatePatientRequest) (models.Patient, error) {
	if err := s.validator.ValidatePatient(&req); err != nil {
		return models.Patient{}, err
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
	err := s.store.Atomic(ctx, func(tx Store) error {
		if patient.Email != nil {
			if _, err := tx.FindPatientByEmail(ctx, *patient.Email); err == nil {
				return ConstraintError{Rule: RuleUniqueEmail, Detail: fmt.Sprintf("email %s already registered", *patient.Email)}
			} else if !errors.Is(err, ErrNotFound) {
				return StorageError{Op: "find patient by email", Err: err}
			}
		}
		if err := tx.CreatePatient(ctx, &patient); err != nil {
			return StorageError{Op: "create patient", Err: err}
		}
		return s.audit(ctx, tx, "Patients", "INSERT",
			fmt.Sprintf("patient_id=%d, full_name=%s", patient.ID, patient.FullName),
			map[string]interface{}{"patient_id": patient.ID, "full_name": patient.FullName})
	})
	if err != nil {
		return models.Patient{}, err
	}
	s.invalidateReports(ctx)
	return patient, nil
}

func (s *SchedulerService) GetPatient(ctx context.Context, id uint64) (models.Patient, error) {
	patient, err := s.store.GetPatient(ctx, id)
	if err != nil {
		return models.Patient{}, notFoundOr(err, "patient", id, "get patient")
	}
	return patient, nil
}

func (s *SchedulerService) ListPatients(ctx context.Context) ([]models.Patient, error) {
	patients, err := s.store.ListPatients(ctx)
	if err != nil {
		return nil, StorageError{Op: "list patients", Err: err}
	}
	return patients, nil
}

// DeletePatient removes the patient and every appointment booked for them in
// one transaction.
func (s *SchedulerService) DeletePatient(ctx context.Context, id uint64) error {
	err := s.store.Atomic(ctx, func(tx Store) error {
		patient, err := tx.GetPatient(ctx, id)
		if err != nil {
			return notFoundOr(err, "patient", id, "get patient")
		}
		removed, err := tx.DeleteAppointmentsByPatient(ctx, id)
		if err != nil {
			return StorageError{Op: "cascade patient appointments", Err: err}
		}
		if err := tx.DeletePatient(ctx, id); err != nil {
			return notFoundOr(err, "patient", id, "delete patient")
		}
		return s.audit(ctx, tx, "Patients", "DELETE",
			fmt.Sprintf("patient_id=%d, cascaded_appointments=%d", id, removed),
			map[string]interface{}{"patient_id": id, "full_name": patient.FullName, "cascaded_appointments": removed})
	})
	if err != nil {
		return err
	}
	s.invalidateReports(ctx)
	return nil
}

// Doctors

func (s *SchedulerService) CreateDoctor(ctx context.Context, req models.CreateDoctorRequest) (models.Doctor, error) {
	if err := s.validator.ValidateDoctor(&req); err != nil {
		return models.Doctor{}, err
	}
	doctor := models.Doctor{
		FullName:       req.FullName,
		Specialization: req.Specialization,
	}
	err := s.store.Atomic(ctx, func(tx Store) error {
		if err := tx.CreateDoctor(ctx, &doctor); err != nil {
			return StorageError{Op: "create doctor", Err: err}
		}
		return s.audit(ctx, tx, "Doctors", "INSERT",
			fmt.Sprintf("doctor_id=%d, full_name=%s", doctor.ID, doctor.FullName),
			map[string]interface{}{"doctor_id": doctor.ID, "full_name": doctor.FullName, "specialization": doctor.Specialization})
	})
	if err != nil {
		return models.Doctor{}, err
	}
	s.invalidateReports(ctx)
	return doctor, nil
}

func (s *SchedulerService) GetDoctor(ctx context.Context, id uint64) (models.Doctor, error) {
	doctor, err := s.store.GetDoctor(ctx, id)
	if err != nil {
		return models.Doctor{}, notFoundOr(err, "doctor", id, "get doctor")
	}
	return doctor, nil
}

func (s *SchedulerService) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	doctors, err := s.store.ListDoctors(ctx)
	if err != nil {
		return nil, StorageError{Op: "list doctors", Err: err}
	}
	return doctors, nil
}

// DeleteDoctor removes the doctor and every appointment on their calendar in
// one transaction.
func (s *SchedulerService) DeleteDoctor(ctx context.Context, id uint64) error {
	err := s.store.Atomic(ctx, func(tx Store) error {
		doctor, err := tx.GetDoctor(ctx, id)
		if err != nil {
			return notFoundOr(err, "doctor", id, "get doctor")
		}
		removed, err := tx.DeleteAppointmentsByDoctor(ctx, id)
		if err != nil {
			return StorageError{Op: "cascade doctor appointments", Err: err}
		}
		if err := tx.DeleteDoctor(ctx, id); err != nil {
			return notFoundOr(err, "doctor", id, "delete doctor")
		}
		return s.audit(ctx, tx, "Doctors", "DELETE",
			fmt.Sprintf("doctor_id=%d, cascaded_appointments=%d", id, removed),
			map[string]interface{}{"doctor_id": id, "full_name": doctor.FullName, "cascaded_appointments": removed})
	})
	if err != nil {
		return err
	}
	s.invalidateReports(ctx)
	return nil
}

// Rooms

func (s *SchedulerService) CreateRoom(ctx context.Context, req models.CreateRoomRequest) (models.Room, error) {
	if err := s.validator.ValidateRoom(&req); err != nil {
		return models.Room{}, err
	}
	room := models.Room{
		RoomNumber: req.RoomNumber,
		RoomType:   req.RoomType,
	}
	err := s.store.Atomic(ctx, func(tx Store) error {
		if _, err := tx.FindRoomByNumber(ctx, room.RoomNumber); err == nil {
			return ConstraintError{Rule: RuleUniqueRoomNumber, Detail: fmt.Sprintf("room number %s already exists", room.RoomNumber)}
		} else if !errors.Is(err, ErrNotFound) {
			return StorageError{Op: "find room by number", Err: err}
		}
		if err := tx.CreateRoom(ctx, &room); err != nil {
			return StorageError{Op: "create room", Err: err}
		}
		return s.audit(ctx, tx, "Rooms", "INSERT",
			fmt.Sprintf("room_id=%d, room_number=%s", room.ID, room.RoomNumber),
			map[string]interface{}{"room_id": room.ID, "room_number": room.RoomNumber})
	})
	if err != nil {
		return models.Room{}, err
	}
	s.invalidateReports(ctx)
	return room, nil
}

func (s *SchedulerService) GetRoom(ctx context.Context, id uint64) (models.Room, error) {
	room, err := s.store.GetRoom(ctx, id)
	if err != nil {
		return models.Room{}, notFoundOr(err, "room", id, "get room")
	}
	return room, nil
}

func (s *SchedulerService) ListRooms(ctx context.Context) ([]models.Room, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, StorageError{Op: "list rooms", Err: err}
	}
	return rooms, nil
}

// DeleteRoom removes the room. Appointments keep their slot but lose the
// room assignment.
func (s *SchedulerService) DeleteRoom(ctx context.Context, id uint64) error {
	err := s.store.Atomic(ctx, func(tx Store) error {
		room, err := tx.GetRoom(ctx, id)
		if err != nil {
			return notFoundOr(err, "room", id, "get room")
		}
		released, err := tx.ClearRoomAssignments(ctx, id)
		if err != nil {
			return StorageError{Op: "clear room assignments", Err: err}
		}
		if err := tx.DeleteRoom(ctx, id); err != nil {
			return notFoundOr(err, "room", id, "delete room")
		}
		return s.audit(ctx, tx, "Rooms", "DELETE",
			fmt.Sprintf("room_id=%d, released_appointments=%d", id, released),
			map[string]interface{}{"room_id": id, "room_number": room.RoomNumber, "released_appointments": released})
	})
	if err != nil {
		return err
	}
	s.invalidateReports(ctx)
	return nil
}

// Appointments

// BookAppointment validates the request, then checks and inserts inside one
// transaction. Slot locks are taken first so two writers aiming at the same
// doctor or room slot serialize instead of double booking.
func (s *SchedulerService) BookAppointment(ctx context.Context, req models.BookAppointmentRequest) (models.Appointment, error) {
	if err := s.validator.ValidateBooking(&req); err != nil {
		return models.Appointment{}, err
	}
	appt := models.Appointment{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		RoomID:    req.RoomID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     req.Notes,
		Status:    models.StatusBooked,
	}
	err := s.store.Atomic(ctx, func(tx Store) error {
		keys := []SlotKey{DoctorSlot(req.DoctorID, req.StartTime)}
		if req.RoomID != nil {
			keys = append(keys, RoomSlot(*req.RoomID, req.StartTime))
		}
		if err := tx.AcquireSlotLocks(ctx, keys); err != nil {
			return StorageError{Op: "acquire slot locks", Err: err}
		}
		if _, err := tx.GetPatient(ctx, req.PatientID); err != nil {
			return notFoundOr(err, "patient", req.PatientID, "get patient")
		}
		if _, err := tx.GetDoctor(ctx, req.DoctorID); err != nil {
			return notFoundOr(err, "doctor", req.DoctorID, "get doctor")
		}
		if req.RoomID != nil {
			if _, err := tx.GetRoom(ctx, *req.RoomID); err != nil {
				return notFoundOr(err, "room", *req.RoomID, "get room")
			}
		}
		if err := checkSlotFree(ctx, tx, req.DoctorID, req.RoomID, req.StartTime, 0); err != nil {
			return err
		}
		if err := tx.CreateAppointment(ctx, &appt); err != nil {
			return StorageError{Op: "create appointment", Err: err}
		}
		return s.audit(ctx, tx, "Appointments", "INSERT",
			fmt.Sprintf("appointment_id=%d, patient_id=%d, doctor_id=%d, start_time=%s",
				appt.ID, appt.PatientID, appt.DoctorID, appt.StartTime),
			map[string]interface{}{
				"appointment_id": appt.ID,
				"patient_id":     appt.PatientID,
				"doctor_id":      appt.DoctorID,
				"start_time":     appt.StartTime,
			})
	})
	if err != nil {
		return models.Appointment{}, err
	}
	metrics.IncBooking()
	s.invalidateReports(ctx)
	s.publish(ctx, models.EventAppointmentBooked, appt)
	return appt, nil
}

func (s *SchedulerService) GetAppointment(ctx context.Context, id uint64) (models.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return models.Appointment{}, notFoundOr(err, "appointment", id, "get appointment")
	}
	return appt, nil
}

func (s *SchedulerService) ListAppointments(ctx context.Context) ([]models.Appointment, error) {
	appts, err := s.store.ListAppointments(ctx)
	if err != nil {
		return nil, StorageError{Op: "list appointments", Err: err}
	}
	return appts, nil
}

// UpdateAppointmentStatus transitions an appointment. Reviving a cancelled
// appointment re-contends for its slots, so a booking that filled the gap in
// the meantime wins.
func (s *SchedulerService) UpdateAppointmentStatus(ctx context.Context, id uint64, rawStatus string) (models.Appointment, error) {
	status, err := s.validator.ParseStatus(rawStatus)
	if err != nil {
		return models.Appointment{}, err
	}
	var appt models.Appointment
	changed := false
	err = s.store.Atomic(ctx, func(tx Store) error {
		current, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return notFoundOr(err, "appointment", id, "get appointment")
		}
		if current.Status == status {
			appt = current
			return nil
		}
		if current.Status == models.StatusCancelled && status != models.StatusCancelled {
			keys := []SlotKey{DoctorSlot(current.DoctorID, current.StartTime)}
			if current.RoomID != nil {
				keys = append(keys, RoomSlot(*current.RoomID, current.StartTime))
			}
			if err := tx.AcquireSlotLocks(ctx, keys); err != nil {
				return StorageError{Op: "acquire slot locks", Err: err}
			}
			if err := checkSlotFree(ctx, tx, current.DoctorID, current.RoomID, current.StartTime, current.ID); err != nil {
				return err
			}
		}
		if err := tx.UpdateAppointmentStatus(ctx, id, status); err != nil {
			return notFoundOr(err, "appointment", id, "update appointment status")
		}
		appt = current
		appt.Status = status
		changed = true
		return s.audit(ctx, tx, "Appointments", "UPDATE",
			fmt.Sprintf("appointment_id=%d, status=%s", id, status),
			map[string]interface{}{"appointment_id": id, "from": string(current.Status), "to": string(status)})
	})
	if err != nil {
		return models.Appointment{}, err
	}
	if changed {
		s.invalidateReports(ctx)
		s.publish(ctx, models.EventAppointmentStatusChanged, appt)
	}
	return appt, nil
}

func (s *SchedulerService) CancelAppointment(ctx context.Context, id uint64) (models.Appointment, error) {
	return s.UpdateAppointmentStatus(ctx, id, string(models.StatusCancelled))
}

// Audit log

func (s *SchedulerService) ListAuditLog(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	entries, err := s.store.ListAuditLog(ctx, limit)
	if err != nil {
		return nil, StorageError{Op: "list audit log", Err: err}
	}
	return entries, nil
}

// helpers

func checkSlotFree(ctx context.Context, tx Store, doctorID uint64, roomID *uint64, start string, excludeID uint64) error {
	booked, err := tx.CountDoctorAppointmentsAt(ctx, doctorID, start, excludeID)
	if err != nil {
		return StorageError{Op: "count doctor appointments", Err: err}
	}
	if booked > 0 {
		metrics.IncDoctorConflict()
		return ConstraintError{Rule: RuleDoctorSlot, Detail: "Doctor already booked at this time"}
	}
	if roomID != nil {
		occupied, err := tx.CountRoomAppointmentsAt(ctx, *roomID, start, excludeID)
		if err != nil {
			return StorageError{Op: "count room appointments", Err: err}
		}
		if occupied > 0 {
			metrics.IncRoomConflict()
			return ConstraintError{Rule: RuleRoomSlot, Detail: "Room already booked at this time"}
		}
	}
	return nil
}

func notFoundOr(err error, entity string, id uint64, op string) error {
	if errors.Is(err, ErrNotFound) {
		return NotFoundError{Entity: entity, ID: id}
	}
	return StorageError{Op: op, Err: err}
}

func (s *SchedulerService) audit(ctx context.Context, tx Store, entity, action, details string, payload map[string]interface{}) error {
	entry := models.AuditLogEntry{
		Entity:    entity,
		Action:    action,
		Details:   details,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.AppendAuditLog(ctx, &entry); err != nil {
		return StorageError{Op: "append audit log", Err: err}
	}
	metrics.IncAuditAppend()
	return nil
}

func (s *SchedulerService) invalidateReports(ctx context.Context) {
	s.cache.Invalidate(ctx)
}

func (s *SchedulerService) publish(ctx context.Context, eventType string, appt models.Appointment) {
	if s.events == nil {
		return
	}
	event := models.AppointmentEvent{
		Type:          eventType,
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		RoomID:        appt.RoomID,
		StartTime:     appt.StartTime,
		Status:        string(appt.Status),
		Timestamp:     time.Now().UTC(),
	}
	if err := s.events.PublishAppointmentEvent(ctx, event); err != nil {
		logger.Log.WithError(err).WithField("appointment_id", appt.ID).Warn("Failed to publish appointment event")
		return
	}
	metrics.IncEventPublished()
}
