package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/clinicore/scheduling/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository is the postgres Store. Inside Atomic every method runs on the
// transaction handle, so conflict checks, inserts, and audit appends commit
// together.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type patientModel struct {
	ID          uint64  `gorm:"primaryKey;autoIncrement;column:patient_id"`
	FullName    string  `gorm:"column:full_name;not null"`
	DateOfBirth string  `gorm:"column:date_of_birth"`
	Gender      string  `gorm:"column:gender"`
	Phone       string  `gorm:"column:phone"`
	Email       *string `gorm:"column:email;uniqueIndex"`
}

func (patientModel) TableName() string { return "patients" }

type doctorModel struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement;column:doctor_id"`
	FullName       string `gorm:"column:full_name;not null"`
	Specialization string `gorm:"column:specialization;not null"`
}

func (doctorModel) TableName() string { return "doctors" }

type roomModel struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement;column:room_id"`
	RoomNumber string `gorm:"column:room_number;uniqueIndex;not null"`
	RoomType   string `gorm:"column:room_type"`
}

func (roomModel) TableName() string { return "rooms" }

type appointmentModel struct {
	ID        uint64  `gorm:"primaryKey;autoIncrement;column:appointment_id"`
	PatientID uint64  `gorm:"column:patient_id;not null;index:idx_appt_patient_time,priority:1"`
	DoctorID  uint64  `gorm:"column:doctor_id;not null;index:idx_appt_doctor_time,priority:1"`
	RoomID    *uint64 `gorm:"column:room_id;index:idx_appt_room_time,priority:1"`
	StartTime string  `gorm:"column:start_time;not null;index:idx_appt_doctor_time,priority:2;index:idx_appt_patient_time,priority:2;index:idx_appt_room_time,priority:2"`
	EndTime   string  `gorm:"column:end_time"`
	Notes     string  `gorm:"column:notes"`
	Status    string  `gorm:"column:status;not null;default:Booked"`
}

func (appointmentModel) TableName() string { return "appointments" }

type auditLogModel struct {
	ID        int64          `gorm:"primaryKey;autoIncrement;column:log_id"`
	Entity    string         `gorm:"column:entity;not null"`
	Action    string         `gorm:"column:action;not null"`
	Details   string         `gorm:"column:details"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (auditLogModel) TableName() string { return "audit_logs" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&patientModel{},
		&doctorModel{},
		&roomModel{},
		&appointmentModel{},
		&auditLogModel{},
	)
}

func (r *Repository) Atomic(ctx context.Context, fn func(Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) AcquireSlotLocks(ctx context.Context, keys []SlotKey) error {
	for _, key := range SortSlotKeys(keys) {
		if err := r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", key.Hash()).Error; err != nil {
			return err
		}
	}
	return nil
}

// Patients

func (r *Repository) CreatePatient(ctx context.Context, patient *models.Patient) error {
	row := patientModel{
		FullName:    patient.FullName,
		DateOfBirth: patient.DateOfBirth,
		Gender:      patient.Gender,
		Phone:       patient.Phone,
		Email:       patient.Email,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	patient.ID = row.ID
	return nil
}

func (r *Repository) GetPatient(ctx context.Context, id uint64) (models.Patient, error) {
	var row patientModel
	if err := r.db.WithContext(ctx).First(&row, "patient_id = ?", id).Error; err != nil {
		return models.Patient{}, mapGormError(err)
	}
	return mapPatient(row), nil
}

func (r *Repository) FindPatientByEmail(ctx context.Context, email string) (models.Patient, error) {
	var row patientModel
	if err := r.db.WithContext(ctx).First(&row, "email = ?", email).Error; err != nil {
		return models.Patient{}, mapGormError(err)
	}
	return mapPatient(row), nil
}

func (r *Repository) ListPatients(ctx context.Context) ([]models.Patient, error) {
	var rows []patientModel
	if err := r.db.WithContext(ctx).Order("full_name, patient_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	patients := make([]models.Patient, 0, len(rows))
	for _, row := range rows {
		patients = append(patients, mapPatient(row))
	}
	return patients, nil
}

func (r *Repository) DeletePatient(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).Delete(&patientModel{}, "patient_id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Doctors

func (r *Repository) CreateDoctor(ctx context.Context, doctor *models.Doctor) error {
	row := doctorModel{
		FullName:       doctor.FullName,
		Specialization: doctor.Specialization,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	doctor.ID = row.ID
	return nil
}

func (r *Repository) GetDoctor(ctx context.Context, id uint64) (models.Doctor, error) {
	var row doctorModel
	if err := r.db.WithContext(ctx).First(&row, "doctor_id = ?", id).Error; err != nil {
		return models.Doctor{}, mapGormError(err)
	}
	return mapDoctor(row), nil
}

func (r *Repository) FindDoctorByName(ctx context.Context, fullName string) (models.Doctor, error) {
	var row doctorModel
	if err := r.db.WithContext(ctx).First(&row, "full_name = ?", fullName).Error; err != nil {
		return models.Doctor{}, mapGormError(err)
	}
	return mapDoctor(row), nil
}

func (r *Repository) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	var rows []doctorModel
	if err := r.db.WithContext(ctx).Order("full_name, doctor_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	doctors := make([]models.Doctor, 0, len(rows))
	for _, row := range rows {
		doctors = append(doctors, mapDoctor(row))
	}
	return doctors, nil
}

func (r *Repository) DeleteDoctor(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).Delete(&doctorModel{}, "doctor_id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Rooms

func (r *Repository) CreateRoom(ctx context.Context, room *models.Room) error {
	row := roomModel{
		RoomNumber: room.RoomNumber,
		RoomType:   room.RoomType,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	room.ID = row.ID
	return nil
}

func (r *Repository) GetRoom(ctx context.Context, id uint64) (models.Room, error) {
	var row roomModel
	if err := r.db.WithContext(ctx).First(&row, "room_id = ?", id).Error; err != nil {
		return models.Room{}, mapGormError(err)
	}
	return mapRoom(row), nil
}

func (r *Repository) FindRoomByNumber(ctx context.Context, number string) (models.Room, error) {
	var row roomModel
	if err := r.db.WithContext(ctx).First(&row, "room_number = ?", number).Error; err != nil {
		return models.Room{}, mapGormError(err)
	}
	return mapRoom(row), nil
}

func (r *Repository) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rows []roomModel
	if err := r.db.WithContext(ctx).Order("room_number").Find(&rows).Error; err != nil {
		return nil, err
	}
	rooms := make([]models.Room, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, mapRoom(row))
	}
	return rooms, nil
}

func (r *Repository) DeleteRoom(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).Delete(&roomModel{}, "room_id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Appointments

func (r *Repository) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	row := appointmentModel{
		PatientID: appt.PatientID,
		DoctorID:  appt.DoctorID,
		RoomID:    appt.RoomID,
		StartTime: appt.StartTime,
		EndTime:   appt.EndTime,
		Notes:     appt.Notes,
		Status:    string(appt.Status),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	appt.ID = row.ID
	return nil
}

func (r *Repository) GetAppointment(ctx context.Context, id uint64) (models.Appointment, error) {
	var row appointmentModel
	if err := r.db.WithContext(ctx).First(&row, "appointment_id = ?", id).Error; err != nil {
		return models.Appointment{}, mapGormError(err)
	}
	return mapAppointment(row), nil
}

func (r *Repository) ListAppointments(ctx context.Context) ([]models.Appointment, error) {
	var rows []appointmentModel
	if err := r.db.WithContext(ctx).Order("start_time, appointment_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	appts := make([]models.Appointment, 0, len(rows))
	for _, row := range rows {
		appts = append(appts, mapAppointment(row))
	}
	return appts, nil
}

func (r *Repository) UpdateAppointmentStatus(ctx context.Context, id uint64, status models.AppointmentStatus) error {
	result := r.db.WithContext(ctx).Model(&appointmentModel{}).
		Where("appointment_id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CountDoctorAppointmentsAt(ctx context.Context, doctorID uint64, start string, excludeID uint64) (int64, error) {
	query := r.db.WithContext(ctx).Model(&appointmentModel{}).
		Where("doctor_id = ? AND start_time = ? AND status != ?", doctorID, start, string(models.StatusCancelled))
	if excludeID != 0 {
		query = query.Where("appointment_id != ?", excludeID)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (r *Repository) CountRoomAppointmentsAt(ctx context.Context, roomID uint64, start string, excludeID uint64) (int64, error) {
	query := r.db.WithContext(ctx).Model(&appointmentModel{}).
		Where("room_id = ? AND start_time = ? AND status != ?", roomID, start, string(models.StatusCancelled))
	if excludeID != 0 {
		query = query.Where("appointment_id != ?", excludeID)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (r *Repository) DeleteAppointmentsByPatient(ctx context.Context, patientID uint64) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&appointmentModel{}, "patient_id = ?", patientID)
	return result.RowsAffected, result.Error
}

func (r *Repository) DeleteAppointmentsByDoctor(ctx context.Context, doctorID uint64) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&appointmentModel{}, "doctor_id = ?", doctorID)
	return result.RowsAffected, result.Error
}

func (r *Repository) ClearRoomAssignments(ctx context.Context, roomID uint64) (int64, error) {
	result := r.db.WithContext(ctx).Model(&appointmentModel{}).
		Where("room_id = ?", roomID).
		Update("room_id", nil)
	return result.RowsAffected, result.Error
}

// Audit log

func (r *Repository) AppendAuditLog(ctx context.Context, entry *models.AuditLogEntry) error {
	row := auditLogModel{
		Entity:    entry.Entity,
		Action:    entry.Action,
		Details:   entry.Details,
		CreatedAt: entry.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if entry.Payload != nil {
		if data, err := json.Marshal(entry.Payload); err == nil {
			row.Payload = datatypes.JSON(data)
		}
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	entry.ID = row.ID
	entry.CreatedAt = row.CreatedAt
	return nil
}

func (r *Repository) ListAuditLog(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []auditLogModel
	if err := r.db.WithContext(ctx).Order("log_id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]models.AuditLogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, mapAuditLog(row))
	}
	return entries, nil
}

// Reports

func (r *Repository) AppointmentsPerDoctor(ctx context.Context) ([]models.DoctorAppointmentCount, error) {
	query := `
SELECT d.doctor_id AS doctor_id,
       d.full_name AS doctor,
       d.specialization AS specialization,
       COUNT(a.appointment_id) AS total_appointments
FROM doctors d
LEFT JOIN appointments a
       ON a.doctor_id = d.doctor_id AND a.status != 'Cancelled'
GROUP BY d.doctor_id, d.full_name, d.specialization
ORDER BY total_appointments DESC, doctor ASC`
	var rows []models.DoctorAppointmentCount
	if err := r.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) RoomUtilization(ctx context.Context, date string) ([]models.RoomUtilizationRow, error) {
	query := `
SELECT r.room_id AS room_id,
       r.room_number AS room_number,
       r.room_type AS room_type,
       COUNT(a.appointment_id) AS total_appointments
FROM rooms r
LEFT JOIN appointments a
       ON a.room_id = r.room_id
      AND substr(a.start_time, 1, 10) = ?
      AND a.status != 'Cancelled'
GROUP BY r.room_id, r.room_number, r.room_type
ORDER BY r.room_number ASC`
	var rows []models.RoomUtilizationRow
	if err := r.db.WithContext(ctx).Raw(query, date).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) Counts(ctx context.Context) (models.EntityCounts, error) {
	query := `
SELECT (SELECT COUNT(*) FROM patients) AS patients,
       (SELECT COUNT(*) FROM doctors) AS doctors,
       (SELECT COUNT(*) FROM appointments WHERE status != 'Cancelled') AS appointments`
	var counts models.EntityCounts
	if err := r.db.WithContext(ctx).Raw(query).Scan(&counts).Error; err != nil {
		return models.EntityCounts{}, err
	}
	return counts, nil
}

func (r *Repository) TopRoomLoads(ctx context.Context, limit int) ([]models.RoomLoad, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
SELECT r.room_number AS room_number,
       r.room_type AS room_type,
       COUNT(a.appointment_id) AS total
FROM rooms r
LEFT JOIN appointments a
       ON a.room_id = r.room_id AND a.status != 'Cancelled'
GROUP BY r.room_number, r.room_type
ORDER BY total DESC, r.room_number ASC
LIMIT ?`
	var rows []models.RoomLoad
	if err := r.db.WithContext(ctx).Raw(query, limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func mapGormError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func mapPatient(row patientModel) models.Patient {
	return models.Patient{
		ID:          row.ID,
		FullName:    row.FullName,
		DateOfBirth: row.DateOfBirth,
		Gender:      row.Gender,
		Phone:       row.Phone,
		Email:       row.Email,
	}
}

func mapDoctor(row doctorModel) models.Doctor {
	return models.Doctor{
		ID:             row.ID,
		FullName:       row.FullName,
		Specialization: row.Specialization,
	}
}

func mapRoom(row roomModel) models.Room {
	return models.Room{
		ID:         row.ID,
		RoomNumber: row.RoomNumber,
		RoomType:   row.RoomType,
	}
}

func mapAppointment(row appointmentModel) models.Appointment {
	return models.Appointment{
		ID:        row.ID,
		PatientID: row.PatientID,
		DoctorID:  row.DoctorID,
		RoomID:    row.RoomID,
		StartTime: row.StartTime,
		EndTime:   row.EndTime,
		Notes:     row.Notes,
		Status:    models.AppointmentStatus(row.Status),
	}
}

func mapAuditLog(row auditLogModel) models.AuditLogEntry {
	entry := models.AuditLogEntry{
		ID:        row.ID,
		Entity:    row.Entity,
		Action:    row.Action,
		Details:   row.Details,
		CreatedAt: row.CreatedAt,
	}
	if len(row.Payload) > 0 {
		var payload map[string]interface{}
		if err := json.Unmarshal(row.Payload, &payload); err == nil {
			entry.Payload = payload
		}
	}
	return entry
}
