package clinic

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clinicore/scheduling/pkg/common/models"
)

// MemStore keeps the full dataset in process memory behind one lock. It backs
// the test suite and the memory store mode of the CLI. Atomic runs fn against
// a deep copy and swaps it in only when fn succeeds, so a failed transaction
// leaves no trace.
type MemStore struct {
	mu    sync.RWMutex
	state *memState
	tx    bool
}

type memState struct {
	patients     map[uint64]models.Patient
	doctors      map[uint64]models.Doctor
	rooms        map[uint64]models.Room
	appointments map[uint64]models.Appointment
	auditLog     []models.AuditLogEntry

	nextPatientID     uint64
	nextDoctorID      uint64
	nextRoomID        uint64
	nextAppointmentID uint64
	nextLogID         int64
}

func NewMemStore() *MemStore {
	return &MemStore{state: newMemState()}
}

func newMemState() *memState {
	return &memState{
		patients:          make(map[uint64]models.Patient),
		doctors:           make(map[uint64]models.Doctor),
		rooms:             make(map[uint64]models.Room),
		appointments:      make(map[uint64]models.Appointment),
		nextPatientID:     1,
		nextDoctorID:      1,
		nextRoomID:        1,
		nextAppointmentID: 1,
		nextLogID:         1,
	}
}

// clone copies every record that a transaction may mutate. Audit entries are
// append-only, so their payload maps can be shared between generations.
func (s *memState) clone() *memState {
	next := &memState{
		patients:          make(map[uint64]models.Patient, len(s.patients)),
		doctors:           make(map[uint64]models.Doctor, len(s.doctors)),
		rooms:             make(map[uint64]models.Room, len(s.rooms)),
		appointments:      make(map[uint64]models.Appointment, len(s.appointments)),
		auditLog:          append([]models.AuditLogEntry(nil), s.auditLog...),
		nextPatientID:     s.nextPatientID,
		nextDoctorID:      s.nextDoctorID,
		nextRoomID:        s.nextRoomID,
		nextAppointmentID: s.nextAppointmentID,
		nextLogID:         s.nextLogID,
	}
	for id, patient := range s.patients {
		next.patients[id] = copyPatient(patient)
	}
	for id, doctor := range s.doctors {
		next.doctors[id] = doctor
	}
	for id, room := range s.rooms {
		next.rooms[id] = room
	}
	for id, appt := range s.appointments {
		next.appointments[id] = copyAppointment(appt)
	}
	return next
}

func copyPatient(p models.Patient) models.Patient {
	if p.Email != nil {
		email := *p.Email
		p.Email = &email
	}
	return p
}

func copyAppointment(a models.Appointment) models.Appointment {
	if a.RoomID != nil {
		roomID := *a.RoomID
		a.RoomID = &roomID
	}
	return a
}

func (m *MemStore) Atomic(ctx context.Context, fn func(Store) error) error {
	if m.tx {
		// Already inside a transaction; reuse it.
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	draft := &MemStore{state: m.state.clone(), tx: true}
	if err := fn(draft); err != nil {
		return err
	}
	m.state = draft.state
	return nil
}

// AcquireSlotLocks is a no-op here: Atomic holds the store-wide write lock,
// which already serializes every slot.
func (m *MemStore) AcquireSlotLocks(ctx context.Context, keys []SlotKey) error {
	return nil
}

func (m *MemStore) lock() func() {
	if m.tx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemStore) rlock() func() {
	if m.tx {
		return func() {}
	}
	m.mu.RLock()
	return m.mu.RUnlock
}

// Patients

func (m *MemStore) CreatePatient(ctx context.Context, patient *models.Patient) error {
	unlock := m.lock()
	defer unlock()
	patient.ID = m.state.nextPatientID
	m.state.nextPatientID++
	m.state.patients[patient.ID] = copyPatient(*patient)
	return nil
}

func (m *MemStore) GetPatient(ctx context.Context, id uint64) (models.Patient, error) {
	unlock := m.rlock()
	defer unlock()
	patient, ok := m.state.patients[id]
	if !ok {
		return models.Patient{}, ErrNotFound
	}
	return copyPatient(patient), nil
}

func (m *MemStore) FindPatientByEmail(ctx context.Context, email string) (models.Patient, error) {
	unlock := m.rlock()
	defer unlock()
	for _, patient := range m.state.patients {
		if patient.Email != nil && *patient.Email == email {
			return copyPatient(patient), nil
		}
	}
	return models.Patient{}, ErrNotFound
}

func (m *MemStore) ListPatients(ctx context.Context) ([]models.Patient, error) {
	unlock := m.rlock()
	defer unlock()
	patients := make([]models.Patient, 0, len(m.state.patients))
	for _, patient := range m.state.patients {
		patients = append(patients, copyPatient(patient))
	}
	sort.Slice(patients, func(i, j int) bool {
		if patients[i].FullName != patients[j].FullName {
			return patients[i].FullName < patients[j].FullName
		}
		return patients[i].ID < patients[j].ID
	})
	return patients, nil
}

func (m *MemStore) DeletePatient(ctx context.Context, id uint64) error {
	unlock := m.lock()
	defer unlock()
	if _, ok := m.state.patients[id]; !ok {
		return ErrNotFound
	}
	delete(m.state.patients, id)
	return nil
}

// Doctors

func (m *MemStore) CreateDoctor(ctx context.Context, doctor *models.Doctor) error {
	unlock := m.lock()
	defer unlock()
	doctor.ID = m.state.nextDoctorID
	m.state.nextDoctorID++
	m.state.doctors[doctor.ID] = *doctor
	return nil
}

func (m *MemStore) GetDoctor(ctx context.Context, id uint64) (models.Doctor, error) {
	unlock := m.rlock()
	defer unlock()
	doctor, ok := m.state.doctors[id]
	if !ok {
		return models.Doctor{}, ErrNotFound
	}
	return doctor, nil
}

func (m *MemStore) FindDoctorByName(ctx context.Context, fullName string) (models.Doctor, error) {
	unlock := m.rlock()
	defer unlock()
	var found *models.Doctor
	for _, doctor := range m.state.doctors {
		if doctor.FullName == fullName {
			if found == nil || doctor.ID < found.ID {
				d := doctor
				found = &d
			}
		}
	}
	if found == nil {
		return models.Doctor{}, ErrNotFound
	}
	return *found, nil
}

func (m *MemStore) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	unlock := m.rlock()
	defer unlock()
	doctors := make([]models.Doctor, 0, len(m.state.doctors))
	for _, doctor := range m.state.doctors {
		doctors = append(doctors, doctor)
	}
	sort.Slice(doctors, func(i, j int) bool {
		if doctors[i].FullName != doctors[j].FullName {
			return doctors[i].FullName < doctors[j].FullName
		}
		return doctors[i].ID < doctors[j].ID
	})
	return doctors, nil
}

func (m *MemStore) DeleteDoctor(ctx context.Context, id uint64) error {
	unlock := m.lock()
	defer unlock()
	if _, ok := m.state.doctors[id]; !ok {
		return ErrNotFound
	}
	delete(m.state.doctors, id)
	return nil
}

// Rooms

func (m *MemStore) CreateRoom(ctx context.Context, room *models.Room) error {
	unlock := m.lock()
	defer unlock()
	room.ID = m.state.nextRoomID
	m.state.nextRoomID++
	m.state.rooms[room.ID] = *room
	return nil
}

func (m *MemStore) GetRoom(ctx context.Context, id uint64) (models.Room, error) {
	unlock := m.rlock()
	defer unlock()
	room, ok := m.state.rooms[id]
	if !ok {
		return models.Room{}, ErrNotFound
	}
	return room, nil
}

func (m *MemStore) FindRoomByNumber(ctx context.Context, number string) (models.Room, error) {
	unlock := m.rlock()
	defer unlock()
	for _, room := range m.state.rooms {
		if room.RoomNumber == number {
			return room, nil
		}
	}
	return models.Room{}, ErrNotFound
}

func (m *MemStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	unlock := m.rlock()
	defer unlock()
	rooms := make([]models.Room, 0, len(m.state.rooms))
	for _, room := range m.state.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].RoomNumber < rooms[j].RoomNumber
	})
	return rooms, nil
}

func (m *MemStore) DeleteRoom(ctx context.Context, id uint64) error {
	unlock := m.lock()
	defer unlock()
	if _, ok := m.state.rooms[id]; !ok {
		return ErrNotFound
	}
	delete(m.state.rooms, id)
	return nil
}

// Appointments

func (m *MemStore) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	unlock := m.lock()
	defer unlock()
	appt.ID = m.state.nextAppointmentID
	m.state.nextAppointmentID++
	m.state.appointments[appt.ID] = copyAppointment(*appt)
	return nil
}

func (m *MemStore) GetAppointment(ctx context.Context, id uint64) (models.Appointment, error) {
	unlock := m.rlock()
	defer unlock()
	appt, ok := m.state.appointments[id]
	if !ok {
		return models.Appointment{}, ErrNotFound
	}
	return copyAppointment(appt), nil
}

func (m *MemStore) ListAppointments(ctx context.Context) ([]models.Appointment, error) {
	unlock := m.rlock()
	defer unlock()
	appts := make([]models.Appointment, 0, len(m.state.appointments))
	for _, appt := range m.state.appointments {
		appts = append(appts, copyAppointment(appt))
	}
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].StartTime != appts[j].StartTime {
			return appts[i].StartTime < appts[j].StartTime
		}
		return appts[i].ID < appts[j].ID
	})
	return appts, nil
}

func (m *MemStore) UpdateAppointmentStatus(ctx context.Context, id uint64, status models.AppointmentStatus) error {
	unlock := m.lock()
	defer unlock()
	appt, ok := m.state.appointments[id]
	if !ok {
		return ErrNotFound
	}
	appt.Status = status
	m.state.appointments[id] = appt
	return nil
}

func (m *MemStore) CountDoctorAppointmentsAt(ctx context.Context, doctorID uint64, start string, excludeID uint64) (int64, error) {
	unlock := m.rlock()
	defer unlock()
	var count int64
	for _, appt := range m.state.appointments {
		if appt.DoctorID != doctorID || appt.StartTime != start {
			continue
		}
		if appt.Status == models.StatusCancelled || appt.ID == excludeID {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MemStore) CountRoomAppointmentsAt(ctx context.Context, roomID uint64, start string, excludeID uint64) (int64, error) {
	unlock := m.rlock()
	defer unlock()
	var count int64
	for _, appt := range m.state.appointments {
		if appt.RoomID == nil || *appt.RoomID != roomID || appt.StartTime != start {
			continue
		}
		if appt.Status == models.StatusCancelled || appt.ID == excludeID {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MemStore) DeleteAppointmentsByPatient(ctx context.Context, patientID uint64) (int64, error) {
	unlock := m.lock()
	defer unlock()
	var removed int64
	for id, appt := range m.state.appointments {
		if appt.PatientID == patientID {
			delete(m.state.appointments, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemStore) DeleteAppointmentsByDoctor(ctx context.Context, doctorID uint64) (int64, error) {
	unlock := m.lock()
	defer unlock()
	var removed int64
	for id, appt := range m.state.appointments {
		if appt.DoctorID == doctorID {
			delete(m.state.appointments, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemStore) ClearRoomAssignments(ctx context.Context, roomID uint64) (int64, error) {
	unlock := m.lock()
	defer unlock()
	var cleared int64
	for id, appt := range m.state.appointments {
		if appt.RoomID != nil && *appt.RoomID == roomID {
			appt.RoomID = nil
			m.state.appointments[id] = appt
			cleared++
		}
	}
	return cleared, nil
}

// Audit log

func (m *MemStore) AppendAuditLog(ctx context.Context, entry *models.AuditLogEntry) error {
	unlock := m.lock()
	defer unlock()
	entry.ID = m.state.nextLogID
	m.state.nextLogID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.state.auditLog = append(m.state.auditLog, *entry)
	return nil
}

func (m *MemStore) ListAuditLog(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	unlock := m.rlock()
	defer unlock()
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	total := len(m.state.auditLog)
	if limit > total {
		limit = total
	}
	entries := make([]models.AuditLogEntry, 0, limit)
	for i := total - 1; i >= total-limit; i-- {
		entries = append(entries, m.state.auditLog[i])
	}
	return entries, nil
}

// Reports

func (m *MemStore) AppointmentsPerDoctor(ctx context.Context) ([]models.DoctorAppointmentCount, error) {
	unlock := m.rlock()
	defer unlock()
	counts := make(map[uint64]int64, len(m.state.doctors))
	for _, appt := range m.state.appointments {
		if appt.Status == models.StatusCancelled {
			continue
		}
		counts[appt.DoctorID]++
	}
	rows := make([]models.DoctorAppointmentCount, 0, len(m.state.doctors))
	for _, doctor := range m.state.doctors {
		rows = append(rows, models.DoctorAppointmentCount{
			DoctorID:          doctor.ID,
			Doctor:            doctor.FullName,
			Specialization:    doctor.Specialization,
			TotalAppointments: counts[doctor.ID],
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalAppointments != rows[j].TotalAppointments {
			return rows[i].TotalAppointments > rows[j].TotalAppointments
		}
		return rows[i].Doctor < rows[j].Doctor
	})
	return rows, nil
}

func (m *MemStore) RoomUtilization(ctx context.Context, date string) ([]models.RoomUtilizationRow, error) {
	unlock := m.rlock()
	defer unlock()
	counts := make(map[uint64]int64, len(m.state.rooms))
	for _, appt := range m.state.appointments {
		if appt.RoomID == nil || appt.Status == models.StatusCancelled {
			continue
		}
		if len(appt.StartTime) < len(date) || appt.StartTime[:len(date)] != date {
			continue
		}
		counts[*appt.RoomID]++
	}
	rows := make([]models.RoomUtilizationRow, 0, len(m.state.rooms))
	for _, room := range m.state.rooms {
		rows = append(rows, models.RoomUtilizationRow{
			RoomID:            room.ID,
			RoomNumber:        room.RoomNumber,
			RoomType:          room.RoomType,
			TotalAppointments: counts[room.ID],
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].RoomNumber < rows[j].RoomNumber
	})
	return rows, nil
}

func (m *MemStore) Counts(ctx context.Context) (models.EntityCounts, error) {
	unlock := m.rlock()
	defer unlock()
	counts := models.EntityCounts{
		Patients: int64(len(m.state.patients)),
		Doctors:  int64(len(m.state.doctors)),
	}
	for _, appt := range m.state.appointments {
		if appt.Status != models.StatusCancelled {
			counts.Appointments++
		}
	}
	return counts, nil
}

func (m *MemStore) TopRoomLoads(ctx context.Context, limit int) ([]models.RoomLoad, error) {
	unlock := m.rlock()
	defer unlock()
	if limit <= 0 {
		limit = 10
	}
	counts := make(map[uint64]int64, len(m.state.rooms))
	for _, appt := range m.state.appointments {
		if appt.RoomID == nil || appt.Status == models.StatusCancelled {
			continue
		}
		counts[*appt.RoomID]++
	}
	rows := make([]models.RoomLoad, 0, len(m.state.rooms))
	for _, room := range m.state.rooms {
		rows = append(rows, models.RoomLoad{
			RoomNumber: room.RoomNumber,
			RoomType:   room.RoomType,
			Total:      counts[room.ID],
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].RoomNumber < rows[j].RoomNumber
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
