package clinic

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/clinicore/scheduling/pkg/common/models"
)

const (
	SlotDoctor = "doctor"
	SlotRoom   = "room"
)

// SlotKey identifies one serializable booking slot: a doctor or a room at an
// exact canonical start time.
type SlotKey struct {
	Kind  string
	ID    uint64
	Start string
}

func DoctorSlot(doctorID uint64, start string) SlotKey {
	return SlotKey{Kind: SlotDoctor, ID: doctorID, Start: start}
}

func RoomSlot(roomID uint64, start string) SlotKey {
	return SlotKey{Kind: SlotRoom, ID: roomID, Start: start}
}

// Hash folds the key into the signed 64-bit space used by postgres advisory
// locks.
func (k SlotKey) Hash() int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d:%s", k.Kind, k.ID, k.Start)
	return int64(h.Sum64())
}

// SortSlotKeys orders and deduplicates keys so every writer acquires its
// locks in the same sequence.
func SortSlotKeys(keys []SlotKey) []SlotKey {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		if keys[i].ID != keys[j].ID {
			return keys[i].ID < keys[j].ID
		}
		return keys[i].Start < keys[j].Start
	})
	deduped := keys[:0]
	var prev SlotKey
	for i, key := range keys {
		if i == 0 || key != prev {
			deduped = append(deduped, key)
		}
		prev = key
	}
	return deduped
}

// Store is the persistence boundary for the scheduling engine. Mutations run
// inside Atomic: the Store handed to fn is scoped to that transaction, and
// everything fn does commits or rolls back as one unit. Reads outside Atomic
// see only committed state.
type Store interface {
	Atomic(ctx context.Context, fn func(Store) error) error
	// AcquireSlotLocks serializes writers that target the same booking slots.
	// Valid only inside Atomic; locks release with the transaction.
	AcquireSlotLocks(ctx context.Context, keys []SlotKey) error

	CreatePatient(ctx context.Context, patient *models.Patient) error
	GetPatient(ctx context.Context, id uint64) (models.Patient, error)
	FindPatientByEmail(ctx context.Context, email string) (models.Patient, error)
	ListPatients(ctx context.Context) ([]models.Patient, error)
	DeletePatient(ctx context.Context, id uint64) error

	CreateDoctor(ctx context.Context, doctor *models.Doctor) error
	GetDoctor(ctx context.Context, id uint64) (models.Doctor, error)
	FindDoctorByName(ctx context.Context, fullName string) (models.Doctor, error)
	ListDoctors(ctx context.Context) ([]models.Doctor, error)
	DeleteDoctor(ctx context.Context, id uint64) error

	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id uint64) (models.Room, error)
	FindRoomByNumber(ctx context.Context, number string) (models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	DeleteRoom(ctx context.Context, id uint64) error

	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	GetAppointment(ctx context.Context, id uint64) (models.Appointment, error)
	ListAppointments(ctx context.Context) ([]models.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uint64, status models.AppointmentStatus) error
	CountDoctorAppointmentsAt(ctx context.Context, doctorID uint64, start string, excludeID uint64) (int64, error)
	CountRoomAppointmentsAt(ctx context.Context, roomID uint64, start string, excludeID uint64) (int64, error)
	DeleteAppointmentsByPatient(ctx context.Context, patientID uint64) (int64, error)
	DeleteAppointmentsByDoctor(ctx context.Context, doctorID uint64) (int64, error)
	ClearRoomAssignments(ctx context.Context, roomID uint64) (int64, error)

	AppendAuditLog(ctx context.Context, entry *models.AuditLogEntry) error
	ListAuditLog(ctx context.Context, limit int) ([]models.AuditLogEntry, error)

	AppointmentsPerDoctor(ctx context.Context) ([]models.DoctorAppointmentCount, error)
	RoomUtilization(ctx context.Context, date string) ([]models.RoomUtilizationRow, error)
	Counts(ctx context.Context) (models.EntityCounts, error)
	TopRoomLoads(ctx context.Context, limit int) ([]models.RoomLoad, error)
}
