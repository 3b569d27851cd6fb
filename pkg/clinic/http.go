package clinic

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/clinicore/scheduling/pkg/common/logger"
	"github.com/clinicore/scheduling/pkg/common/models"
	"github.com/gorilla/mux"
)

type Handler struct {
	scheduler *SchedulerService
	reports   *ReportingService
}

func NewHandler(scheduler *SchedulerService, reports *ReportingService) *Handler {
	return &Handler{scheduler: scheduler, reports: reports}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/patients", h.handleCreatePatient).Methods(http.MethodPost)
	r.HandleFunc("/patients", h.handleListPatients).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id}", h.handleGetPatient).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id}", h.handleDeletePatient).Methods(http.MethodDelete)

	r.HandleFunc("/doctors", h.handleCreateDoctor).Methods(http.MethodPost)
	r.HandleFunc("/doctors", h.handleListDoctors).Methods(http.MethodGet)
	r.HandleFunc("/doctors/{id}", h.handleGetDoctor).Methods(http.MethodGet)
	r.HandleFunc("/doctors/{id}", h.handleDeleteDoctor).Methods(http.MethodDelete)

	r.HandleFunc("/rooms", h.handleCreateRoom).Methods(http.MethodPost)
	r.HandleFunc("/rooms", h.handleListRooms).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}", h.handleGetRoom).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}", h.handleDeleteRoom).Methods(http.MethodDelete)

	r.HandleFunc("/appointments", h.handleBookAppointment).Methods(http.MethodPost)
	r.HandleFunc("/appointments", h.handleListAppointments).Methods(http.MethodGet)
	r.HandleFunc("/appointments/{id}", h.handleGetAppointment).Methods(http.MethodGet)
	r.HandleFunc("/appointments/{id}/status", h.handleUpdateAppointmentStatus).Methods(http.MethodPatch)

	r.HandleFunc("/reports/doctors", h.handleDoctorReport).Methods(http.MethodGet)
	r.HandleFunc("/reports/rooms", h.handleRoomUtilization).Methods(http.MethodGet)
	r.HandleFunc("/reports/top-rooms", h.handleTopRooms).Methods(http.MethodGet)
	r.HandleFunc("/reports/counts", h.handleCounts).Methods(http.MethodGet)

	r.HandleFunc("/audit", h.handleListAuditLog).Methods(http.MethodGet)
}

// Patients

func (h *Handler) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	patient, err := h.scheduler.CreatePatient(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"patient": patient})
}

func (h *Handler) handleListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.scheduler.ListPatients(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": patients, "count": len(patients)})
}

func (h *Handler) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	patient, err := h.scheduler.GetPatient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patient": patient})
}

func (h *Handler) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.scheduler.DeletePatient(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Doctors

func (h *Handler) handleCreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	doctor, err := h.scheduler.CreateDoctor(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"doctor": doctor})
}

func (h *Handler) handleListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.scheduler.ListDoctors(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": doctors, "count": len(doctors)})
}

func (h *Handler) handleGetDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	doctor, err := h.scheduler.GetDoctor(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"doctor": doctor})
}

func (h *Handler) handleDeleteDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.scheduler.DeleteDoctor(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rooms

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	room, err := h.scheduler.CreateRoom(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"room": room})
}

func (h *Handler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.scheduler.ListRooms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": rooms, "count": len(rooms)})
}

func (h *Handler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	room, err := h.scheduler.GetRoom(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"room": room})
}

func (h *Handler) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.scheduler.DeleteRoom(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Appointments

func (h *Handler) handleBookAppointment(w http.ResponseWriter, r *http.Request) {
	var req models.BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	appt, err := h.scheduler.BookAppointment(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"appointment": appt})
}

func (h *Handler) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.scheduler.ListAppointments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": appts, "count": len(appts)})
}

func (h *Handler) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	appt, err := h.scheduler.GetAppointment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"appointment": appt})
}

func (h *Handler) handleUpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req models.UpdateAppointmentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	appt, err := h.scheduler.UpdateAppointmentStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"appointment": appt})
}

// Reports

func (h *Handler) handleDoctorReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.AppointmentsPerDoctor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": rows, "count": len(rows)})
}

func (h *Handler) handleRoomUtilization(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.RoomUtilization(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": rows, "count": len(rows)})
}

func (h *Handler) handleTopRooms(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.TopRoomLoads(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": rows, "count": len(rows)})
}

func (h *Handler) handleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.reports.Counts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Audit log

func (h *Handler) handleListAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)
	entries, err := h.scheduler.ListAuditLog(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": entries, "count": len(entries)})
}

// helpers

func parseID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return fallback
	}
	return limit
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case IsNotFoundError(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case IsConstraintError(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Log.WithError(err).Error("Request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
