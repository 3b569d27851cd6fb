package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	bookingsTotal      atomic.Int64
	doctorConflicts    atomic.Int64
	roomConflicts      atomic.Int64
	auditAppends       atomic.Int64
	reportCacheHits    atomic.Int64
	reportCacheMisses  atomic.Int64
	eventsPublished    atomic.Int64
	remindersScheduled atomic.Int64
)

func IncBooking()           { bookingsTotal.Add(1) }
func IncDoctorConflict()    { doctorConflicts.Add(1) }
func IncRoomConflict()      { roomConflicts.Add(1) }
func IncAuditAppend()       { auditAppends.Add(1) }
func IncReportCacheHit()    { reportCacheHits.Add(1) }
func IncReportCacheMiss()   { reportCacheMisses.Add(1) }
func IncEventPublished()    { eventsPublished.Add(1) }
func IncReminderScheduled() { remindersScheduled.Add(1) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeCounter(w, "clinic_bookings_total", "Number of appointments booked since process start.", bookingsTotal.Load())
	writeCounter(w, "clinic_booking_conflicts_doctor_total", "Number of bookings rejected because the doctor slot was taken.", doctorConflicts.Load())
	writeCounter(w, "clinic_booking_conflicts_room_total", "Number of bookings rejected because the room slot was taken.", roomConflicts.Load())
	writeCounter(w, "clinic_audit_appends_total", "Number of audit log entries appended.", auditAppends.Load())
	writeCounter(w, "clinic_report_cache_hits_total", "Number of report reads served from the cache.", reportCacheHits.Load())
	writeCounter(w, "clinic_report_cache_misses_total", "Number of report reads that fell through to the store.", reportCacheMisses.Load())
	writeCounter(w, "clinic_events_published_total", "Number of appointment events published to the broker.", eventsPublished.Load())
	writeCounter(w, "clinic_reminders_scheduled_total", "Number of reminders scheduled by the reminder worker.", remindersScheduled.Load())
}

func writeCounter(w http.ResponseWriter, name, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, value)
}
