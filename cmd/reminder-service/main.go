package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicore/scheduling/pkg/clinic"
	"github.com/clinicore/scheduling/pkg/common/config"
	"github.com/clinicore/scheduling/pkg/common/database"
	"github.com/clinicore/scheduling/pkg/common/kafka"
	"github.com/clinicore/scheduling/pkg/common/logger"
	"github.com/clinicore/scheduling/pkg/common/models"
	"github.com/clinicore/scheduling/pkg/observability/metrics"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
)

// reminderApp schedules one reminder per booked appointment. The redis key
// expires at the appointment start, so SetNX doubles as dedupe across
// consumer restarts and rebalances.
type reminderApp struct {
	redis *redis.Client
}

func main() {
	logger.Init()
	cfg := config.Load()

	app := &reminderApp{redis: database.GetRedis()}

	consumer := kafka.NewConsumer(cfg.AppointmentEventTopic, "reminder-service")
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Log.WithField("topic", cfg.AppointmentEventTopic).Info("Reminder consumer starting")
		if err := consumer.Consume(ctx, app.handleEvent); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Fatal("Consumer stopped")
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"reminder-service"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, "8081"),
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start reminder service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down reminder service...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Reminder service forced to shutdown")
	}
	database.CloseRedis()
	logger.Log.Info("Reminder service stopped")
}

func (a *reminderApp) handleEvent(ctx context.Context, event models.AppointmentEvent) error {
	switch {
	case event.Type == models.EventAppointmentBooked:
		return a.scheduleReminder(ctx, event)
	case event.Type == models.EventAppointmentStatusChanged && event.Status == string(models.StatusBooked):
		return a.scheduleReminder(ctx, event)
	case event.Type == models.EventAppointmentStatusChanged:
		return a.dropReminder(ctx, event)
	default:
		logger.Log.WithField("event_type", event.Type).Debug("Ignoring event")
		return nil
	}
}

func (a *reminderApp) scheduleReminder(ctx context.Context, event models.AppointmentEvent) error {
	start, err := time.Parse(clinic.TimeLayout, event.StartTime)
	if err != nil {
		logger.Log.WithError(err).WithField("appointment_id", event.AppointmentID).Warn("Event carries unparseable start time")
		return nil
	}
	ttl := time.Until(start)
	if ttl <= 0 {
		// Appointment already started; nothing to remind.
		return nil
	}
	key := fmt.Sprintf("reminder:%d", event.AppointmentID)
	created, err := a.redis.SetNX(ctx, key, event.StartTime, ttl).Result()
	if err != nil {
		return err
	}
	if created {
		metrics.IncReminderScheduled()
		logger.Log.WithFields(map[string]interface{}{
			"appointment_id": event.AppointmentID,
			"start_time":     event.StartTime,
		}).Info("Reminder scheduled")
	}
	return nil
}

func (a *reminderApp) dropReminder(ctx context.Context, event models.AppointmentEvent) error {
	key := fmt.Sprintf("reminder:%d", event.AppointmentID)
	if err := a.redis.Del(ctx, key).Err(); err != nil {
		return err
	}
	logger.Log.WithFields(map[string]interface{}{
		"appointment_id": event.AppointmentID,
		"status":         event.Status,
	}).Info("Reminder dropped")
	return nil
}
