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
	"github.com/clinicore/scheduling/pkg/common/middleware"
	"github.com/clinicore/scheduling/pkg/observability/metrics"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	store, err := buildStore(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialise store")
	}

	producer := kafka.NewProducer(cfg.AppointmentEventTopic)
	defer producer.Close()

	var cache *clinic.ReportCache
	if cfg.StoreBackend != "memory" {
		cache = clinic.NewReportCache(database.GetRedis(), cfg.ReportCacheTTL)
	}

	scheduler := clinic.NewSchedulerService(store, producer, cache)
	reports := clinic.NewReportingService(store, cache)

	if cfg.SeedOnStart {
		seed, err := clinic.LoadSeed(cfg.SeedFile)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to load seed data")
		}
		result, err := scheduler.Seed(context.Background(), seed)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to seed clinic data")
		}
		logger.Log.WithFields(map[string]interface{}{
			"patients": result.PatientsCreated,
			"doctors":  result.DoctorsCreated,
			"rooms":    result.RoomsCreated,
		}).Info("Seed data applied")
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS)
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"scheduler-service"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	clinic.NewHandler(scheduler, reports).Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("address", address).Info("Starting scheduler service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start scheduler service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down scheduler service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Scheduler service forced to shutdown")
	}
	database.ClosePostgres()
	database.CloseRedis()
	logger.Log.Info("Scheduler service stopped")
}

func buildStore(cfg *config.Config) (clinic.Store, error) {
	if cfg.StoreBackend == "memory" {
		logger.Log.Warn("Using in-memory store; data will not survive restarts")
		return clinic.NewMemStore(), nil
	}
	db, err := database.GetPostgres()
	if err != nil {
		return nil, err
	}
	repo := clinic.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, err
	}
	return repo, nil
}
