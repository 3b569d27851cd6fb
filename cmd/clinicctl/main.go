package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/clinicore/scheduling/pkg/clinic"
	"github.com/clinicore/scheduling/pkg/common/config"
	"github.com/clinicore/scheduling/pkg/common/database"
	"github.com/clinicore/scheduling/pkg/common/logger"
	"github.com/clinicore/scheduling/pkg/common/models"
	"github.com/spf13/cobra"
)

func main() {
	logger.Init()

	rootCmd := &cobra.Command{
		Use:   "clinicctl",
		Short: "Clinic scheduling administration tool",
	}

	rootCmd.PersistentFlags().String("store", "", "store backend: postgres or memory (defaults to CLINIC_STORE)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(bookCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildServices(cmd *cobra.Command) (*clinic.SchedulerService, *clinic.ReportingService, error) {
	cfg := config.Load()
	backend := cfg.StoreBackend
	if flag, _ := cmd.Flags().GetString("store"); flag != "" {
		backend = flag
	}

	var store clinic.Store
	if backend == "memory" {
		store = clinic.NewMemStore()
	} else {
		db, err := database.GetPostgres()
		if err != nil {
			return nil, nil, err
		}
		repo := clinic.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			return nil, nil, err
		}
		store = repo
	}

	scheduler := clinic.NewSchedulerService(store, nil, nil)
	reports := clinic.NewReportingService(store, nil)
	return scheduler, reports, nil
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the schema and apply seed data",
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduler, _, err := buildServices(cmd)
			if err != nil {
				return err
			}
			seedFile, _ := cmd.Flags().GetString("seed-file")
			if seedFile == "" {
				seedFile = config.Load().SeedFile
			}
			data, err := clinic.LoadSeed(seedFile)
			if err != nil {
				return err
			}
			result, err := scheduler.Seed(context.Background(), data)
			if err != nil {
				return err
			}
			fmt.Printf("Seed complete: %d patients, %d doctors, %d rooms created.\n",
				result.PatientsCreated, result.DoctorsCreated, result.RoomsCreated)
			return nil
		},
	}
	cmd.Flags().String("seed-file", "", "YAML file with seed fixtures (defaults to the built-in dataset)")
	return cmd
}

func bookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduler, _, err := buildServices(cmd)
			if err != nil {
				return err
			}
			patientID, _ := cmd.Flags().GetUint64("patient")
			doctorID, _ := cmd.Flags().GetUint64("doctor")
			roomID, _ := cmd.Flags().GetUint64("room")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			notes, _ := cmd.Flags().GetString("notes")

			req := models.BookAppointmentRequest{
				PatientID: patientID,
				DoctorID:  doctorID,
				StartTime: start,
				EndTime:   end,
				Notes:     notes,
			}
			if roomID != 0 {
				req.RoomID = &roomID
			}

			appt, err := scheduler.BookAppointment(context.Background(), req)
			if err != nil {
				return err
			}
			fmt.Printf("Booked appointment %d for patient %d with doctor %d at %s.\n",
				appt.ID, appt.PatientID, appt.DoctorID, appt.StartTime)
			return nil
		},
	}
	cmd.Flags().Uint64("patient", 0, "patient id")
	cmd.Flags().Uint64("doctor", 0, "doctor id")
	cmd.Flags().Uint64("room", 0, "room id (optional)")
	cmd.Flags().String("start", "", `start time, e.g. "2025-08-30 09:00"`)
	cmd.Flags().String("end", "", "end time (optional)")
	cmd.Flags().String("notes", "", "notes (optional)")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <appointment-id>",
		Short: "Cancel an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid appointment id %q", args[0])
			}
			scheduler, _, err := buildServices(cmd)
			if err != nil {
				return err
			}
			appt, err := scheduler.CancelAppointment(context.Background(), id)
			if err != nil {
				return err
			}
			fmt.Printf("Appointment %d cancelled.\n", appt.ID)
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print reports",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "doctors",
		Short: "Appointments per doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reports, err := buildServices(cmd)
			if err != nil {
				return err
			}
			rows, err := reports.AppointmentsPerDoctor(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("%-30s %-20s %s\n", "DOCTOR", "SPECIALIZATION", "APPOINTMENTS")
			for _, row := range rows {
				fmt.Printf("%-30s %-20s %d\n", row.Doctor, row.Specialization, row.TotalAppointments)
			}
			return nil
		},
	})

	roomsCmd := &cobra.Command{
		Use:   "rooms",
		Short: "Room utilization for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			_, reports, err := buildServices(cmd)
			if err != nil {
				return err
			}
			rows, err := reports.RoomUtilization(context.Background(), date)
			if err != nil {
				return err
			}
			fmt.Printf("%-10s %-15s %s\n", "ROOM", "TYPE", "APPOINTMENTS")
			for _, row := range rows {
				fmt.Printf("%-10s %-15s %d\n", row.RoomNumber, row.RoomType, row.TotalAppointments)
			}
			return nil
		},
	}
	roomsCmd.Flags().String("date", "", "date in YYYY-MM-DD form")
	_ = roomsCmd.MarkFlagRequired("date")
	cmd.AddCommand(roomsCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "top-rooms",
		Short: "Busiest rooms across all dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reports, err := buildServices(cmd)
			if err != nil {
				return err
			}
			rows, err := reports.TopRoomLoads(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("%-10s %-15s %s\n", "ROOM", "TYPE", "TOTAL")
			for _, row := range rows {
				fmt.Printf("%-10s %-15s %d\n", row.RoomNumber, row.RoomType, row.Total)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "counts",
		Short: "Global entity counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reports, err := buildServices(cmd)
			if err != nil {
				return err
			}
			counts, err := reports.Counts(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Patients:     %d\n", counts.Patients)
			fmt.Printf("Doctors:      %d\n", counts.Doctors)
			fmt.Printf("Appointments: %d\n", counts.Appointments)
			return nil
		},
	})

	return cmd
}
