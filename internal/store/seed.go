package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SeedTarget is the write surface seeding needs beyond the Store contract.
// Both SQLiteStore and MemoryStore satisfy it.
type SeedTarget interface {
	Store
	CreatePatient(ctx context.Context, name string, dateOfBirth time.Time, gender string) (*Patient, error)
	CreateReportAt(ctx context.Context, patientID int64, reportDate time.Time, diagnosis, content string) (*MedicalReport, error)
}

// Seed populates an empty store with sample patients and reports.
// A store that already holds patients is left untouched.
func Seed(ctx context.Context, s SeedTarget, logger zerolog.Logger) error {
	existing, err := s.ListPatients(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Debug().Int("patients", len(existing)).Msg("Store already seeded")
		return nil
	}

	now := time.Now().UTC()

	john, err := s.CreatePatient(ctx, "John Doe",
		time.Date(1980, time.May, 15, 0, 0, 0, 0, time.UTC), "Male")
	if err != nil {
		return err
	}
	if _, err := s.CreateReportAt(ctx, john.ID, now, "Flu",
		"Patient shows symptoms of seasonal flu. Prescribed rest and medication."); err != nil {
		return err
	}

	jane, err := s.CreatePatient(ctx, "Jane Smith",
		time.Date(1990, time.August, 22, 0, 0, 0, 0, time.UTC), "Female")
	if err != nil {
		return err
	}
	if _, err := s.CreateReportAt(ctx, jane.ID, now.AddDate(0, 0, -10), "Checkup",
		"Routine checkup. All vitals normal."); err != nil {
		return err
	}

	logger.Info().Msg("Seeded sample patients and reports")
	return nil
}
