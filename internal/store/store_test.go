package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// openStores returns one store of each implementation, seeded.
func openStores(t *testing.T) map[string]SeedTarget {
	t.Helper()
	logger := zerolog.Nop()

	sqlite, err := OpenSQLite(":memory:", logger)
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	memory := NewMemoryStore(logger)
	t.Cleanup(func() { memory.Close() })

	stores := map[string]SeedTarget{
		"sqlite": sqlite,
		"memory": memory,
	}
	for name, s := range stores {
		if err := Seed(context.Background(), s, logger); err != nil {
			t.Fatalf("Failed to seed %s store: %v", name, err)
		}
	}
	return stores
}

func TestListPatients(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			patients, err := s.ListPatients(context.Background())
			if err != nil {
				t.Fatalf("Failed to list patients: %v", err)
			}
			if len(patients) != 2 {
				t.Fatalf("Expected 2 patients, got %d", len(patients))
			}
			if patients[0].Name != "John Doe" || patients[1].Name != "Jane Smith" {
				t.Errorf("Unexpected patient order: %q, %q", patients[0].Name, patients[1].Name)
			}
		})
	}
}

func TestFindPatientByName(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			p, err := s.FindPatientByName(ctx, "John Doe")
			if err != nil {
				t.Fatalf("Failed to find patient: %v", err)
			}
			if p == nil {
				t.Fatal("Expected a patient, got nil")
			}
			if got := p.DateOfBirth.Format(DateFormat); got != "1980-05-15" {
				t.Errorf("Expected DOB 1980-05-15, got %s", got)
			}
			if p.Gender != "Male" {
				t.Errorf("Expected gender Male, got %s", p.Gender)
			}

			// Absence is an empty result, not an error.
			missing, err := s.FindPatientByName(ctx, "Nobody")
			if err != nil {
				t.Fatalf("Expected no error for missing patient, got %v", err)
			}
			if missing != nil {
				t.Errorf("Expected nil for missing patient, got %+v", missing)
			}
		})
	}
}

func TestFindPatientByNameDuplicates(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := s.CreatePatient(ctx, "Twin", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), "Female")
			if err != nil {
				t.Fatalf("Failed to create patient: %v", err)
			}
			if _, err := s.CreatePatient(ctx, "Twin", time.Date(1975, 1, 1, 0, 0, 0, 0, time.UTC), "Female"); err != nil {
				t.Fatalf("Failed to create patient: %v", err)
			}

			found, err := s.FindPatientByName(ctx, "Twin")
			if err != nil {
				t.Fatalf("Failed to find patient: %v", err)
			}
			if found == nil || found.ID != first.ID {
				t.Errorf("Expected lowest-id match %d, got %+v", first.ID, found)
			}
		})
	}
}

func TestFindPatientByIDNotFound(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.FindPatientByID(context.Background(), 999)
			var notFound *NotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("Expected NotFoundError, got %v", err)
			}
			if notFound.Entity != EntityPatient || notFound.ID != 999 {
				t.Errorf("Unexpected error detail: %+v", notFound)
			}
		})
	}
}

func TestCreateReport(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			report, err := s.CreateReport(ctx, 1, "Flu", "rest")
			if err != nil {
				t.Fatalf("Failed to create report: %v", err)
			}
			if report.ID == 0 {
				t.Error("Expected a newly assigned id")
			}
			if report.PatientID != 1 {
				t.Errorf("Expected patient id 1, got %d", report.PatientID)
			}

			// Creating a report for a missing patient must fail with NotFound.
			_, err = s.CreateReport(ctx, 42, "Flu", "rest")
			var notFound *NotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("Expected NotFoundError, got %v", err)
			}
			if notFound.Entity != EntityPatient || notFound.ID != 42 {
				t.Errorf("Unexpected error detail: %+v", notFound)
			}
		})
	}
}

func TestUpdateReport(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			created, err := s.CreateReport(ctx, 2, "Initial", "initial content")
			if err != nil {
				t.Fatalf("Failed to create report: %v", err)
			}

			updated, err := s.UpdateReport(ctx, created.ID, "Updated", "new content")
			if err != nil {
				t.Fatalf("Failed to update report: %v", err)
			}
			if updated.Diagnosis != "Updated" || updated.Content != "new content" {
				t.Errorf("Update not applied: %+v", updated)
			}

			// The update must not duplicate the report.
			reports, err := s.ListReportsForPatient(ctx, 2)
			if err != nil {
				t.Fatalf("Failed to list reports: %v", err)
			}
			seen := 0
			for _, r := range reports {
				if r.ID == created.ID {
					seen++
					if r.Diagnosis != "Updated" {
						t.Errorf("Expected updated diagnosis, got %s", r.Diagnosis)
					}
				}
			}
			if seen != 1 {
				t.Errorf("Expected exactly one report with id %d, got %d", created.ID, seen)
			}

			_, err = s.UpdateReport(ctx, 999, "X", "Y")
			var notFound *NotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("Expected NotFoundError, got %v", err)
			}
			if notFound.Entity != EntityReport {
				t.Errorf("Expected report entity, got %s", notFound.Entity)
			}
		})
	}
}

func TestListReportsForUnknownPatient(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			reports, err := s.ListReportsForPatient(context.Background(), 999)
			if err != nil {
				t.Fatalf("Expected empty result, got error: %v", err)
			}
			if len(reports) != 0 {
				t.Errorf("Expected no reports, got %d", len(reports))
			}
		})
	}
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			created, err := s.CreateReport(ctx, 1, "Initial", "initial")
			if err != nil {
				t.Fatalf("Failed to create report: %v", err)
			}

			const writers = 8
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					diagnosis := fmt.Sprintf("Diagnosis-%d", n)
					content := fmt.Sprintf("Content-%d", n)
					if _, err := s.UpdateReport(ctx, created.ID, diagnosis, content); err != nil {
						t.Errorf("Update failed: %v", err)
					}
				}(i)
			}
			wg.Wait()

			// The surviving state must match exactly one of the writes.
			reports, err := s.ListReportsForPatient(ctx, 1)
			if err != nil {
				t.Fatalf("Failed to list reports: %v", err)
			}
			var final *MedicalReport
			for i := range reports {
				if reports[i].ID == created.ID {
					final = &reports[i]
				}
			}
			if final == nil {
				t.Fatal("Report disappeared")
			}
			matched := false
			for i := 0; i < writers; i++ {
				if final.Diagnosis == fmt.Sprintf("Diagnosis-%d", i) &&
					final.Content == fmt.Sprintf("Content-%d", i) {
					matched = true
				}
			}
			if !matched {
				t.Errorf("Interleaved write detected: diagnosis=%q content=%q", final.Diagnosis, final.Content)
			}
		})
	}
}

func TestSeedIdempotent(t *testing.T) {
	logger := zerolog.Nop()
	s := NewMemoryStore(logger)
	defer s.Close()

	ctx := context.Background()
	if err := Seed(ctx, s, logger); err != nil {
		t.Fatalf("First seed failed: %v", err)
	}
	if err := Seed(ctx, s, logger); err != nil {
		t.Fatalf("Second seed failed: %v", err)
	}

	patients, err := s.ListPatients(ctx)
	if err != nil {
		t.Fatalf("Failed to list patients: %v", err)
	}
	if len(patients) != 2 {
		t.Errorf("Expected 2 patients after double seed, got %d", len(patients))
	}
}
