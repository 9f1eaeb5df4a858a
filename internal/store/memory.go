package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MemoryStore implements Store using in-memory maps. It backs the
// "memory" store driver and the test suites.
type MemoryStore struct {
	patients    map[int64]*Patient
	reports     map[int64]*MedicalReport
	nextPatient int64
	nextReport  int64
	mutex       sync.RWMutex
	logger      zerolog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		patients:    make(map[int64]*Patient),
		reports:     make(map[int64]*MedicalReport),
		nextPatient: 1,
		nextReport:  1,
		logger:      logger.With().Str("component", "memory_store").Logger(),
	}
}

// ListPatients returns all patients ordered by id.
func (s *MemoryStore) ListPatients(ctx context.Context) ([]Patient, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	patients := make([]Patient, 0, len(s.patients))
	for id := int64(1); id < s.nextPatient; id++ {
		if p, ok := s.patients[id]; ok {
			patients = append(patients, *p)
		}
	}
	return patients, nil
}

// FindPatientByName returns the lowest-id patient with the given name,
// or (nil, nil) when none matches.
func (s *MemoryStore) FindPatientByName(ctx context.Context, name string) (*Patient, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for id := int64(1); id < s.nextPatient; id++ {
		if p, ok := s.patients[id]; ok && p.Name == name {
			patientCopy := *p
			return &patientCopy, nil
		}
	}
	return nil, nil
}

// FindPatientByID returns the patient with the given id.
func (s *MemoryStore) FindPatientByID(ctx context.Context, id int64) (*Patient, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	p, ok := s.patients[id]
	if !ok {
		return nil, NewNotFoundError(EntityPatient, id)
	}
	patientCopy := *p
	return &patientCopy, nil
}

// ListReportsForPatient returns all reports for the patient ordered by id.
func (s *MemoryStore) ListReportsForPatient(ctx context.Context, patientID int64) ([]MedicalReport, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var reports []MedicalReport
	for id := int64(1); id < s.nextReport; id++ {
		if r, ok := s.reports[id]; ok && r.PatientID == patientID {
			reports = append(reports, *r)
		}
	}
	return reports, nil
}

// CreatePatient inserts a new patient and returns it with its assigned id.
func (s *MemoryStore) CreatePatient(ctx context.Context, name string, dateOfBirth time.Time, gender string) (*Patient, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p := &Patient{
		ID:          s.nextPatient,
		Name:        name,
		DateOfBirth: dateOfBirth,
		Gender:      gender,
	}
	s.patients[p.ID] = p
	s.nextPatient++

	patientCopy := *p
	return &patientCopy, nil
}

// CreateReport creates a report for an existing patient, dated today.
func (s *MemoryStore) CreateReport(ctx context.Context, patientID int64, diagnosis, content string) (*MedicalReport, error) {
	return s.CreateReportAt(ctx, patientID, time.Now().UTC(), diagnosis, content)
}

// CreateReportAt creates a report with an explicit report date.
func (s *MemoryStore) CreateReportAt(ctx context.Context, patientID int64, reportDate time.Time, diagnosis, content string) (*MedicalReport, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.patients[patientID]; !ok {
		return nil, NewNotFoundError(EntityPatient, patientID)
	}

	day, _ := time.Parse(DateFormat, reportDate.Format(DateFormat))
	r := &MedicalReport{
		ID:         s.nextReport,
		PatientID:  patientID,
		ReportDate: day,
		Diagnosis:  diagnosis,
		Content:    content,
	}
	s.reports[r.ID] = r
	s.nextReport++

	s.logger.Debug().
		Int64("report_id", r.ID).
		Int64("patient_id", patientID).
		Msg("Report created")

	reportCopy := *r
	return &reportCopy, nil
}

// UpdateReport replaces the diagnosis and content of an existing report.
// The write lock serializes concurrent updates to the same report.
func (s *MemoryStore) UpdateReport(ctx context.Context, reportID int64, diagnosis, content string) (*MedicalReport, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, ok := s.reports[reportID]
	if !ok {
		return nil, NewNotFoundError(EntityReport, reportID)
	}

	r.Diagnosis = diagnosis
	r.Content = content

	reportCopy := *r
	return &reportCopy, nil
}

// Close clears the store.
func (s *MemoryStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.patients = make(map[int64]*Patient)
	s.reports = make(map[int64]*MedicalReport)
	return nil
}
