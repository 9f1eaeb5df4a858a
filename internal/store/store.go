package store

import (
	"context"
	"fmt"
	"time"
)

// Patient is a patient record owned by the store.
type Patient struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      string    `json:"gender"`
}

// MedicalReport is a medical report record owned by the store.
// Every report belongs to exactly one patient.
type MedicalReport struct {
	ID         int64     `json:"id"`
	PatientID  int64     `json:"patient_id"`
	ReportDate time.Time `json:"report_date"`
	Diagnosis  string    `json:"diagnosis"`
	Content    string    `json:"content"`
}

// Store is the record store contract consumed by the tool layer.
//
// FindPatientByName returns (nil, nil) when no patient matches: absence
// is an ordinary empty result, not an error. Patient names are not
// unique; when duplicates exist the lookup returns an arbitrary single
// match (the lowest id in both implementations) and does not attempt to
// disambiguate.
//
// Id-based lookups and mutations return *NotFoundError when the
// referenced entity does not resolve.
type Store interface {
	// ListPatients returns all patients.
	ListPatients(ctx context.Context) ([]Patient, error)

	// FindPatientByName returns at most one patient with the given name.
	FindPatientByName(ctx context.Context, name string) (*Patient, error)

	// FindPatientByID returns the patient with the given id.
	FindPatientByID(ctx context.Context, id int64) (*Patient, error)

	// ListReportsForPatient returns all reports owned by the patient.
	// An unknown patient id yields an empty slice, not an error.
	ListReportsForPatient(ctx context.Context, patientID int64) ([]MedicalReport, error)

	// CreateReport creates a report for an existing patient, dated today.
	CreateReport(ctx context.Context, patientID int64, diagnosis, content string) (*MedicalReport, error)

	// UpdateReport replaces the diagnosis and content of an existing
	// report. Concurrent updates to the same report are serialized; the
	// persisted state always matches exactly one of the writes.
	UpdateReport(ctx context.Context, reportID int64, diagnosis, content string) (*MedicalReport, error)

	// Close releases store resources.
	Close() error
}

// Entity kinds carried by NotFoundError.
const (
	EntityPatient = "patient"
	EntityReport  = "report"
)

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

// NewNotFoundError creates a NotFoundError for the given entity kind and id.
func NewNotFoundError(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// DateFormat is the wire format for calendar dates.
const DateFormat = "2006-01-02"
