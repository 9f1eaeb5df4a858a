package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a sqlite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenSQLite opens (creating if necessary) a sqlite-backed store at path.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// WAL mode lets readers proceed concurrently with unrelated writes.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("wal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "sqlite_store").Logger(),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// migrate creates tables on first run.
func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			name          TEXT NOT NULL,
			date_of_birth TEXT NOT NULL,
			gender        TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS medical_reports (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id  INTEGER NOT NULL REFERENCES patients(id),
			report_date TEXT NOT NULL,
			diagnosis   TEXT NOT NULL DEFAULT '',
			content     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_patient ON medical_reports(patient_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ListPatients returns all patients ordered by id.
func (s *SQLiteStore) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, date_of_birth, gender FROM patients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, *p)
	}
	return patients, rows.Err()
}

// FindPatientByName returns the lowest-id patient with the given name,
// or (nil, nil) when none matches.
func (s *SQLiteStore) FindPatientByName(ctx context.Context, name string) (*Patient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, date_of_birth, gender FROM patients WHERE name = ? ORDER BY id LIMIT 1`,
		name)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find patient by name: %w", err)
	}
	return p, nil
}

// FindPatientByID returns the patient with the given id.
func (s *SQLiteStore) FindPatientByID(ctx context.Context, id int64) (*Patient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, date_of_birth, gender FROM patients WHERE id = ?`, id)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError(EntityPatient, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find patient by id: %w", err)
	}
	return p, nil
}

// ListReportsForPatient returns all reports for the patient ordered by id.
func (s *SQLiteStore) ListReportsForPatient(ctx context.Context, patientID int64) ([]MedicalReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, report_date, diagnosis, content
		 FROM medical_reports WHERE patient_id = ? ORDER BY id`,
		patientID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []MedicalReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// CreatePatient inserts a new patient and returns it with its assigned id.
func (s *SQLiteStore) CreatePatient(ctx context.Context, name string, dateOfBirth time.Time, gender string) (*Patient, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO patients (name, date_of_birth, gender) VALUES (?, ?, ?)`,
		name, dateOfBirth.Format(DateFormat), gender)
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create patient id: %w", err)
	}
	return &Patient{ID: id, Name: name, DateOfBirth: dateOfBirth, Gender: gender}, nil
}

// CreateReport creates a report for an existing patient, dated today.
func (s *SQLiteStore) CreateReport(ctx context.Context, patientID int64, diagnosis, content string) (*MedicalReport, error) {
	return s.CreateReportAt(ctx, patientID, time.Now().UTC(), diagnosis, content)
}

// CreateReportAt creates a report with an explicit report date.
func (s *SQLiteStore) CreateReportAt(ctx context.Context, patientID int64, reportDate time.Time, diagnosis, content string) (*MedicalReport, error) {
	if _, err := s.FindPatientByID(ctx, patientID); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO medical_reports (patient_id, report_date, diagnosis, content)
		 VALUES (?, ?, ?, ?)`,
		patientID, reportDate.Format(DateFormat), diagnosis, content)
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create report id: %w", err)
	}

	s.logger.Info().
		Int64("report_id", id).
		Int64("patient_id", patientID).
		Msg("Report created")

	// Round-trip through the stored format so callers see the same
	// date-only value a later read would return.
	day, _ := time.Parse(DateFormat, reportDate.Format(DateFormat))

	return &MedicalReport{
		ID:         id,
		PatientID:  patientID,
		ReportDate: day,
		Diagnosis:  diagnosis,
		Content:    content,
	}, nil
}

// UpdateReport replaces the diagnosis and content of an existing report.
// The single UPDATE statement is atomic, so concurrent updates to the
// same report leave exactly one of the writes persisted.
func (s *SQLiteStore) UpdateReport(ctx context.Context, reportID int64, diagnosis, content string) (*MedicalReport, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE medical_reports SET diagnosis = ?, content = ? WHERE id = ?`,
		diagnosis, content, reportID)
	if err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update report rows: %w", err)
	}
	if affected == 0 {
		return nil, NewNotFoundError(EntityReport, reportID)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, patient_id, report_date, diagnosis, content
		 FROM medical_reports WHERE id = ?`, reportID)
	r, err := scanReport(row)
	if err != nil {
		return nil, fmt.Errorf("reload report: %w", err)
	}

	s.logger.Info().
		Int64("report_id", reportID).
		Msg("Report updated")

	return r, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var p Patient
	var dob string
	if err := row.Scan(&p.ID, &p.Name, &dob, &p.Gender); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(DateFormat, dob)
	if err != nil {
		return nil, fmt.Errorf("parse date_of_birth %q: %w", dob, err)
	}
	p.DateOfBirth = parsed
	return &p, nil
}

func scanReport(row rowScanner) (*MedicalReport, error) {
	var r MedicalReport
	var date string
	if err := row.Scan(&r.ID, &r.PatientID, &date, &r.Diagnosis, &r.Content); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(DateFormat, date)
	if err != nil {
		return nil, fmt.Errorf("parse report_date %q: %w", date, err)
	}
	r.ReportDate = parsed
	return &r, nil
}
