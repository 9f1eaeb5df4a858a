// Package medical provides the patient and medical-report tools exposed
// to the prediction service.
package medical

import (
	"context"

	"github.com/rs/zerolog"

	"medagent-go/internal/store"
	"medagent-go/internal/tools"
)

// PatientDTO is the flat patient shape returned to callers.
type PatientDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
}

// MedicalReportDTO is the flat report shape returned to callers. It
// carries the owning patient id only, never an embedded patient.
type MedicalReportDTO struct {
	ID         int64  `json:"id"`
	PatientID  int64  `json:"patientId"`
	ReportDate string `json:"reportDate"`
	Diagnosis  string `json:"diagnosis"`
	Content    string `json:"content"`
}

func toPatientDTO(p *store.Patient) PatientDTO {
	return PatientDTO{
		ID:          p.ID,
		Name:        p.Name,
		DateOfBirth: p.DateOfBirth.Format(store.DateFormat),
		Gender:      p.Gender,
	}
}

func toReportDTO(r *store.MedicalReport) MedicalReportDTO {
	return MedicalReportDTO{
		ID:         r.ID,
		PatientID:  r.PatientID,
		ReportDate: r.ReportDate.Format(store.DateFormat),
		Diagnosis:  r.Diagnosis,
		Content:    r.Content,
	}
}

// Register adds all medical tools to the registry.
func Register(registry *tools.Registry, s store.Store, logger zerolog.Logger) {
	logger = logger.With().Str("component", "medical_tools").Logger()
	registry.Register(&listPatientsTool{store: s, logger: logger})
	registry.Register(&getPatientInfoTool{store: s, logger: logger})
	registry.Register(&listReportsTool{store: s, logger: logger})
	registry.Register(&addReportTool{store: s, logger: logger})
	registry.Register(&updateReportTool{store: s, logger: logger})
}

type listPatientsTool struct {
	store  store.Store
	logger zerolog.Logger
}

func (t *listPatientsTool) Name() string { return "list_patients" }

func (t *listPatientsTool) Description() string {
	return "Get a list of all patients"
}

func (t *listPatientsTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Returns:     "patient[]",
	}
}

func (t *listPatientsTool) Call(ctx context.Context, args tools.Arguments) (any, error) {
	t.logger.Info().Msg("Listing all patients")

	patients, err := t.store.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]PatientDTO, 0, len(patients))
	for i := range patients {
		dtos = append(dtos, toPatientDTO(&patients[i]))
	}
	return dtos, nil
}

type getPatientInfoTool struct {
	store  store.Store
	logger zerolog.Logger
}

func (t *getPatientInfoTool) Name() string { return "get_patient_info" }

func (t *getPatientInfoTool) Description() string {
	return "Get information about a patient by name"
}

func (t *getPatientInfoTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Params: []tools.Param{
			{Name: "name", Type: tools.TypeString, Description: "Full name of the patient", Required: true},
		},
		Returns: "patient",
	}
}

// Call returns a null payload when no patient matches: downstream the
// model must be able to tell "no data" from "error".
func (t *getPatientInfoTool) Call(ctx context.Context, args tools.Arguments) (any, error) {
	name := args.String("name")
	t.logger.Info().Str("name", name).Msg("Getting patient info")

	patient, err := t.store.FindPatientByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, nil
	}
	return toPatientDTO(patient), nil
}

type listReportsTool struct {
	store  store.Store
	logger zerolog.Logger
}

func (t *listReportsTool) Name() string { return "list_reports_for_patient" }

func (t *listReportsTool) Description() string {
	return "Get all medical reports for a patient by patient ID"
}

func (t *listReportsTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Params: []tools.Param{
			{Name: "patientId", Type: tools.TypeInteger, Description: "ID of the patient", Required: true},
		},
		Returns: "report[]",
	}
}

func (t *listReportsTool) Call(ctx context.Context, args tools.Arguments) (any, error) {
	patientID := args.Int64("patientId")
	t.logger.Info().Int64("patient_id", patientID).Msg("Listing reports for patient")

	reports, err := t.store.ListReportsForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	dtos := make([]MedicalReportDTO, 0, len(reports))
	for i := range reports {
		dtos = append(dtos, toReportDTO(&reports[i]))
	}
	return dtos, nil
}

type addReportTool struct {
	store  store.Store
	logger zerolog.Logger
}

func (t *addReportTool) Name() string { return "add_medical_report" }

func (t *addReportTool) Description() string {
	return "Add a new medical report for a patient by patient ID, diagnosis, and content"
}

func (t *addReportTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Params: []tools.Param{
			{Name: "patientId", Type: tools.TypeInteger, Description: "ID of the patient the report belongs to", Required: true},
			{Name: "diagnosis", Type: tools.TypeString, Description: "Diagnosis for the report", Required: true},
			{Name: "content", Type: tools.TypeString, Description: "Free-text report content", Required: true},
		},
		Returns: "report",
	}
}

func (t *addReportTool) Call(ctx context.Context, args tools.Arguments) (any, error) {
	patientID := args.Int64("patientId")
	t.logger.Info().Int64("patient_id", patientID).Msg("Adding medical report")

	report, err := t.store.CreateReport(ctx, patientID, args.String("diagnosis"), args.String("content"))
	if err != nil {
		return nil, err
	}
	return toReportDTO(report), nil
}

type updateReportTool struct {
	store  store.Store
	logger zerolog.Logger
}

func (t *updateReportTool) Name() string { return "update_medical_report" }

func (t *updateReportTool) Description() string {
	return "Update an existing medical report by report ID, new diagnosis, and new content"
}

func (t *updateReportTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Params: []tools.Param{
			{Name: "reportId", Type: tools.TypeInteger, Description: "ID of the report to update", Required: true},
			{Name: "diagnosis", Type: tools.TypeString, Description: "New diagnosis", Required: true},
			{Name: "content", Type: tools.TypeString, Description: "New report content", Required: true},
		},
		Returns: "report",
	}
}

func (t *updateReportTool) Call(ctx context.Context, args tools.Arguments) (any, error) {
	reportID := args.Int64("reportId")
	t.logger.Info().Int64("report_id", reportID).Msg("Updating medical report")

	report, err := t.store.UpdateReport(ctx, reportID, args.String("diagnosis"), args.String("content"))
	if err != nil {
		return nil, err
	}
	return toReportDTO(report), nil
}
