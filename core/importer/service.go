package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/core/audit"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/student"
)

var ErrNotConfirmed = errors.New("import must be confirmed")

type (
	Students interface {
		Identities(ctx context.Context) ([]student.Identity, error)
		Create(ctx context.Context, ns student.NewStudent) (student.Student, error)
	}

	Academics interface {
		ListFaculties(ctx context.Context) ([]academic.Faculty, error)
		ListDepartments(ctx context.Context, facultyID string) ([]academic.Department, error)
		ListAcademicYears(ctx context.Context) ([]academic.AcademicYear, error)
	}

	Documents interface {
		Upload(ctx context.Context, registrationID string, typ document.Type, files ...document.File) ([]document.Document, error)
	}

	Service struct {
		students     Students
		academics    Academics
		docs         Documents
		auditor      audit.Recorder
		logger       core.Logger
		uploadLimit  int
		maxEntrySize int64
	}
)

func NewService(
	students Students,
	academics Academics,
	docs Documents,
	auditor audit.Recorder,
	logger core.Logger,
	conf core.ImportConfig,
) *Service {
	return &Service{
		students:     students,
		academics:    academics,
		docs:         docs,
		auditor:      auditor,
		logger:       logger,
		uploadLimit:  conf.UploadConcurrency,
		maxEntrySize: conf.MaxZipEntrySize,
	}
}

// Preview is shown to the user before they confirm an import.
type Preview struct {
	Summary    Summary     `json:"summary"`
	Valid      []Row       `json:"valid"`
	Duplicates []Duplicate `json:"duplicates"`
	Errors     []RowError  `json:"errors"`
}

type CommitReport struct {
	Preview
	Created []student.Student `json:"created"`
	Failed  []RowError        `json:"failed"`
}

type DocumentReport struct {
	Students        int            `json:"students"`
	Unrecognized    []Unrecognized `json:"unrecognized"`
	UnknownStudents []string       `json:"unknown_students"`
	Upload          UploadReport   `json:"upload"`
}

func (svc *Service) references(ctx context.Context) (references, error) {
	faculties, err := svc.academics.ListFaculties(ctx)
	if err != nil {
		return references{}, errors.Wrap(err, "listing faculties")
	}
	depts, err := svc.academics.ListDepartments(ctx, "")
	if err != nil {
		return references{}, errors.Wrap(err, "listing departments")
	}
	years, err := svc.academics.ListAcademicYears(ctx)
	if err != nil {
		return references{}, errors.Wrap(err, "listing academic years")
	}
	return newReferences(depts, faculties, years), nil
}

func (svc *Service) reconcile(ctx context.Context, filename string, r io.Reader) (Result, references, error) {
	rows, err := Parse(filename, r)
	if err != nil {
		return Result{}, references{}, err
	}
	existing, err := svc.students.Identities(ctx)
	if err != nil {
		return Result{}, references{}, errors.Wrap(err, "listing existing students")
	}
	refs, err := svc.references(ctx)
	if err != nil {
		return Result{}, references{}, err
	}
	return Reconcile(rows, existing, refs.check), refs, nil
}

func newPreview(res Result) Preview {
	return Preview{
		Summary:    res.Summary(),
		Valid:      res.Valid,
		Duplicates: res.Duplicates,
		Errors:     res.Errors,
	}
}

// PreviewStudents parses and reconciles a students file. Nothing is written.
func (svc *Service) PreviewStudents(ctx context.Context, filename string, r io.Reader) (Preview, error) {
	res, _, err := svc.reconcile(ctx, filename, r)
	if err != nil {
		return Preview{}, err
	}
	return newPreview(res), nil
}

// CommitStudents creates the valid rows of a students file. Data is reconciled again so rows that
// became duplicates since the preview are skipped. Rows failing on creation are reported, not rolled back.
func (svc *Service) CommitStudents(ctx context.Context, filename string, r io.Reader, confirmed bool) (CommitReport, error) {
	if !confirmed {
		return CommitReport{}, ErrNotConfirmed
	}
	res, refs, err := svc.reconcile(ctx, filename, r)
	if err != nil {
		return CommitReport{}, err
	}

	report := CommitReport{
		Preview: newPreview(res),
		Created: []student.Student{},
		Failed:  []RowError{},
	}
	for _, row := range res.Valid {
		s, err := svc.students.Create(ctx, newStudent(row, refs))
		if err != nil {
			report.Failed = append(report.Failed, createError(row, err))
			continue
		}
		report.Created = append(report.Created, s)
	}

	svc.auditor.Record(ctx, audit.NewEntry{
		Action:   audit.ActionImport,
		Entity:   audit.EntityImport,
		EntityID: filename,
		Details: map[string]interface{}{
			"total":      report.Summary.Total,
			"created":    len(report.Created),
			"failed":     len(report.Failed),
			"duplicates": report.Summary.Duplicates,
			"invalid":    report.Summary.Invalid,
		},
	})
	return report, nil
}

func newStudent(row Row, refs references) student.NewStudent {
	dept, _ := refs.department(row.Department)
	year, _ := refs.year(row.AcademicYear)
	gpa, _ := row.GPAValue()
	status, _ := student.ParseStatus(row.Status)
	return student.NewStudent{
		RegistrationID: row.RegistrationID,
		CertificateID:  row.CertificateID,
		FullName:       row.FullName,
		DepartmentID:   dept.ID,
		AcademicYearID: year.ID,
		GPA:            gpa,
		Grade:          row.Grade,
		Status:         status,
	}
}

func createError(row Row, err error) RowError {
	rerr := RowError{Line: row.Line, RegistrationID: row.RegistrationID, Message: errors.Cause(err).Error()}
	if verr, ok := errors.Cause(err).(*core.ValidationError); ok && len(verr.Fields) > 0 {
		rerr.Field = verr.Fields[0].Field
		rerr.Message = verr.Fields[0].Error
	}
	return rerr
}

// ImportDocuments organizes a ZIP archive and uploads its files, one batch per student and document type.
// A malformed archive fails before anything is uploaded.
func (svc *Service) ImportDocuments(ctx context.Context, data []byte) (DocumentReport, error) {
	organized, err := OrganizeBytes(data, svc.maxEntrySize)
	if err != nil {
		return DocumentReport{}, err
	}
	existing, err := svc.students.Identities(ctx)
	if err != nil {
		return DocumentReport{}, errors.Wrap(err, "listing existing students")
	}
	plan := Plan(organized, existing)

	report := DocumentReport{
		Students:        len(organized.Files) - len(plan.UnknownStudents),
		Unrecognized:    organized.Unrecognized,
		UnknownStudents: plan.UnknownStudents,
		Upload:          UploadBatches(ctx, plan.Batches, serviceUploader{svc.docs}, svc.uploadLimit),
	}
	if report.Upload.Failed > 0 {
		svc.logger.Warn(fmt.Sprintf("importer: %d of %d document(s) failed to upload",
			report.Upload.Failed, report.Upload.Failed+report.Upload.Uploaded))
	}
	return report, nil
}

// serviceUploader uploads batches in process.
type serviceUploader struct {
	docs Documents
}

func (u serviceUploader) UploadBatch(ctx context.Context, regID string, typ document.Type, files []document.File) error {
	_, err := u.docs.Upload(ctx, regID, typ, files...)
	return err
}
