package student

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/core/audit"
	"github.com/trezcool/registrar/core/cache"
	"github.com/trezcool/registrar/core/document"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("student not found")
	ErrRegistrationIDExists = errors.New("a student with this registration id already exists")
	ErrCertificateIDExists  = errors.New("a student with this certificate id already exists")

	// OrderingFields are the fields students can be ordered by.
	OrderingFields  = []string{"registration_id", "full_name", "gpa", "status", "created_at", "updated_at"}
	defaultOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
)

type (
	Repository interface {
		// CheckUniqueness returns ErrRegistrationIDExists or ErrCertificateIDExists when another student
		// (not excludedID) already uses one of the IDs. An empty certificateID is never checked.
		CheckUniqueness(ctx context.Context, registrationID, certificateID, excludedID string) error
		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		GetStudentByRegistrationID(ctx context.Context, registrationID string) (Student, error)
		GetStudentByCertificateID(ctx context.Context, certificateID string) (Student, error)
		// FilterStudents applies AND operation on available QueryFilter fields.
		FilterStudents(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		// DeleteStudents returns the IDs of the students actually deleted.
		DeleteStudents(ctx context.Context, ids ...string) ([]string, error)
		ListIdentities(ctx context.Context) ([]Identity, error)
	}

	// Academics is the read side of academic.Service the student service needs.
	Academics interface {
		GetDepartment(ctx context.Context, id string) (academic.Department, error)
		GetFaculty(ctx context.Context, id string) (academic.Faculty, error)
		GetAcademicYear(ctx context.Context, id string) (academic.AcademicYear, error)
	}

	// Documents is the part of document.Service the student service needs.
	Documents interface {
		List(ctx context.Context, studentID string) ([]document.Document, error)
		DeleteForStudent(ctx context.Context, studentID string) error
	}

	Service struct {
		repo        Repository
		academics   Academics
		docs        Documents
		list        *cache.Namespace[[]Student]
		detail      *cache.Revalidating[Detail]
		invalidator *cache.Invalidator
		auditor     audit.Recorder
	}
)

func NewService(
	repo Repository,
	academics Academics,
	docs Documents,
	reg *cache.Registry,
	conf core.CacheConfig,
	refresher *cache.Refresher,
	inv *cache.Invalidator,
	auditor audit.Recorder,
) *Service {
	return &Service{
		repo:        repo,
		academics:   academics,
		docs:        docs,
		list:        cache.NewNamespace[[]Student](reg, cache.Students, conf.StudentListTTL),
		detail:      cache.NewRevalidating[Detail](reg, cache.StudentDetail, conf.StudentDetailTTL, conf.StaleFraction, refresher),
		invalidator: inv,
		auditor:     auditor,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, regID, certID, excludedID string) error {
	if err := svc.repo.CheckUniqueness(ctx, regID, certID, excludedID); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrRegistrationIDExists:
			field = "registration_id"
		case ErrCertificateIDExists:
			field = "certificate_id"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		cause := errors.Cause(err)
		return core.NewValidationError(cause, core.FieldError{Field: field, Error: cause.Error()})
	}
	return nil
}

// placement validates the department & academic year references and returns the faculty of the department.
func (svc *Service) placement(ctx context.Context, departmentID, yearID string) (string, error) {
	dept, err := svc.academics.GetDepartment(ctx, departmentID)
	if err != nil {
		if core.IsNotFound(err) {
			return "", core.NewValidationError(err, core.FieldError{Field: "department_id", Error: err.Error()})
		}
		return "", errors.Wrap(err, "getting department")
	}
	if _, err := svc.academics.GetAcademicYear(ctx, yearID); err != nil {
		if core.IsNotFound(err) {
			return "", core.NewValidationError(err, core.FieldError{Field: "academic_year_id", Error: err.Error()})
		}
		return "", errors.Wrap(err, "getting academic year")
	}
	return dept.FacultyID, nil
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	ns.Clean()
	if err := svc.checkUniqueness(ctx, ns.RegistrationID, ns.CertificateID, ""); err != nil {
		return Student{}, err
	}
	facultyID, err := svc.placement(ctx, ns.DepartmentID, ns.AcademicYearID)
	if err != nil {
		return Student{}, err
	}
	status, _ := ParseStatus(string(ns.Status))

	now := time.Now().UTC()
	s, err := svc.repo.CreateStudent(ctx, Student{
		ID:             uuid.NewString(),
		RegistrationID: ns.RegistrationID,
		CertificateID:  ns.CertificateID,
		FullName:       ns.FullName,
		DepartmentID:   ns.DepartmentID,
		FacultyID:      facultyID,
		AcademicYearID: ns.AcademicYearID,
		GPA:            ns.GPA,
		Grade:          ns.Grade,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Student{}, svc.checkUniquenessErr(err)
	}

	svc.invalidator.Mutated(cache.EntityStudent, s.ID)
	svc.auditor.Record(ctx, audit.NewEntry{
		Action:   audit.ActionCreate,
		Entity:   audit.EntityStudent,
		EntityID: s.ID,
		Details:  map[string]interface{}{"registration_id": s.RegistrationID},
	})
	return s, nil
}

// checkUniquenessErr maps unique violations raced past CheckUniqueness.
func (svc *Service) checkUniquenessErr(err error) error {
	switch errors.Cause(err) {
	case ErrRegistrationIDExists:
		return core.NewValidationError(ErrRegistrationIDExists,
			core.FieldError{Field: "registration_id", Error: ErrRegistrationIDExists.Error()})
	case ErrCertificateIDExists:
		return core.NewValidationError(ErrCertificateIDExists,
			core.FieldError{Field: "certificate_id", Error: ErrCertificateIDExists.Error()})
	}
	return errors.Wrap(err, "saving student")
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) GetByCertificateID(ctx context.Context, certID string) (Student, error) {
	return svc.repo.GetStudentByCertificateID(ctx, strings.ToUpper(core.CleanString(certID)))
}

// Detail is served stale-while-revalidate: a stale detail is returned at once and refreshed in the background.
func (svc *Service) Detail(ctx context.Context, id string) (Detail, error) {
	return svc.detail.Get(ctx, id, func(ctx context.Context) (Detail, error) {
		return svc.loadDetail(ctx, id)
	})
}

func (svc *Service) loadDetail(ctx context.Context, id string) (Detail, error) {
	s, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	detail := Detail{Student: s}

	if detail.Department, err = svc.academics.GetDepartment(ctx, s.DepartmentID); err != nil {
		return Detail{}, errors.Wrap(err, "getting department")
	}
	if detail.Faculty, err = svc.academics.GetFaculty(ctx, s.FacultyID); err != nil {
		return Detail{}, errors.Wrap(err, "getting faculty")
	}
	if detail.AcademicYear, err = svc.academics.GetAcademicYear(ctx, s.AcademicYearID); err != nil {
		return Detail{}, errors.Wrap(err, "getting academic year")
	}
	if detail.Documents, err = svc.docs.List(ctx, s.ID); err != nil {
		return Detail{}, errors.Wrap(err, "listing documents")
	}
	return detail, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]Student, error) {
	filter.Clean()
	orderings = core.AllowedOrderings(orderings, OrderingFields...)
	if len(orderings) == 0 {
		orderings = defaultOrdering
	}

	key := filter.Key() + "|" + core.OrderingKey(orderings)
	return svc.list.GetOrLoad(ctx, key, func(ctx context.Context) ([]Student, error) {
		students, err := svc.repo.FilterStudents(ctx, filter, orderings)
		if err != nil {
			return nil, errors.Wrap(err, "filtering students")
		}
		if students == nil {
			students = []Student{}
		}
		return students, nil
	})
}

// Identities lists the registration & certificate IDs of every student. Never cached: imports need current data.
func (svc *Service) Identities(ctx context.Context) ([]Identity, error) {
	ids, err := svc.repo.ListIdentities(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing identities")
	}
	return ids, nil
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	orig, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	s := us.apply(orig)

	if s.RegistrationID != orig.RegistrationID || s.CertificateID != orig.CertificateID {
		if err := svc.checkUniqueness(ctx, s.RegistrationID, s.CertificateID, id); err != nil {
			return Student{}, err
		}
	}
	if s.DepartmentID != orig.DepartmentID || s.AcademicYearID != orig.AcademicYearID {
		if s.FacultyID, err = svc.placement(ctx, s.DepartmentID, s.AcademicYearID); err != nil {
			return Student{}, err
		}
	}
	s.UpdatedAt = time.Now().UTC()

	if s, err = svc.repo.UpdateStudent(ctx, s); err != nil {
		return Student{}, svc.checkUniquenessErr(err)
	}

	svc.invalidator.Mutated(cache.EntityStudent, s.ID)
	svc.auditor.Record(ctx, audit.NewEntry{
		Action:   audit.ActionUpdate,
		Entity:   audit.EntityStudent,
		EntityID: s.ID,
		Details:  changes(orig, s),
	})
	return s, nil
}

// Delete removes the students and their documents. Nothing is deleted when one of the IDs is unknown.
func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if _, err := svc.repo.GetStudent(ctx, id); err != nil {
			return err
		}
	}

	var touched []string
	defer func() {
		// documents may be gone even when a later step failed
		svc.invalidator.Mutated(cache.EntityStudent, touched...)
	}()

	for _, id := range ids {
		touched = append(touched, id)
		if err := svc.docs.DeleteForStudent(ctx, id); err != nil {
			return errors.Wrapf(err, "deleting documents of student %s", id)
		}
	}
	deleted, err := svc.repo.DeleteStudents(ctx, ids...)
	if err != nil {
		return err
	}

	for _, id := range deleted {
		svc.auditor.Record(ctx, audit.NewEntry{Action: audit.ActionDelete, Entity: audit.EntityStudent, EntityID: id})
	}
	return nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = core.CleanString(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func changes(before, after Student) map[string]interface{} {
	diff := make(map[string]interface{})
	add := func(field string, b, a interface{}) {
		if b != a {
			diff[field] = map[string]interface{}{"from": b, "to": a}
		}
	}
	add("registration_id", before.RegistrationID, after.RegistrationID)
	add("certificate_id", before.CertificateID, after.CertificateID)
	add("full_name", before.FullName, after.FullName)
	add("department_id", before.DepartmentID, after.DepartmentID)
	add("academic_year_id", before.AcademicYearID, after.AcademicYearID)
	add("gpa", before.GPA, after.GPA)
	add("grade", before.Grade, after.Grade)
	add("status", string(before.Status), string(after.Status))
	return diff
}
