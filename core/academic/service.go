package academic

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/audit"
	"github.com/trezcool/registrar/core/cache"
)

var (
	// errors
	ErrFacultyNotFound      = core.NewNotFoundError("faculty not found")
	ErrDepartmentNotFound   = core.NewNotFoundError("department not found")
	ErrAcademicYearNotFound = core.NewNotFoundError("academic year not found")
	ErrNoCurrentYear        = core.NewNotFoundError("no current academic year")

	ErrFacultyCodeExists    = errors.New("a faculty with this code already exists")
	ErrDepartmentCodeExists = errors.New("a department with this code already exists")
	ErrYearLabelExists      = errors.New("an academic year with this label already exists")

	ErrFacultyInUse      = core.NewConflictError("faculty still has departments")
	ErrDepartmentInUse   = core.NewConflictError("department still has students")
	ErrAcademicYearInUse = core.NewConflictError("academic year still has students")
)

const allKey = "all"

type (
	// Repository returns the Err*Exists errors on unique violations and the Err*InUse errors when
	// deleting a referenced row.
	Repository interface {
		CreateFaculty(ctx context.Context, f Faculty) (Faculty, error)
		ListFaculties(ctx context.Context) ([]Faculty, error)
		GetFaculty(ctx context.Context, id string) (Faculty, error)
		UpdateFaculty(ctx context.Context, f Faculty) (Faculty, error)
		DeleteFaculty(ctx context.Context, id string) error

		CreateDepartment(ctx context.Context, d Department) (Department, error)
		// ListDepartments lists all departments, or only those of facultyID when given.
		ListDepartments(ctx context.Context, facultyID string) ([]Department, error)
		GetDepartment(ctx context.Context, id string) (Department, error)
		UpdateDepartment(ctx context.Context, d Department) (Department, error)
		DeleteDepartment(ctx context.Context, id string) error

		// CreateAcademicYear and UpdateAcademicYear clear the current flag of every other year
		// when y.IsCurrent is set.
		CreateAcademicYear(ctx context.Context, y AcademicYear) (AcademicYear, error)
		ListAcademicYears(ctx context.Context) ([]AcademicYear, error)
		GetAcademicYear(ctx context.Context, id string) (AcademicYear, error)
		UpdateAcademicYear(ctx context.Context, y AcademicYear) (AcademicYear, error)
		DeleteAcademicYear(ctx context.Context, id string) error
	}

	Service struct {
		repo        Repository
		faculties   *cache.Namespace[[]Faculty]
		departments *cache.Namespace[[]Department]
		years       *cache.Namespace[[]AcademicYear]
		invalidator *cache.Invalidator
		auditor     audit.Recorder
	}
)

func NewService(repo Repository, reg *cache.Registry, ttl time.Duration, inv *cache.Invalidator, auditor audit.Recorder) *Service {
	return &Service{
		repo:        repo,
		faculties:   cache.NewNamespace[[]Faculty](reg, cache.Faculties, ttl),
		departments: cache.NewNamespace[[]Department](reg, cache.Departments, ttl),
		years:       cache.NewNamespace[[]AcademicYear](reg, cache.AcademicYears, ttl),
		invalidator: inv,
		auditor:     auditor,
	}
}

func uniquenessError(err error) error {
	var field string
	switch errors.Cause(err) {
	case ErrFacultyCodeExists, ErrDepartmentCodeExists:
		field = "code"
	case ErrYearLabelExists:
		field = "label"
	default:
		return err
	}
	cause := errors.Cause(err)
	return core.NewValidationError(cause, core.FieldError{Field: field, Error: cause.Error()})
}

func (svc *Service) mutated(ctx context.Context, entity cache.Entity, action, auditEntity, id string) {
	svc.invalidator.Mutated(entity, id)
	svc.auditor.Record(ctx, audit.NewEntry{Action: action, Entity: auditEntity, EntityID: id})
}

// Faculties

func (svc *Service) ListFaculties(ctx context.Context) ([]Faculty, error) {
	return svc.faculties.GetOrLoad(ctx, allKey, func(ctx context.Context) ([]Faculty, error) {
		faculties, err := svc.repo.ListFaculties(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "listing faculties")
		}
		if faculties == nil {
			faculties = []Faculty{}
		}
		return faculties, nil
	})
}

func (svc *Service) GetFaculty(ctx context.Context, id string) (Faculty, error) {
	return svc.repo.GetFaculty(ctx, id)
}

func (svc *Service) CreateFaculty(ctx context.Context, in FacultyInput) (Faculty, error) {
	now := time.Now().UTC()
	f, err := svc.repo.CreateFaculty(ctx, Faculty{
		ID:        uuid.NewString(),
		Code:      in.Code,
		Name:      in.Name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Faculty{}, uniquenessError(err)
	}
	svc.mutated(ctx, cache.EntityFaculty, audit.ActionCreate, audit.EntityFaculty, f.ID)
	return f, nil
}

func (svc *Service) UpdateFaculty(ctx context.Context, id string, in FacultyInput) (Faculty, error) {
	orig, err := svc.repo.GetFaculty(ctx, id)
	if err != nil {
		return Faculty{}, err
	}
	orig.Code = in.Code
	orig.Name = in.Name
	orig.UpdatedAt = time.Now().UTC()

	f, err := svc.repo.UpdateFaculty(ctx, orig)
	if err != nil {
		return Faculty{}, uniquenessError(err)
	}
	svc.mutated(ctx, cache.EntityFaculty, audit.ActionUpdate, audit.EntityFaculty, f.ID)
	return f, nil
}

func (svc *Service) DeleteFaculty(ctx context.Context, id string) error {
	if err := svc.repo.DeleteFaculty(ctx, id); err != nil {
		return err
	}
	svc.mutated(ctx, cache.EntityFaculty, audit.ActionDelete, audit.EntityFaculty, id)
	return nil
}

// Departments

// ListDepartments lists every department, or those of facultyID when it is not empty.
func (svc *Service) ListDepartments(ctx context.Context, facultyID string) ([]Department, error) {
	key := allKey
	if facultyID != "" {
		key = "faculty:" + facultyID
	}
	return svc.departments.GetOrLoad(ctx, key, func(ctx context.Context) ([]Department, error) {
		depts, err := svc.repo.ListDepartments(ctx, facultyID)
		if err != nil {
			return nil, errors.Wrap(err, "listing departments")
		}
		if depts == nil {
			depts = []Department{}
		}
		return depts, nil
	})
}

func (svc *Service) GetDepartment(ctx context.Context, id string) (Department, error) {
	return svc.repo.GetDepartment(ctx, id)
}

func (svc *Service) checkFaculty(ctx context.Context, facultyID string) error {
	if _, err := svc.repo.GetFaculty(ctx, facultyID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "faculty_id", Error: err.Error()})
		}
		return errors.Wrap(err, "getting faculty")
	}
	return nil
}

func (svc *Service) CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error) {
	if err := svc.checkFaculty(ctx, in.FacultyID); err != nil {
		return Department{}, err
	}
	now := time.Now().UTC()
	d, err := svc.repo.CreateDepartment(ctx, Department{
		ID:        uuid.NewString(),
		FacultyID: in.FacultyID,
		Code:      in.Code,
		Name:      in.Name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Department{}, uniquenessError(err)
	}
	svc.mutated(ctx, cache.EntityDepartment, audit.ActionCreate, audit.EntityDepartment, d.ID)
	return d, nil
}

func (svc *Service) UpdateDepartment(ctx context.Context, id string, in DepartmentInput) (Department, error) {
	orig, err := svc.repo.GetDepartment(ctx, id)
	if err != nil {
		return Department{}, err
	}
	if err := svc.checkFaculty(ctx, in.FacultyID); err != nil {
		return Department{}, err
	}
	orig.FacultyID = in.FacultyID
	orig.Code = in.Code
	orig.Name = in.Name
	orig.UpdatedAt = time.Now().UTC()

	d, err := svc.repo.UpdateDepartment(ctx, orig)
	if err != nil {
		return Department{}, uniquenessError(err)
	}
	svc.mutated(ctx, cache.EntityDepartment, audit.ActionUpdate, audit.EntityDepartment, d.ID)
	return d, nil
}

func (svc *Service) DeleteDepartment(ctx context.Context, id string) error {
	if err := svc.repo.DeleteDepartment(ctx, id); err != nil {
		return err
	}
	svc.mutated(ctx, cache.EntityDepartment, audit.ActionDelete, audit.EntityDepartment, id)
	return nil
}

// Academic years

func (svc *Service) ListAcademicYears(ctx context.Context) ([]AcademicYear, error) {
	return svc.years.GetOrLoad(ctx, allKey, func(ctx context.Context) ([]AcademicYear, error) {
		years, err := svc.repo.ListAcademicYears(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "listing academic years")
		}
		if years == nil {
			years = []AcademicYear{}
		}
		return years, nil
	})
}

func (svc *Service) GetAcademicYear(ctx context.Context, id string) (AcademicYear, error) {
	return svc.repo.GetAcademicYear(ctx, id)
}

func (svc *Service) CurrentAcademicYear(ctx context.Context) (AcademicYear, error) {
	years, err := svc.ListAcademicYears(ctx)
	if err != nil {
		return AcademicYear{}, err
	}
	for _, y := range years {
		if y.IsCurrent {
			return y, nil
		}
	}
	return AcademicYear{}, ErrNoCurrentYear
}

func (svc *Service) CreateAcademicYear(ctx context.Context, in AcademicYearInput) (AcademicYear, error) {
	now := time.Now().UTC()
	y, err := svc.repo.CreateAcademicYear(ctx, AcademicYear{
		ID:        uuid.NewString(),
		Label:     in.Label,
		StartYear: in.StartYear,
		EndYear:   in.EndYear,
		IsCurrent: in.IsCurrent,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return AcademicYear{}, uniquenessError(err)
	}
	svc.mutated(ctx, cache.EntityAcademicYear, audit.ActionCreate, audit.EntityAcademicYear, y.ID)
	return y, nil
}

func (svc *Service) UpdateAcademicYear(ctx context.Context, id string, in AcademicYearInput) (AcademicYear, error) {
	orig, err := svc.repo.GetAcademicYear(ctx, id)
	if err != nil {
		return AcademicYear{}, err
	}
	orig.Label = in.Label
	orig.StartYear = in.StartYear
	orig.EndYear = in.EndYear
	orig.IsCurrent = in.IsCurrent
	orig.UpdatedAt = time.Now().UTC()

	y, err := svc.repo.UpdateAcademicYear(ctx, orig)
	if err != nil {
		return AcademicYear{}, uniquenessError(err)
	}
	svc.mutated(ctx, cache.EntityAcademicYear, audit.ActionUpdate, audit.EntityAcademicYear, y.ID)
	return y, nil
}

func (svc *Service) DeleteAcademicYear(ctx context.Context, id string) error {
	if err := svc.repo.DeleteAcademicYear(ctx, id); err != nil {
		return err
	}
	svc.mutated(ctx, cache.EntityAcademicYear, audit.ActionDelete, audit.EntityAcademicYear, id)
	return nil
}
