package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/storage/database"
)

type academicRepository struct {
	db *sqlx.DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *sqlx.DB) *academicRepository {
	return &academicRepository{db: db}
}

// mapErr turns postgres constraint violations into domain errors.
func mapErr(err error, exists, inUse error, msg string) error {
	if _, ok := database.UniqueViolation(err); ok && exists != nil {
		return exists
	}
	if database.ForeignKeyViolation(err) && inUse != nil {
		return inUse
	}
	return errors.Wrap(err, msg)
}

func affected(res interface{ RowsAffected() (int64, error) }, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "checking affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Faculties

func (repo *academicRepository) CreateFaculty(ctx context.Context, f academic.Faculty) (academic.Faculty, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO faculties (id, code, name, created_at, updated_at)
		VALUES (:id, :code, :name, :created_at, :updated_at)`, f)
	if err != nil {
		return academic.Faculty{}, mapErr(err, academic.ErrFacultyCodeExists, nil, "inserting faculty")
	}
	return f, nil
}

func (repo *academicRepository) ListFaculties(ctx context.Context) ([]academic.Faculty, error) {
	var faculties []academic.Faculty
	if err := repo.db.SelectContext(ctx, &faculties, `SELECT * FROM faculties ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "selecting faculties")
	}
	return faculties, nil
}

func (repo *academicRepository) GetFaculty(ctx context.Context, id string) (academic.Faculty, error) {
	var f academic.Faculty
	if err := repo.db.GetContext(ctx, &f, `SELECT * FROM faculties WHERE id::text = $1`, id); err != nil {
		return academic.Faculty{}, trapNoRowsErr(err, academic.ErrFacultyNotFound, "getting faculty")
	}
	return f, nil
}

func (repo *academicRepository) UpdateFaculty(ctx context.Context, f academic.Faculty) (academic.Faculty, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE faculties SET code = :code, name = :name, updated_at = :updated_at WHERE id = :id`, f)
	if err != nil {
		return academic.Faculty{}, mapErr(err, academic.ErrFacultyCodeExists, nil, "updating faculty")
	}
	if err = affected(res, academic.ErrFacultyNotFound); err != nil {
		return academic.Faculty{}, err
	}
	return f, nil
}

func (repo *academicRepository) DeleteFaculty(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM faculties WHERE id::text = $1`, id)
	if err != nil {
		return mapErr(err, nil, academic.ErrFacultyInUse, "deleting faculty")
	}
	return affected(res, academic.ErrFacultyNotFound)
}

// Departments

func (repo *academicRepository) CreateDepartment(ctx context.Context, d academic.Department) (academic.Department, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO departments (id, faculty_id, code, name, created_at, updated_at)
		VALUES (:id, :faculty_id, :code, :name, :created_at, :updated_at)`, d)
	if err != nil {
		return academic.Department{}, mapErr(err, academic.ErrDepartmentCodeExists, nil, "inserting department")
	}
	return d, nil
}

func (repo *academicRepository) ListDepartments(ctx context.Context, facultyID string) ([]academic.Department, error) {
	var (
		depts []academic.Department
		err   error
	)
	if facultyID == "" {
		err = repo.db.SelectContext(ctx, &depts, `SELECT * FROM departments ORDER BY name`)
	} else {
		err = repo.db.SelectContext(ctx, &depts, `SELECT * FROM departments WHERE faculty_id::text = $1 ORDER BY name`, facultyID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "selecting departments")
	}
	return depts, nil
}

func (repo *academicRepository) GetDepartment(ctx context.Context, id string) (academic.Department, error) {
	var d academic.Department
	if err := repo.db.GetContext(ctx, &d, `SELECT * FROM departments WHERE id::text = $1`, id); err != nil {
		return academic.Department{}, trapNoRowsErr(err, academic.ErrDepartmentNotFound, "getting department")
	}
	return d, nil
}

func (repo *academicRepository) UpdateDepartment(ctx context.Context, d academic.Department) (academic.Department, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE departments
		SET faculty_id = :faculty_id, code = :code, name = :name, updated_at = :updated_at
		WHERE id = :id`, d)
	if err != nil {
		return academic.Department{}, mapErr(err, academic.ErrDepartmentCodeExists, nil, "updating department")
	}
	if err = affected(res, academic.ErrDepartmentNotFound); err != nil {
		return academic.Department{}, err
	}
	// keep the denormalized faculty of students in sync
	if _, err = repo.db.ExecContext(ctx,
		`UPDATE students SET faculty_id = $1 WHERE department_id = $2 AND faculty_id <> $1`, d.FacultyID, d.ID); err != nil {
		return academic.Department{}, errors.Wrap(err, "updating students faculty")
	}
	return d, nil
}

func (repo *academicRepository) DeleteDepartment(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM departments WHERE id::text = $1`, id)
	if err != nil {
		return mapErr(err, nil, academic.ErrDepartmentInUse, "deleting department")
	}
	return affected(res, academic.ErrDepartmentNotFound)
}

// Academic years

func (repo *academicRepository) saveYear(ctx context.Context, y academic.AcademicYear, query string) (academic.AcademicYear, error) {
	err := inTx(repo.db, func(tx *sqlx.Tx) error {
		if y.IsCurrent {
			if _, err := tx.ExecContext(ctx, `UPDATE academic_years SET is_current = false WHERE is_current AND id <> $1`, y.ID); err != nil {
				return errors.Wrap(err, "clearing current academic year")
			}
		}
		res, err := tx.NamedExecContext(ctx, query, y)
		if err != nil {
			return mapErr(err, academic.ErrYearLabelExists, nil, "saving academic year")
		}
		return affected(res, academic.ErrAcademicYearNotFound)
	})
	if err != nil {
		return academic.AcademicYear{}, err
	}
	return y, nil
}

func (repo *academicRepository) CreateAcademicYear(ctx context.Context, y academic.AcademicYear) (academic.AcademicYear, error) {
	return repo.saveYear(ctx, y, `
		INSERT INTO academic_years (id, label, start_year, end_year, is_current, created_at, updated_at)
		VALUES (:id, :label, :start_year, :end_year, :is_current, :created_at, :updated_at)`)
}

func (repo *academicRepository) ListAcademicYears(ctx context.Context) ([]academic.AcademicYear, error) {
	var years []academic.AcademicYear
	if err := repo.db.SelectContext(ctx, &years, `SELECT * FROM academic_years ORDER BY start_year DESC`); err != nil {
		return nil, errors.Wrap(err, "selecting academic years")
	}
	return years, nil
}

func (repo *academicRepository) GetAcademicYear(ctx context.Context, id string) (academic.AcademicYear, error) {
	var y academic.AcademicYear
	if err := repo.db.GetContext(ctx, &y, `SELECT * FROM academic_years WHERE id::text = $1`, id); err != nil {
		return academic.AcademicYear{}, trapNoRowsErr(err, academic.ErrAcademicYearNotFound, "getting academic year")
	}
	return y, nil
}

func (repo *academicRepository) UpdateAcademicYear(ctx context.Context, y academic.AcademicYear) (academic.AcademicYear, error) {
	return repo.saveYear(ctx, y, `
		UPDATE academic_years
		SET label = :label, start_year = :start_year, end_year = :end_year, is_current = :is_current, updated_at = :updated_at
		WHERE id = :id`)
}

func (repo *academicRepository) DeleteAcademicYear(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM academic_years WHERE id::text = $1`, id)
	if err != nil {
		return mapErr(err, nil, academic.ErrAcademicYearInUse, "deleting academic year")
	}
	return affected(res, academic.ErrAcademicYearNotFound)
}
