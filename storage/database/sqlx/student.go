package sqlxrepos

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/student"
	"github.com/trezcool/registrar/storage/database"
)

const studentColumns = `
	id, registration_id, COALESCE(certificate_id, '') AS certificate_id, full_name,
	department_id, faculty_id, academic_year_id, gpa, grade, status, created_at, updated_at`

type studentRepository struct {
	db *sqlx.DB
}

var (
	_ student.Repository       = (*studentRepository)(nil) // interface compliance check
	_ document.StudentResolver = (*studentRepository)(nil)
)

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func studentWriteErr(err error, msg string) error {
	if constraint, ok := database.UniqueViolation(err); ok {
		if strings.Contains(constraint, "certificate_id") {
			return student.ErrCertificateIDExists
		}
		return student.ErrRegistrationIDExists
	}
	return errors.Wrap(err, msg)
}

func (repo *studentRepository) CheckUniqueness(ctx context.Context, registrationID, certificateID, excludedID string) error {
	var identities []student.Identity
	err := repo.db.SelectContext(ctx, &identities, `
		SELECT id, registration_id, COALESCE(certificate_id, '') AS certificate_id
		FROM students
		WHERE id::text <> $1 AND (registration_id = $2 OR ($3 <> '' AND certificate_id = $3))`,
		excludedID, registrationID, certificateID)
	if err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	for _, ident := range identities {
		if ident.RegistrationID == registrationID {
			return student.ErrRegistrationIDExists
		}
	}
	if len(identities) > 0 {
		return student.ErrCertificateIDExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO students (
			id, registration_id, certificate_id, full_name, department_id, faculty_id,
			academic_year_id, gpa, grade, status, created_at, updated_at
		) VALUES (
			:id, :registration_id, NULLIF(:certificate_id, ''), :full_name, :department_id, :faculty_id,
			:academic_year_id, :gpa, :grade, :status, :created_at, :updated_at
		)`, s)
	if err != nil {
		return student.Student{}, studentWriteErr(err, "inserting student")
	}
	return s, nil
}

func (repo *studentRepository) getBy(ctx context.Context, column, value string) (student.Student, error) {
	var s student.Student
	query := `SELECT ` + studentColumns + ` FROM students WHERE ` + column + ` = $1`
	if err := repo.db.GetContext(ctx, &s, query, value); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "getting student")
	}
	return s, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	return repo.getBy(ctx, "id::text", id)
}

func (repo *studentRepository) GetStudentByRegistrationID(ctx context.Context, registrationID string) (student.Student, error) {
	return repo.getBy(ctx, "registration_id", registrationID)
}

func (repo *studentRepository) GetStudentByCertificateID(ctx context.Context, certificateID string) (student.Student, error) {
	return repo.getBy(ctx, "certificate_id", certificateID)
}

func (repo *studentRepository) StudentIDByRegistrationID(ctx context.Context, registrationID string) (string, error) {
	var id string
	err := repo.db.GetContext(ctx, &id, `SELECT id FROM students WHERE registration_id = $1`, registrationID)
	if err != nil {
		return "", trapNoRowsErr(err, student.ErrNotFound, "getting student id")
	}
	return id, nil
}

func (repo *studentRepository) FilterStudents(
	ctx context.Context,
	filter student.QueryFilter,
	orderings []core.DBOrdering,
) ([]student.Student, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Search != "" {
		p := arg("%" + strings.ToLower(filter.Search) + "%")
		conds = append(conds, "(lower(registration_id) LIKE "+p+
			" OR lower(COALESCE(certificate_id, '')) LIKE "+p+" OR lower(full_name) LIKE "+p+")")
	}
	if filter.DepartmentID != "" {
		conds = append(conds, "department_id::text = "+arg(filter.DepartmentID))
	}
	if filter.FacultyID != "" {
		conds = append(conds, "faculty_id::text = "+arg(filter.FacultyID))
	}
	if filter.AcademicYearID != "" {
		conds = append(conds, "academic_year_id::text = "+arg(filter.AcademicYearID))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}

	query := `SELECT ` + studentColumns + ` FROM students`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	// orderings are whitelisted by the service
	orderings = core.AllowedOrderings(orderings, student.OrderingFields...)
	if len(orderings) > 0 {
		parts := make([]string, 0, len(orderings))
		for _, ord := range orderings {
			parts = append(parts, ord.String())
		}
		query += " ORDER BY " + strings.Join(parts, ", ")
	}

	students := make([]student.Student, 0)
	if err := repo.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	return students, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE students SET
			registration_id = :registration_id, certificate_id = NULLIF(:certificate_id, ''),
			full_name = :full_name, department_id = :department_id, faculty_id = :faculty_id,
			academic_year_id = :academic_year_id, gpa = :gpa, grade = :grade, status = :status,
			updated_at = :updated_at
		WHERE id = :id`, s)
	if err != nil {
		return student.Student{}, studentWriteErr(err, "updating student")
	}
	if err = affected(res, student.ErrNotFound); err != nil {
		return student.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) DeleteStudents(ctx context.Context, ids ...string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var deleted []string
	err := repo.db.SelectContext(ctx, &deleted, `DELETE FROM students WHERE id::text = ANY($1) RETURNING id::text`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "deleting students")
	}
	return deleted, nil
}

func (repo *studentRepository) ListIdentities(ctx context.Context) ([]student.Identity, error) {
	var identities []student.Identity
	err := repo.db.SelectContext(ctx, &identities, `
		SELECT id, registration_id, COALESCE(certificate_id, '') AS certificate_id FROM students`)
	if err != nil {
		return nil, errors.Wrap(err, "listing student identities")
	}
	return identities, nil
}
