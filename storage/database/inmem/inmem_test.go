package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/core/audit"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/student"
)

type fixture struct {
	db        *DB
	academics academic.Repository
	students  *studentRepository
	docs      document.Repository
	faculty   academic.Faculty
	dept      academic.Department
	year      academic.AcademicYear
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	db := Open()
	fx := fixture{
		db:        db,
		academics: NewAcademicRepository(db),
		students:  NewStudentRepository(db),
		docs:      NewDocumentRepository(db),
	}

	var err error
	fx.faculty, err = fx.academics.CreateFaculty(ctx, academic.Faculty{ID: "f1", Code: "SCI", Name: "Science"})
	require.NoError(t, err)
	fx.dept, err = fx.academics.CreateDepartment(ctx, academic.Department{ID: "d1", FacultyID: "f1", Code: "CS", Name: "Computer Science"})
	require.NoError(t, err)
	fx.year, err = fx.academics.CreateAcademicYear(ctx, academic.AcademicYear{ID: "y1", Label: "2023-2024", StartYear: 2023, EndYear: 2024, IsCurrent: true})
	require.NoError(t, err)
	return fx
}

func (fx fixture) student(t *testing.T, id, regID, certID, name string, gpa float64, created time.Time) student.Student {
	t.Helper()
	s, err := fx.students.CreateStudent(context.Background(), student.Student{
		ID:             id,
		RegistrationID: regID,
		CertificateID:  certID,
		FullName:       name,
		DepartmentID:   fx.dept.ID,
		FacultyID:      fx.faculty.ID,
		AcademicYearID: fx.year.ID,
		GPA:            gpa,
		Status:         student.StatusActive,
		CreatedAt:      created,
		UpdatedAt:      created,
	})
	require.NoError(t, err)
	return s
}

func TestAcademicRepository_uniqueCodes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.academics.CreateFaculty(ctx, academic.Faculty{ID: "f2", Code: "SCI", Name: "Other"})
	assert.Equal(t, academic.ErrFacultyCodeExists, err)

	_, err = fx.academics.CreateDepartment(ctx, academic.Department{ID: "d2", FacultyID: "f1", Code: "CS", Name: "Other"})
	assert.Equal(t, academic.ErrDepartmentCodeExists, err)

	_, err = fx.academics.CreateDepartment(ctx, academic.Department{ID: "d3", FacultyID: "nope", Code: "XX", Name: "Orphan"})
	assert.Equal(t, academic.ErrFacultyNotFound, err)

	_, err = fx.academics.CreateAcademicYear(ctx, academic.AcademicYear{ID: "y2", Label: "2023-2024", StartYear: 2023, EndYear: 2024})
	assert.Equal(t, academic.ErrYearLabelExists, err)
}

func TestAcademicRepository_singleCurrentYear(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.academics.CreateAcademicYear(ctx, academic.AcademicYear{ID: "y2", Label: "2024-2025", StartYear: 2024, EndYear: 2025, IsCurrent: true})
	require.NoError(t, err)

	years, err := fx.academics.ListAcademicYears(ctx)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, "y2", years[0].ID, "newest first")
	assert.True(t, years[0].IsCurrent)
	assert.False(t, years[1].IsCurrent)
}

func TestAcademicRepository_deleteInUse(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.student(t, "s1", "GRW-CS-2023", "", "Ada", 3, time.Now())

	assert.Equal(t, academic.ErrFacultyInUse, fx.academics.DeleteFaculty(ctx, fx.faculty.ID))
	assert.Equal(t, academic.ErrDepartmentInUse, fx.academics.DeleteDepartment(ctx, fx.dept.ID))
	assert.Equal(t, academic.ErrAcademicYearInUse, fx.academics.DeleteAcademicYear(ctx, fx.year.ID))

	_, err := fx.students.DeleteStudents(ctx, "s1")
	require.NoError(t, err)
	assert.NoError(t, fx.academics.DeleteDepartment(ctx, fx.dept.ID))
	assert.NoError(t, fx.academics.DeleteFaculty(ctx, fx.faculty.ID))
	assert.Equal(t, academic.ErrFacultyNotFound, fx.academics.DeleteFaculty(ctx, fx.faculty.ID))
}

func TestAcademicRepository_moveDepartment(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.student(t, "s1", "GRW-CS-2023", "", "Ada", 3, time.Now())

	_, err := fx.academics.CreateFaculty(ctx, academic.Faculty{ID: "f2", Code: "ENG", Name: "Engineering"})
	require.NoError(t, err)
	dept := fx.dept
	dept.FacultyID = "f2"
	_, err = fx.academics.UpdateDepartment(ctx, dept)
	require.NoError(t, err)

	s, err := fx.students.GetStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "f2", s.FacultyID)
}

func TestStudentRepository_uniqueness(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.student(t, "s1", "GRW-CS-2023", "CERT1", "Ada", 3, time.Now())

	tests := []struct {
		name          string
		regID, certID string
		excludedID    string
		wantErr       error
	}{
		{"free", "GRW-CS-2024", "CERT2", "", nil},
		{"registration id taken", "GRW-CS-2023", "", "", student.ErrRegistrationIDExists},
		{"certificate id taken", "GRW-CS-2024", "CERT1", "", student.ErrCertificateIDExists},
		{"self excluded", "GRW-CS-2023", "CERT1", "s1", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := fx.students.CheckUniqueness(ctx, tc.regID, tc.certID, tc.excludedID)
			assert.Equal(t, tc.wantErr, err)
		})
	}

	_, err := fx.students.GetStudentByCertificateID(ctx, "")
	assert.Equal(t, student.ErrNotFound, err)
}

func TestStudentRepository_references(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.students.CreateStudent(context.Background(), student.Student{
		ID:             "s1",
		RegistrationID: "GRW-CS-2023",
		DepartmentID:   "nope",
		FacultyID:      fx.faculty.ID,
		AcademicYearID: fx.year.ID,
	})
	assert.True(t, core.IsNotFound(err))
}

func TestStudentRepository_FilterStudents(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	now := time.Now()
	fx.student(t, "s1", "GRW-CS-2021", "", "Zoe", 2.5, now.Add(-2*time.Hour))
	fx.student(t, "s2", "GRW-CS-2022", "", "ada", 3.5, now.Add(-time.Hour))
	fx.student(t, "s3", "GRW-CS-2023", "", "Bob", 3.5, now)

	ids := func(students []student.Student) []string {
		res := make([]string, 0, len(students))
		for _, s := range students {
			res = append(res, s.ID)
		}
		return res
	}

	got, err := fx.students.FilterStudents(ctx, student.QueryFilter{}, []core.DBOrdering{{Field: "created_at"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"s3", "s2", "s1"}, ids(got))

	got, err = fx.students.FilterStudents(ctx, student.QueryFilter{}, []core.DBOrdering{
		{Field: "gpa"},
		{Field: "full_name", Ascending: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s3", "s1"}, ids(got))

	got, err = fx.students.FilterStudents(ctx, student.QueryFilter{Search: "ZO"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids(got))
}

func TestStudentRepository_DeleteStudentsCascades(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.student(t, "s1", "GRW-CS-2023", "", "Ada", 3, time.Now())

	_, err := fx.docs.CreateDocument(ctx, document.Document{ID: "doc1", StudentID: "s1", Type: document.TypePhoto})
	require.NoError(t, err)
	_, err = fx.docs.CreateDocument(ctx, document.Document{ID: "doc2", StudentID: "nope", Type: document.TypePhoto})
	assert.Equal(t, document.ErrStudentNotFound, err)

	deleted, err := fx.students.DeleteStudents(ctx, "s1", "nope")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, deleted)
	_, err = fx.docs.GetDocument(ctx, "doc1")
	assert.Equal(t, document.ErrNotFound, err)

	id, err := fx.students.StudentIDByRegistrationID(ctx, "GRW-CS-2023")
	assert.Empty(t, id)
	assert.Equal(t, student.ErrNotFound, err)
}

func TestAuditRepository_QueryEntries(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository(Open())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, action := range []string{audit.ActionCreate, audit.ActionUpdate, audit.ActionDelete, audit.ActionUpdate} {
		_, err := repo.CreateEntry(ctx, audit.Entry{
			ID:        string(rune('a' + i)),
			Actor:     "registrar",
			Action:    action,
			Entity:    audit.EntityStudent,
			EntityID:  "s1",
			CreatedAt: start.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	entries, err := repo.QueryEntries(ctx, audit.QueryFilter{Action: audit.ActionUpdate})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "d", entries[0].ID, "newest first")

	entries, err = repo.QueryEntries(ctx, audit.QueryFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "d", entries[0].ID)

	entries, err = repo.QueryEntries(ctx, audit.QueryFilter{From: start.Add(time.Minute), To: start.Add(2 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
