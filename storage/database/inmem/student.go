package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/student"
)

type studentRepository struct {
	db *DB
}

var (
	_ student.Repository       = (*studentRepository)(nil) // interface compliance check
	_ document.StudentResolver = (*studentRepository)(nil)
)

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) checkUniqueness(registrationID, certificateID, excludedID string) error {
	for _, s := range repo.db.students {
		if s.ID == excludedID {
			continue
		}
		if s.RegistrationID == registrationID {
			return student.ErrRegistrationIDExists
		}
		if certificateID != "" && s.CertificateID == certificateID {
			return student.ErrCertificateIDExists
		}
	}
	return nil
}

// checkReferences plays the part of the foreign keys.
func (repo *studentRepository) checkReferences(s student.Student) error {
	if _, ok := repo.db.departments[s.DepartmentID]; !ok {
		return core.NewNotFoundError("department not found")
	}
	if _, ok := repo.db.faculties[s.FacultyID]; !ok {
		return core.NewNotFoundError("faculty not found")
	}
	if _, ok := repo.db.academicYears[s.AcademicYearID]; !ok {
		return core.NewNotFoundError("academic year not found")
	}
	return nil
}

func (repo *studentRepository) CheckUniqueness(_ context.Context, registrationID, certificateID, excludedID string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.checkUniqueness(registrationID, certificateID, excludedID)
}

func (repo *studentRepository) CreateStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkUniqueness(s.RegistrationID, s.CertificateID, ""); err != nil {
		return student.Student{}, err
	}
	if err := repo.checkReferences(s); err != nil {
		return student.Student{}, err
	}
	repo.db.students[s.ID] = &s
	return s, nil
}

func (repo *studentRepository) find(match func(s *student.Student) bool) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.students {
		if match(s) {
			return *s, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudent(_ context.Context, id string) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return *s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByRegistrationID(_ context.Context, registrationID string) (student.Student, error) {
	return repo.find(func(s *student.Student) bool { return s.RegistrationID == registrationID })
}

func (repo *studentRepository) GetStudentByCertificateID(_ context.Context, certificateID string) (student.Student, error) {
	if certificateID == "" {
		return student.Student{}, student.ErrNotFound
	}
	return repo.find(func(s *student.Student) bool { return s.CertificateID == certificateID })
}

func (repo *studentRepository) StudentIDByRegistrationID(ctx context.Context, registrationID string) (string, error) {
	s, err := repo.GetStudentByRegistrationID(ctx, registrationID)
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

func (repo *studentRepository) FilterStudents(
	_ context.Context,
	filter student.QueryFilter,
	orderings []core.DBOrdering,
) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]student.Student, 0)
	for _, s := range repo.db.students {
		if filter.Matches(*s) {
			students = append(students, *s)
		}
	}
	sortStudents(students, orderings)
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[s.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	if err := repo.checkUniqueness(s.RegistrationID, s.CertificateID, s.ID); err != nil {
		return student.Student{}, err
	}
	if err := repo.checkReferences(s); err != nil {
		return student.Student{}, err
	}
	repo.db.students[s.ID] = &s
	return s, nil
}

func (repo *studentRepository) DeleteStudents(_ context.Context, ids ...string) ([]string, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var deleted []string
	for _, id := range ids {
		if _, ok := repo.db.students[id]; !ok {
			continue
		}
		delete(repo.db.students, id)
		deleted = append(deleted, id)
		// cascade
		for docID, doc := range repo.db.documents {
			if doc.StudentID == id {
				delete(repo.db.documents, docID)
			}
		}
	}
	return deleted, nil
}

func (repo *studentRepository) ListIdentities(context.Context) ([]student.Identity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	identities := make([]student.Identity, 0, len(repo.db.students))
	for _, s := range repo.db.students {
		identities = append(identities, student.Identity{
			ID:             s.ID,
			RegistrationID: s.RegistrationID,
			CertificateID:  s.CertificateID,
		})
	}
	return identities, nil
}

// compareStudents compares a and b on field; unknown fields compare equal.
func compareStudents(a, b student.Student, field string) int {
	switch field {
	case "registration_id":
		return strings.Compare(a.RegistrationID, b.RegistrationID)
	case "full_name":
		return strings.Compare(strings.ToLower(a.FullName), strings.ToLower(b.FullName))
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "gpa":
		switch {
		case a.GPA < b.GPA:
			return -1
		case a.GPA > b.GPA:
			return 1
		}
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}

func sortStudents(students []student.Student, orderings []core.DBOrdering) {
	sort.SliceStable(students, func(i, j int) bool {
		for _, ord := range orderings {
			c := compareStudents(students[i], students[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		// deterministic fallback
		return students[i].ID < students[j].ID
	})
}
