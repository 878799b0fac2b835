package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/registrar/core/academic"
)

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *DB) academic.Repository {
	return &academicRepository{db: db}
}

// Faculties

func (repo *academicRepository) facultyCodeTaken(code, excludedID string) bool {
	for _, f := range repo.db.faculties {
		if f.Code == code && f.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *academicRepository) CreateFaculty(_ context.Context, f academic.Faculty) (academic.Faculty, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.facultyCodeTaken(f.Code, "") {
		return academic.Faculty{}, academic.ErrFacultyCodeExists
	}
	repo.db.faculties[f.ID] = &f
	return f, nil
}

func (repo *academicRepository) ListFaculties(context.Context) ([]academic.Faculty, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	faculties := make([]academic.Faculty, 0, len(repo.db.faculties))
	for _, f := range repo.db.faculties {
		faculties = append(faculties, *f)
	}
	sort.Slice(faculties, func(i, j int) bool { return faculties[i].Name < faculties[j].Name })
	return faculties, nil
}

func (repo *academicRepository) GetFaculty(_ context.Context, id string) (academic.Faculty, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if f, ok := repo.db.faculties[id]; ok {
		return *f, nil
	}
	return academic.Faculty{}, academic.ErrFacultyNotFound
}

func (repo *academicRepository) UpdateFaculty(_ context.Context, f academic.Faculty) (academic.Faculty, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.faculties[f.ID]; !ok {
		return academic.Faculty{}, academic.ErrFacultyNotFound
	}
	if repo.facultyCodeTaken(f.Code, f.ID) {
		return academic.Faculty{}, academic.ErrFacultyCodeExists
	}
	repo.db.faculties[f.ID] = &f
	return f, nil
}

func (repo *academicRepository) DeleteFaculty(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.faculties[id]; !ok {
		return academic.ErrFacultyNotFound
	}
	for _, d := range repo.db.departments {
		if d.FacultyID == id {
			return academic.ErrFacultyInUse
		}
	}
	for _, s := range repo.db.students {
		if s.FacultyID == id {
			return academic.ErrFacultyInUse
		}
	}
	delete(repo.db.faculties, id)
	return nil
}

// Departments

func (repo *academicRepository) departmentCodeTaken(code, excludedID string) bool {
	for _, d := range repo.db.departments {
		if d.Code == code && d.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *academicRepository) CreateDepartment(_ context.Context, d academic.Department) (academic.Department, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.faculties[d.FacultyID]; !ok {
		return academic.Department{}, academic.ErrFacultyNotFound
	}
	if repo.departmentCodeTaken(d.Code, "") {
		return academic.Department{}, academic.ErrDepartmentCodeExists
	}
	repo.db.departments[d.ID] = &d
	return d, nil
}

func (repo *academicRepository) ListDepartments(_ context.Context, facultyID string) ([]academic.Department, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	depts := make([]academic.Department, 0, len(repo.db.departments))
	for _, d := range repo.db.departments {
		if facultyID == "" || d.FacultyID == facultyID {
			depts = append(depts, *d)
		}
	}
	sort.Slice(depts, func(i, j int) bool { return depts[i].Name < depts[j].Name })
	return depts, nil
}

func (repo *academicRepository) GetDepartment(_ context.Context, id string) (academic.Department, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if d, ok := repo.db.departments[id]; ok {
		return *d, nil
	}
	return academic.Department{}, academic.ErrDepartmentNotFound
}

func (repo *academicRepository) UpdateDepartment(_ context.Context, d academic.Department) (academic.Department, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.departments[d.ID]; !ok {
		return academic.Department{}, academic.ErrDepartmentNotFound
	}
	if _, ok := repo.db.faculties[d.FacultyID]; !ok {
		return academic.Department{}, academic.ErrFacultyNotFound
	}
	if repo.departmentCodeTaken(d.Code, d.ID) {
		return academic.Department{}, academic.ErrDepartmentCodeExists
	}
	repo.db.departments[d.ID] = &d
	for _, s := range repo.db.students {
		if s.DepartmentID == d.ID {
			s.FacultyID = d.FacultyID
		}
	}
	return d, nil
}

func (repo *academicRepository) DeleteDepartment(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.departments[id]; !ok {
		return academic.ErrDepartmentNotFound
	}
	for _, s := range repo.db.students {
		if s.DepartmentID == id {
			return academic.ErrDepartmentInUse
		}
	}
	delete(repo.db.departments, id)
	return nil
}

// Academic years

func (repo *academicRepository) saveYear(y academic.AcademicYear) error {
	for _, other := range repo.db.academicYears {
		if other.ID != y.ID && other.Label == y.Label {
			return academic.ErrYearLabelExists
		}
	}
	if y.IsCurrent {
		for _, other := range repo.db.academicYears {
			if other.ID != y.ID {
				other.IsCurrent = false
			}
		}
	}
	repo.db.academicYears[y.ID] = &y
	return nil
}

func (repo *academicRepository) CreateAcademicYear(_ context.Context, y academic.AcademicYear) (academic.AcademicYear, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.saveYear(y); err != nil {
		return academic.AcademicYear{}, err
	}
	return y, nil
}

func (repo *academicRepository) ListAcademicYears(context.Context) ([]academic.AcademicYear, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	years := make([]academic.AcademicYear, 0, len(repo.db.academicYears))
	for _, y := range repo.db.academicYears {
		years = append(years, *y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].StartYear > years[j].StartYear })
	return years, nil
}

func (repo *academicRepository) GetAcademicYear(_ context.Context, id string) (academic.AcademicYear, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if y, ok := repo.db.academicYears[id]; ok {
		return *y, nil
	}
	return academic.AcademicYear{}, academic.ErrAcademicYearNotFound
}

func (repo *academicRepository) UpdateAcademicYear(_ context.Context, y academic.AcademicYear) (academic.AcademicYear, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.academicYears[y.ID]; !ok {
		return academic.AcademicYear{}, academic.ErrAcademicYearNotFound
	}
	if err := repo.saveYear(y); err != nil {
		return academic.AcademicYear{}, err
	}
	return y, nil
}

func (repo *academicRepository) DeleteAcademicYear(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.academicYears[id]; !ok {
		return academic.ErrAcademicYearNotFound
	}
	for _, s := range repo.db.students {
		if s.AcademicYearID == id {
			return academic.ErrAcademicYearInUse
		}
	}
	delete(repo.db.academicYears, id)
	return nil
}
