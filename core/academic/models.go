package academic

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/registrar/core"
)

type Faculty struct {
	ID        string    `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type Department struct {
	ID        string    `json:"id" db:"id"`
	FacultyID string    `json:"faculty_id" db:"faculty_id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type AcademicYear struct {
	ID        string    `json:"id" db:"id"`
	Label     string    `json:"label" db:"label"` // e.g. 2023-2024
	StartYear int       `json:"start_year" db:"start_year"`
	EndYear   int       `json:"end_year" db:"end_year"`
	IsCurrent bool      `json:"is_current" db:"is_current"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// FacultyInput creates or replaces a Faculty.
type FacultyInput struct {
	Code string `json:"code" validate:"required,max=10,alphanum"`
	Name string `json:"name" validate:"required,max=200"`
}

func (in *FacultyInput) Validate(validate *validator.Validate) error {
	in.Code = upperCode(in.Code)
	in.Name = core.CleanString(in.Name)
	return validate.Struct(in)
}

// DepartmentInput creates or replaces a Department.
// The department code is the middle part of registration IDs (GRW-<CODE>-<YEAR>).
type DepartmentInput struct {
	FacultyID string `json:"faculty_id" validate:"required"`
	Code      string `json:"code" validate:"required,min=2,max=10,alphanum"`
	Name      string `json:"name" validate:"required,max=200"`
}

func (in *DepartmentInput) Validate(validate *validator.Validate) error {
	in.FacultyID = core.CleanString(in.FacultyID)
	in.Code = upperCode(in.Code)
	in.Name = core.CleanString(in.Name)
	return validate.Struct(in)
}

// AcademicYearInput creates or replaces an AcademicYear.
type AcademicYearInput struct {
	Label     string `json:"label" validate:"required,max=20"`
	StartYear int    `json:"start_year" validate:"required,min=1900,max=3000"`
	EndYear   int    `json:"end_year" validate:"required,gtfield=StartYear,max=3000"`
	IsCurrent bool   `json:"is_current"`
}

func (in *AcademicYearInput) Validate(validate *validator.Validate) error {
	in.Label = core.CleanString(in.Label)
	return validate.Struct(in)
}

func upperCode(code string) string {
	return strings.ToUpper(core.CleanString(code))
}

// MatchDepartment finds a department by code or name (case-insensitive).
func MatchDepartment(depts []Department, ref string) (Department, bool) {
	ref = core.CleanString(ref)
	for _, d := range depts {
		if strings.EqualFold(d.Code, ref) || strings.EqualFold(d.Name, ref) {
			return d, true
		}
	}
	return Department{}, false
}

// MatchAcademicYear finds a year by label (e.g. 2023-2024) or start year (e.g. 2023).
func MatchAcademicYear(years []AcademicYear, ref string) (AcademicYear, bool) {
	ref = core.CleanString(ref)
	for _, y := range years {
		if strings.EqualFold(y.Label, ref) {
			return y, true
		}
	}
	for _, y := range years {
		if ref == strconv.Itoa(y.StartYear) {
			return y, true
		}
	}
	return AcademicYear{}, false
}
