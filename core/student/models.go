package student

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/core/document"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusGraduated Status = "graduated"
	StatusSuspended Status = "suspended"
	StatusWithdrawn Status = "withdrawn"
)

var Statuses = []Status{StatusActive, StatusGraduated, StatusSuspended, StatusWithdrawn}

// ParseStatus is case-insensitive. An empty status defaults to StatusActive.
func ParseStatus(s string) (Status, bool) {
	s = core.CleanString(s, true /* lower */)
	if s == "" {
		return StatusActive, true
	}
	for _, st := range Statuses {
		if s == string(st) {
			return st, true
		}
	}
	return "", false
}

type Student struct {
	ID             string    `json:"id" db:"id"`
	RegistrationID string    `json:"registration_id" db:"registration_id"`
	CertificateID  string    `json:"certificate_id,omitempty" db:"certificate_id"`
	FullName       string    `json:"full_name" db:"full_name"`
	DepartmentID   string    `json:"department_id" db:"department_id"`
	FacultyID      string    `json:"faculty_id" db:"faculty_id"`
	AcademicYearID string    `json:"academic_year_id" db:"academic_year_id"`
	GPA            float64   `json:"gpa" db:"gpa"`
	Grade          string    `json:"grade,omitempty" db:"grade"`
	Status         Status    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// Detail is a student with everything the detail page shows.
type Detail struct {
	Student
	Department   academic.Department   `json:"department"`
	Faculty      academic.Faculty      `json:"faculty"`
	AcademicYear academic.AcademicYear `json:"academic_year"`
	Documents    []document.Document   `json:"documents"`
}

// Identity is what bulk imports compare against.
type Identity struct {
	ID             string `json:"id" db:"id"`
	RegistrationID string `json:"registration_id" db:"registration_id"`
	CertificateID  string `json:"certificate_id,omitempty" db:"certificate_id"`
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	RegistrationID string  `json:"registration_id" validate:"required,regid"`
	CertificateID  string  `json:"certificate_id" validate:"omitempty,max=50"`
	FullName       string  `json:"full_name" validate:"required,max=200"`
	DepartmentID   string  `json:"department_id" validate:"required"`
	AcademicYearID string  `json:"academic_year_id" validate:"required"`
	GPA            float64 `json:"gpa" validate:"gte=0,lte=4"`
	Grade          string  `json:"grade" validate:"omitempty,max=20"`
	Status         Status  `json:"status" validate:"omitempty,studentstatus"`
}

func (ns *NewStudent) Clean() {
	ns.RegistrationID = core.CleanRegistrationID(ns.RegistrationID)
	ns.CertificateID = strings.ToUpper(core.CleanString(ns.CertificateID))
	ns.FullName = core.CleanString(ns.FullName)
	ns.DepartmentID = core.CleanString(ns.DepartmentID)
	ns.AcademicYearID = core.CleanString(ns.AcademicYearID)
	ns.Grade = core.CleanString(ns.Grade)
	ns.Status = Status(core.CleanString(string(ns.Status), true /* lower */))
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Clean()
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Empty (nil) fields keep their current value.
type UpdateStudent struct {
	RegistrationID string   `json:"registration_id" validate:"omitempty,regid"`
	CertificateID  *string  `json:"certificate_id" validate:"omitempty,max=50"`
	FullName       string   `json:"full_name" validate:"omitempty,max=200"`
	DepartmentID   string   `json:"department_id"`
	AcademicYearID string   `json:"academic_year_id"`
	GPA            *float64 `json:"gpa" validate:"omitempty,gte=0,lte=4"`
	Grade          *string  `json:"grade" validate:"omitempty,max=20"`
	Status         Status   `json:"status" validate:"omitempty,studentstatus"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.RegistrationID = core.CleanRegistrationID(us.RegistrationID)
	if us.CertificateID != nil {
		cert := strings.ToUpper(core.CleanString(*us.CertificateID))
		us.CertificateID = &cert
	}
	us.FullName = core.CleanString(us.FullName)
	us.DepartmentID = core.CleanString(us.DepartmentID)
	us.AcademicYearID = core.CleanString(us.AcademicYearID)
	us.Status = Status(core.CleanString(string(us.Status), true /* lower */))
	return validate.Struct(us)
}

// apply returns orig modified by us.
func (us UpdateStudent) apply(orig Student) Student {
	s := orig
	if us.RegistrationID != "" {
		s.RegistrationID = us.RegistrationID
	}
	if us.CertificateID != nil {
		s.CertificateID = *us.CertificateID
	}
	if us.FullName != "" {
		s.FullName = us.FullName
	}
	if us.DepartmentID != "" {
		s.DepartmentID = us.DepartmentID
	}
	if us.AcademicYearID != "" {
		s.AcademicYearID = us.AcademicYearID
	}
	if us.GPA != nil {
		s.GPA = *us.GPA
	}
	if us.Grade != nil {
		s.Grade = core.CleanString(*us.Grade)
	}
	if us.Status != "" {
		s.Status = us.Status
	}
	return s
}

type QueryFilter struct {
	Search         string `query:"search"`
	DepartmentID   string `query:"department_id"`
	FacultyID      string `query:"faculty_id"`
	AcademicYearID string `query:"academic_year_id"`
	Status         Status `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.DepartmentID = core.CleanString(qf.DepartmentID)
	qf.FacultyID = core.CleanString(qf.FacultyID)
	qf.AcademicYearID = core.CleanString(qf.AcademicYearID)
	qf.Status = Status(core.CleanString(string(qf.Status), true /* lower */))
}

func (qf QueryFilter) IsEmpty() bool {
	return qf == QueryFilter{}
}

// Key is a stable cache key for the filter.
func (qf QueryFilter) Key() string {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("search", strings.ToLower(qf.Search))
	set("department_id", qf.DepartmentID)
	set("faculty_id", qf.FacultyID)
	set("academic_year_id", qf.AcademicYearID)
	set("status", string(qf.Status))
	return v.Encode()
}

// Matches applies the filter to s. Search is a case-insensitive match on the registration ID,
// certificate ID or full name.
func (qf QueryFilter) Matches(s Student) bool {
	if qf.DepartmentID != "" && s.DepartmentID != qf.DepartmentID {
		return false
	}
	if qf.FacultyID != "" && s.FacultyID != qf.FacultyID {
		return false
	}
	if qf.AcademicYearID != "" && s.AcademicYearID != qf.AcademicYearID {
		return false
	}
	if qf.Status != "" && s.Status != qf.Status {
		return false
	}
	if qf.Search != "" {
		search := strings.ToLower(qf.Search)
		return strings.Contains(strings.ToLower(s.RegistrationID), search) ||
			strings.Contains(strings.ToLower(s.CertificateID), search) ||
			strings.Contains(strings.ToLower(s.FullName), search)
	}
	return true
}
