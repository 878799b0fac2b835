// Package verification backs the public certificate verification portal.
package verification

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/core/cache"
	"github.com/trezcool/registrar/core/student"
)

var (
	errNoCertificateID = errors.New("certificate id is required")

	msgUnknownCertificate = "no student record holds this certificate"
	msgRevoked            = "this certificate belongs to a withdrawn student"
)

// Result is what the public portal shows. Unknown certificates are not errors: they yield Valid=false.
type Result struct {
	Valid          bool           `json:"valid"`
	CertificateID  string         `json:"certificate_id"`
	RegistrationID string         `json:"registration_id,omitempty"`
	FullName       string         `json:"full_name,omitempty"`
	Department     string         `json:"department,omitempty"`
	Faculty        string         `json:"faculty,omitempty"`
	AcademicYear   string         `json:"academic_year,omitempty"`
	GPA            float64        `json:"gpa,omitempty"`
	Grade          string         `json:"grade,omitempty"`
	Status         student.Status `json:"status,omitempty"`
	Message        string         `json:"message,omitempty"`
	VerifiedAt     time.Time      `json:"verified_at"`
}

type (
	Students interface {
		GetByCertificateID(ctx context.Context, certID string) (student.Student, error)
	}

	Academics interface {
		GetDepartment(ctx context.Context, id string) (academic.Department, error)
		GetFaculty(ctx context.Context, id string) (academic.Faculty, error)
		GetAcademicYear(ctx context.Context, id string) (academic.AcademicYear, error)
	}

	Service struct {
		students  Students
		academics Academics
		results   *cache.Namespace[Result]
	}
)

func NewService(students Students, academics Academics, reg *cache.Registry, ttl time.Duration) *Service {
	return &Service{
		students:  students,
		academics: academics,
		results:   cache.NewNamespace[Result](reg, cache.Verification, ttl),
	}
}

// Verify looks a certificate up. Negative results are cached too.
func (svc *Service) Verify(ctx context.Context, certID string) (Result, error) {
	certID = strings.ToUpper(core.CleanString(certID))
	if certID == "" {
		return Result{}, core.NewValidationError(errNoCertificateID,
			core.FieldError{Field: "certificate_id", Error: errNoCertificateID.Error()})
	}
	return svc.results.GetOrLoad(ctx, certID, func(ctx context.Context) (Result, error) {
		return svc.verify(ctx, certID)
	})
}

func (svc *Service) verify(ctx context.Context, certID string) (Result, error) {
	res := Result{CertificateID: certID, VerifiedAt: time.Now().UTC()}

	s, err := svc.students.GetByCertificateID(ctx, certID)
	if err != nil {
		if core.IsNotFound(err) {
			res.Message = msgUnknownCertificate
			return res, nil
		}
		return Result{}, errors.Wrap(err, "getting student by certificate id")
	}

	dept, err := svc.academics.GetDepartment(ctx, s.DepartmentID)
	if err != nil {
		return Result{}, errors.Wrap(err, "getting department")
	}
	fac, err := svc.academics.GetFaculty(ctx, s.FacultyID)
	if err != nil {
		return Result{}, errors.Wrap(err, "getting faculty")
	}
	year, err := svc.academics.GetAcademicYear(ctx, s.AcademicYearID)
	if err != nil {
		return Result{}, errors.Wrap(err, "getting academic year")
	}

	res.Valid = s.Status != student.StatusWithdrawn
	if !res.Valid {
		res.Message = msgRevoked
	}
	res.RegistrationID = s.RegistrationID
	res.FullName = s.FullName
	res.Department = dept.Name
	res.Faculty = fac.Name
	res.AcademicYear = year.Label
	res.GPA = s.GPA
	res.Grade = s.Grade
	res.Status = s.Status
	return res, nil
}
