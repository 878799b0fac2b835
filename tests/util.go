// Package testutil builds an in-memory registrar stack and fixtures for tests.
package testutil

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/registrar/apps/api/echo"
	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/core/audit"
	"github.com/trezcool/registrar/core/cache"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/importer"
	"github.com/trezcool/registrar/core/student"
	"github.com/trezcool/registrar/core/verification"
	storagesvc "github.com/trezcool/registrar/services/storage"
	inmemdb "github.com/trezcool/registrar/storage/database/inmem"
)

// Stack is a fully wired registrar backed by memory.
type Stack struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Blobs      *storagesvc.MemoryStore
	Clock      *cache.ManualClock
	Registry   *cache.Registry
	Refresher  *cache.Refresher
	Validate   *validator.Validate
	Translator ut.Translator

	Academics   academic.Repository
	Students    student.Repository
	AuditSvc    *audit.Service
	AcademicSvc *academic.Service
	DocumentSvc *document.Service
	StudentSvc  *student.Service
	VerifySvc   *verification.Service
	ImporterSvc *importer.Service
}

// Config returns the test configuration.
func Config() *core.Config {
	return &core.Config{
		Env:      "TEST",
		AppName:  "Registrar",
		TestMode: true,
		Server:   core.ServerConfig{DisableReqLogs: true},
		Storage:  core.StorageConfig{Driver: "memory"},
		Cache: core.CacheConfig{
			AcademicTTL:      15 * time.Minute,
			StudentListTTL:   2 * time.Minute,
			StudentDetailTTL: 10 * time.Minute,
			VerificationTTL:  5 * time.Minute,
			AuditTTL:         time.Minute,
			DocumentTTL:      5 * time.Minute,
			StaleFraction:    0.8,
			RefreshWorkers:   2,
			RefreshQueueSize: 16,
			SweepSchedule:    "@every 5m",
		},
		Import: core.ImportConfig{
			UploadConcurrency: 3,
			MaxUploadSize:     5 << 20,
			MaxZipEntrySize:   1 << 20,
		},
	}
}

// NewValidator returns a validator with every custom tag and its english translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	document.InitValidators(validate, translator)
	return validate, translator
}

// NewStack wires every service on in-memory storage. The refresher is stopped on cleanup.
func NewStack(t *testing.T) *Stack {
	t.Helper()
	return NewStackWithBlobs(t, nil)
}

// NewStackWithBlobs is NewStack with the document blob store wrapped by wrap, when given.
func NewStackWithBlobs(t *testing.T, wrap func(*storagesvc.MemoryStore) document.BlobStore) *Stack {
	t.Helper()
	conf := Config()
	s := &Stack{
		Conf:  conf,
		DB:    inmemdb.Open(),
		Blobs: storagesvc.NewMemoryStore(),
		Clock: cache.NewManualClock(time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)),
	}
	s.Validate, s.Translator = NewValidator()
	s.Registry = cache.NewRegistry(s.Clock)
	s.Refresher = cache.NewRefresher(conf.Cache.RefreshWorkers, conf.Cache.RefreshQueueSize, nil)
	t.Cleanup(s.Refresher.Stop)

	logger := core.NopLogger{}
	inv := cache.NewInvalidator(s.Registry, nil, logger)

	s.Academics = inmemdb.NewAcademicRepository(s.DB)
	studentRepo := inmemdb.NewStudentRepository(s.DB)
	s.Students = studentRepo

	s.AuditSvc = audit.NewService(inmemdb.NewAuditRepository(s.DB), s.Registry, conf.Cache.AuditTTL, inv, logger)
	s.AcademicSvc = academic.NewService(s.Academics, s.Registry, conf.Cache.AcademicTTL, inv, s.AuditSvc)
	var blobs document.BlobStore = s.Blobs
	if wrap != nil {
		blobs = wrap(s.Blobs)
	}
	s.DocumentSvc = document.NewService(
		inmemdb.NewDocumentRepository(s.DB), blobs, studentRepo,
		s.Registry, conf.Cache.DocumentTTL, conf.Import.MaxUploadSize, inv, s.AuditSvc,
	)
	s.StudentSvc = student.NewService(
		studentRepo, s.AcademicSvc, s.DocumentSvc,
		s.Registry, conf.Cache, s.Refresher, inv, s.AuditSvc,
	)
	s.VerifySvc = verification.NewService(s.StudentSvc, s.AcademicSvc, s.Registry, conf.Cache.VerificationTTL)
	s.ImporterSvc = importer.NewService(s.StudentSvc, s.AcademicSvc, s.DocumentSvc, s.AuditSvc, logger, conf.Import)
	return s
}

// APIDeps wires the stack into the HTTP layer.
func (s *Stack) APIDeps() *echoapi.Deps {
	return &echoapi.Deps{
		Logger:      core.NopLogger{},
		Validate:    s.Validate,
		Translator:  s.Translator,
		Registry:    s.Registry,
		AcademicSvc: s.AcademicSvc,
		StudentSvc:  s.StudentSvc,
		DocumentSvc: s.DocumentSvc,
		AuditSvc:    s.AuditSvc,
		VerifySvc:   s.VerifySvc,
		ImporterSvc: s.ImporterSvc,
	}
}

func CreateFaculty(t *testing.T, repo academic.Repository, code, name string) academic.Faculty {
	t.Helper()
	now := time.Now().UTC()
	f, err := repo.CreateFaculty(context.Background(), academic.Faculty{
		ID:        code + "-faculty",
		Code:      code,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateFaculty() failed: %v", err)
	}
	return f
}

func CreateDepartment(t *testing.T, repo academic.Repository, faculty academic.Faculty, code, name string) academic.Department {
	t.Helper()
	now := time.Now().UTC()
	d, err := repo.CreateDepartment(context.Background(), academic.Department{
		ID:        code + "-department",
		FacultyID: faculty.ID,
		Code:      code,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateDepartment() failed: %v", err)
	}
	return d
}

func CreateAcademicYear(t *testing.T, repo academic.Repository, startYear int, current bool) academic.AcademicYear {
	t.Helper()
	now := time.Now().UTC()
	label := strconv.Itoa(startYear) + "-" + strconv.Itoa(startYear+1)
	y, err := repo.CreateAcademicYear(context.Background(), academic.AcademicYear{
		ID:        label + "-year",
		Label:     label,
		StartYear: startYear,
		EndYear:   startYear + 1,
		IsCurrent: current,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateAcademicYear() failed: %v", err)
	}
	return y
}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	dept academic.Department,
	year academic.AcademicYear,
	regID, certID, name string,
	status student.Status,
	createdAt ...time.Time,
) student.Student {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	s, err := repo.CreateStudent(context.Background(), student.Student{
		ID:             regID + "-student",
		RegistrationID: regID,
		CertificateID:  certID,
		FullName:       name,
		DepartmentID:   dept.ID,
		FacultyID:      dept.FacultyID,
		AcademicYearID: year.ID,
		GPA:            3.2,
		Status:         status,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}
