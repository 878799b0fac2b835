// Package di wires the API server with a dig container.
package di

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/registrar/apps/api/echo"
	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/core/audit"
	"github.com/trezcool/registrar/core/cache"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/importer"
	"github.com/trezcool/registrar/core/student"
	"github.com/trezcool/registrar/core/verification"
	logsvc "github.com/trezcool/registrar/services/logger"
	storagesvc "github.com/trezcool/registrar/services/storage"
	"github.com/trezcool/registrar/storage/database"
	inmemdb "github.com/trezcool/registrar/storage/database/inmem"
	sqlxrepos "github.com/trezcool/registrar/storage/database/sqlx"
)

const engineMemory = "memory"

// DBCloser releases the database, if any.
type DBCloser func() error

type Repositories struct {
	dig.Out
	Academic academic.Repository
	Student  student.Repository
	Resolver document.StudentResolver
	Document document.Repository
	Audit    audit.Repository
	Close    DBCloser
}

type ServerParams struct {
	dig.In
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	Registry    *cache.Registry
	AcademicSvc *academic.Service
	StudentSvc  *student.Service
	DocumentSvc *document.Service
	AuditSvc    *audit.Service
	VerifySvc   *verification.Service
	ImporterSvc *importer.Service
}

func newLogger(conf *core.Config) (*logsvc.RollbarLogger, error) {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger, nil
}

func newRepositories(conf *core.Config, logger core.Logger) (Repositories, error) {
	if conf.Database.Engine == engineMemory {
		logger.Warn("using the in-memory database: data is lost on exit")
		db := inmemdb.Open()
		students := inmemdb.NewStudentRepository(db)
		return Repositories{
			Academic: inmemdb.NewAcademicRepository(db),
			Student:  students,
			Resolver: students,
			Document: inmemdb.NewDocumentRepository(db),
			Audit:    inmemdb.NewAuditRepository(db),
			Close:    func() error { return nil },
		}, nil
	}

	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return Repositories{}, errors.Wrap(err, "setting up database")
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return Repositories{}, err
	}
	if err = database.Migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return Repositories{}, err
	}

	students := sqlxrepos.NewStudentRepository(db)
	return Repositories{
		Academic: sqlxrepos.NewAcademicRepository(db),
		Student:  students,
		Resolver: students,
		Document: sqlxrepos.NewDocumentRepository(db),
		Audit:    sqlxrepos.NewAuditRepository(db),
		Close:    db.Close,
	}, nil
}

func newBlobStore(conf *core.Config) (document.BlobStore, error) {
	return storagesvc.Open(context.Background(), conf.Storage)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newRegistry() *cache.Registry {
	return cache.NewRegistry(cache.SystemClock)
}

func newRefresher(conf *core.Config, logger core.Logger) *cache.Refresher {
	return cache.NewRefresher(conf.Cache.RefreshWorkers, conf.Cache.RefreshQueueSize, func(key string, err error) {
		logger.Warn(fmt.Sprintf("cache: refreshing %s failed", key), err)
	})
}

func newInvalidator(reg *cache.Registry, logger core.Logger) *cache.Invalidator {
	return cache.NewInvalidator(reg, cache.DefaultDependencies(), logger)
}

func newSweeper(conf *core.Config, reg *cache.Registry, logger core.Logger) (*cache.Sweeper, error) {
	return cache.NewSweeper(reg, conf.Cache.SweepSchedule, logger)
}

func newAuditService(conf *core.Config, repo audit.Repository, reg *cache.Registry, inv *cache.Invalidator, logger core.Logger) *audit.Service {
	return audit.NewService(repo, reg, conf.Cache.AuditTTL, inv, logger)
}

func newAcademicService(conf *core.Config, repo academic.Repository, reg *cache.Registry, inv *cache.Invalidator, auditor audit.Recorder) *academic.Service {
	return academic.NewService(repo, reg, conf.Cache.AcademicTTL, inv, auditor)
}

func newDocumentService(
	conf *core.Config,
	repo document.Repository,
	blobs document.BlobStore,
	students document.StudentResolver,
	reg *cache.Registry,
	inv *cache.Invalidator,
	auditor audit.Recorder,
) *document.Service {
	return document.NewService(repo, blobs, students, reg, conf.Cache.DocumentTTL, conf.Import.MaxUploadSize, inv, auditor)
}

func newStudentService(
	conf *core.Config,
	repo student.Repository,
	academics *academic.Service,
	docs *document.Service,
	reg *cache.Registry,
	refresher *cache.Refresher,
	inv *cache.Invalidator,
	auditor audit.Recorder,
) *student.Service {
	return student.NewService(repo, academics, docs, reg, conf.Cache, refresher, inv, auditor)
}

func newVerificationService(conf *core.Config, students *student.Service, academics *academic.Service, reg *cache.Registry) *verification.Service {
	return verification.NewService(students, academics, reg, conf.Cache.VerificationTTL)
}

func newImporterService(
	conf *core.Config,
	students *student.Service,
	academics *academic.Service,
	docs *document.Service,
	auditor audit.Recorder,
	logger core.Logger,
) *importer.Service {
	return importer.NewService(students, academics, docs, auditor, logger, conf.Import)
}

func newDeps(p ServerParams) *echoapi.Deps {
	return &echoapi.Deps{
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		Registry:    p.Registry,
		AcademicSvc: p.AcademicSvc,
		StudentSvc:  p.StudentSvc,
		DocumentSvc: p.DocumentSvc,
		AuditSvc:    p.AuditSvc,
		VerifySvc:   p.VerifySvc,
		ImporterSvc: p.ImporterSvc,
	}
}

// New returns a new dependency injection dig.Container.
// conf is provided as is when not nil (tests); otherwise it is loaded with core.NewConfig.
func New(conf *core.Config) *dig.Container {
	c := dig.New()

	if conf != nil {
		must(c.Provide(func() *core.Config { return conf }))
	} else {
		must(c.Provide(core.NewConfig))
	}
	must(c.Provide(newLogger))
	must(c.Provide(func(l *logsvc.RollbarLogger) core.Logger { return l }))
	must(c.Provide(newRepositories))
	must(c.Provide(newBlobStore))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))

	// cache
	must(c.Provide(newRegistry))
	must(c.Provide(newRefresher))
	must(c.Provide(newInvalidator))
	must(c.Provide(newSweeper))

	// services
	must(c.Provide(newAuditService))
	must(c.Provide(func(s *audit.Service) audit.Recorder { return s }))
	must(c.Provide(newAcademicService))
	must(c.Provide(newDocumentService))
	must(c.Provide(newStudentService))
	must(c.Provide(newVerificationService))
	must(c.Provide(newImporterService))

	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
