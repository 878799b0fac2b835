package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/core/audit"
	"github.com/trezcool/registrar/core/cache"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/importer"
	"github.com/trezcool/registrar/core/student"
	"github.com/trezcool/registrar/core/verification"
)

type (
	// Deps holds everything the routes need.
	Deps struct {
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

	Server struct {
		conf     *core.Config
		deps     *Deps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(conf *core.Config, deps *Deps) *Server {
	s := &Server{
		conf:     conf,
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	if !conf.TestMode {
		signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.Server.ReadTimeout = s.conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = s.conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.conf.Import.MaxUploadSize > 0 {
		s.app.Use(middleware.BodyLimit(bodyLimit(s.conf.Import.MaxUploadSize)))
	}
	s.app.Use(actorMiddleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)

	s.app.GET("/", home)

	g := s.app.Group("/api")
	registerAcademicAPI(g, s.deps.AcademicSvc, s.deps.Validate)
	registerStudentAPI(g, s.deps.StudentSvc, s.deps.DocumentSvc, s.deps.Validate)
	registerDocumentAPI(g, s.deps.DocumentSvc)
	registerAuditAPI(g, s.deps.AuditSvc)
	registerVerificationAPI(g, s.deps.VerifySvc)
	registerImportAPI(g, s.deps.ImporterSvc, s.conf.Import.MaxUploadSize)
	registerCacheAPI(g, s.deps.Registry)
}

func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors reports the error that stopped the server, if any.
func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the main goroutine to stop the server gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Registrar API!")
}
