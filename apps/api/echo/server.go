package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/auth"
	"github.com/trezcool/cetrack/core/recitation"
	"github.com/trezcool/cetrack/core/report"
	"github.com/trezcool/cetrack/core/score"
	"github.com/trezcool/cetrack/core/student"
	"github.com/trezcool/cetrack/core/user"
)

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		Tokens        *auth.TokenManager
		AuthSvc       *auth.Service
		UserSvc       *user.Service
		StudentSvc    *student.Service
		ScoreSvc      *score.Service
		RecitationSvc *recitation.Service
		ReportSvc     *report.Service
		Validate      *validator.Validate
		Translator    ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	s.app.Use(middleware.RequestID())
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.health)
	s.app.GET("/health", s.health)

	root := s.app.Group("")
	authed := authMiddleware(s.deps.Tokens)

	registerAuthAPI(root, authed, authApi{
		svc:        s.deps.AuthSvc,
		usrSvc:     s.deps.UserSvc,
		studentSvc: s.deps.StudentSvc,
		validate:   s.deps.Validate,
	})
	registerStudentAPI(root, authed, s.deps.StudentSvc, s.deps.Validate)
	registerScoreAPI(root, authed, s.deps.ScoreSvc, s.deps.Validate)
	registerRecitationAPI(root, authed, s.deps.RecitationSvc, s.deps.Validate)
	registerReportAPI(root, authed, s.deps.ReportSvc, s.deps.ScoreSvc, s.deps.Validate)
}

// Start blocks until the server stops; failures are reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
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

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"status":  "ok",
		"service": s.deps.Conf.AppName,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
	})
}
