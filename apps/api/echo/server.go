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

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/assignment"
	"github.com/recedu/reconline/core/attendance"
	"github.com/recedu/reconline/core/chat"
	"github.com/recedu/reconline/core/course"
	"github.com/recedu/reconline/core/errbus"
	"github.com/recedu/reconline/core/forum"
	"github.com/recedu/reconline/core/realtime"
	"github.com/recedu/reconline/core/user"
	aisvc "github.com/recedu/reconline/services/ai"
	pushsvc "github.com/recedu/reconline/services/push"
	speechsvc "github.com/recedu/reconline/services/speech"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc       *user.Service
		CourseSvc     *course.Service
		AssignmentSvc *assignment.Service
		AttendanceSvc *attendance.Service
		ForumSvc      *forum.Service
		ChatSvc       *chat.Service

		Store realtime.Store
		Bus   *errbus.Bus

		Tutor   *aisvc.Tutor
		Grammar *aisvc.GrammarChecker
		Speech  speechsvc.Synthesizer
		Push    pushsvc.Notifier

		DisableReqLogs bool
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
	signal.Notify(s.shutdown, syscall.SIGINT, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	registerUserAPI(v1, jwt, s.deps)
	registerCourseAPI(v1, jwt, s.deps)
	registerAssignmentAPI(v1, jwt, s.deps)
	registerAttendanceAPI(v1, jwt, s.deps)
	registerForumAPI(v1, jwt, s.deps)
	registerChatAPI(v1, jwt, s.deps)
	registerAIAPI(v1, jwt, s.deps)
	registerPushAPI(v1, jwt, s.deps)
}

func (s *Server) Start() {
	addr := s.deps.Conf.Server.Host + ":" + s.deps.Conf.Server.Port
	if err := s.app.Start(addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors reports a failed listener. The server is unusable afterwards.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal delivers OS termination signals and internal shutdown
// requests raised by the error handler.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown requests a graceful shutdown without an OS signal.
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
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
	return ctx.String(http.StatusOK, "Welcome to REC Online API!")
}
