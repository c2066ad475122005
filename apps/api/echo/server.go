package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/auth"
	"github.com/trezcool/sistira/core/bank"
	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/exam"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/room"
	"github.com/trezcool/sistira/core/stats"
	"github.com/trezcool/sistira/core/user"
)

type (
	Deps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		UserSvc       *user.Service
		AuthSvc       *auth.Service
		DisciplineSvc *discipline.Service
		QuestionSvc   *question.Service
		BankSvc       *bank.Service
		ExamSvc       *exam.Service
		RoomSvc       *room.Service
		StatsSvc      *stats.Service
	}

	Server struct {
		addr     string
		deps     *Deps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

// NewServer builds the API server. shutdown receives the signals that stop the server;
// a fresh channel is used when it is nil.
func NewServer(addr string, shutdown chan os.Signal, deps *Deps) *Server {
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
	}
	s := &Server{
		addr:     addr,
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: shutdown,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.Server.CORSAllowOrigins,
		AllowCredentials: true,
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	api := s.app.Group("/api")
	authed := newAuthMiddleware(s.deps.AuthSvc, conf.Auth.CookieName, false)
	anonymous := newAuthMiddleware(s.deps.AuthSvc, conf.Auth.CookieName, true)

	registerAuthAPI(api, authed, s.deps.AuthSvc, conf, s.deps.Validate)
	registerUserAPI(api, authed, anonymous, s.deps.UserSvc, s.deps.Validate)
	registerDisciplineAPI(api, authed, s.deps.DisciplineSvc, s.deps.Validate)
	registerQuestionAPI(api, authed, s.deps.QuestionSvc, s.deps.Validate)
	registerBankAPI(api, authed, s.deps.BankSvc, s.deps.Validate)
	registerExamAPI(api, authed, s.deps.ExamSvc, s.deps.Validate)
	registerRoomAPI(api, authed, s.deps.RoomSvc, s.deps.Validate)
	registerStatsAPI(api, authed, s.deps.StatsSvc)
}

// Start listens on the server address. Failures are sent to Errors.
func (s *Server) Start() {
	srv := &http.Server{
		Addr:         s.addr,
		ReadTimeout:  s.deps.Conf.Server.ReadTimeout,
		WriteTimeout: s.deps.Conf.Server.WriteTimeout,
	}
	if err := s.app.StartServer(srv); err != nil && err != http.ErrServerClosed {
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

// signalShutdown asks the main goroutine to gracefully stop the server.
func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to SisTIRA API!")
}
