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

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/access"
	"github.com/MarMar-mg/school-managment-system-sub000/core/assessment"
	"github.com/MarMar-mg/school-managment-system-sub000/core/grading"
	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
	"github.com/MarMar-mg/school-managment-system-sub000/core/roster"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
	"github.com/MarMar-mg/school-managment-system-sub000/core/score"
	"github.com/MarMar-mg/school-managment-system-sub000/core/stats"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
	metricsvc "github.com/MarMar-mg/school-managment-system-sub000/services/metrics"
	"github.com/MarMar-mg/school-managment-system-sub000/services/ratelimit"
)

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Limiter    ratelimit.Limiter
		Metrics    *metricsvc.Prometheus // optional

		UserSvc         user.Service
		Resolver        access.Resolver
		SchoolSvc       school.Service
		RosterSvc       roster.Service
		AssessmentSvc   assessment.Service
		GradingSvc      grading.Service
		ScoreSvc        score.Service
		StatsSvc        stats.Service
		NotificationSvc notification.Service
	}

	Server struct {
		deps     *Deps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps *Deps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.UserSvc, deps.Resolver),
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
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(s.deps.Metrics.Middleware())
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.auth, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)
	authed := []echo.MiddlewareFunc{jwt, s.auth.actorMiddleware}
	throttle := rateLimitMiddleware(s.deps.Limiter, s.deps.Logger)

	registerUserAPI(v1, s.auth, s.deps.UserSvc, s.deps.Validate, throttle, jwt)
	registerProfileAPI(v1, authed, s.deps.SchoolSvc)
	registerSchoolAPI(v1, authed, s.deps.SchoolSvc, s.deps.RosterSvc, s.deps.Validate, conf.Server.MaxUploadSize)
	registerAssessmentAPI(v1, authed, assessment.KindExam, s.deps.AssessmentSvc, s.deps.GradingSvc, s.deps.Validate)
	registerAssessmentAPI(v1, authed, assessment.KindExercise, s.deps.AssessmentSvc, s.deps.GradingSvc, s.deps.Validate)
	registerScoreAPI(v1, authed, s.deps.ScoreSvc, s.deps.StatsSvc, s.deps.Validate)
	registerStatsAPI(v1, authed, s.deps.StatsSvc)
	registerNotificationAPI(v1, authed, s.deps.NotificationSvc)
}

// Start blocks until the server stops. Failures are reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error            { return s.errors }
func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
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

// Token signs a fresh token for usr.
func (s *Server) Token(usr user.User) (string, error) {
	return s.auth.generateToken(s.auth.userClaims(usr))
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the School API!")
}
