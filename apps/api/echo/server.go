// Package echoapi serves the JSON API over echo.
package echoapi

import (
	"context"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/coursemate/core"
	"github.com/trezcool/coursemate/core/course"
	"github.com/trezcool/coursemate/core/recommend"
	"github.com/trezcool/coursemate/core/user"
	metricsvc "github.com/trezcool/coursemate/services/metrics"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool
		Shutdown       func() // called on shutdown errors

		UserSvc    *user.Service
		CourseSvc  *course.Service
		RecSvc     *recommend.Service
		Metrics    *metricsvc.Metrics
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts    *Options
		app     *echo.Echo
		limiter *ipRateLimiter
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.Shutdown == nil {
		opts.Shutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
		limiter: newIPRateLimiter(
			opts.Conf.Server.LoginRateLimit,
			opts.Conf.Server.LoginRateWindow,
		),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if s.opts.Metrics != nil {
		s.app.Use(metricsMiddleware(s.opts.Metrics))
	}
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.Shutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	if s.opts.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.opts.Metrics.Handler()))
	}

	auth := newAuthenticator(conf, s.opts.UserSvc)
	jwt := auth.middleware()
	v1 := s.app.Group("/v1")

	registerUserAPI(v1, &userApi{
		svc:      s.opts.UserSvc,
		auth:     auth,
		validate: s.opts.Validate,
		logger:   s.opts.Logger,
	}, s.limiter.middleware())
	registerCourseAPI(v1, &courseApi{svc: s.opts.CourseSvc})
	registerRecommendationAPI(v1, jwt, &recommendationApi{
		svc:       s.opts.RecSvc,
		courseSvc: s.opts.CourseSvc,
		userSvc:   s.opts.UserSvc,
	})
	registerAdminAPI(v1, jwt, &adminApi{
		courseSvc: s.opts.CourseSvc,
		userSvc:   s.opts.UserSvc,
		recSvc:    s.opts.RecSvc,
		validate:  s.opts.Validate,
	})

	go s.limiter.startCleanup(5 * time.Minute)
}

func (s *server) Start() error {
	err := s.app.Start(s.opts.Conf.Server.Address)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *server) Stop(ctx context.Context) error {
	s.limiter.Stop()
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
