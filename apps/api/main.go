package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/coursemate/apps/api/echo"
	"github.com/trezcool/coursemate/core"
	"github.com/trezcool/coursemate/core/course"
	"github.com/trezcool/coursemate/core/recommend"
	"github.com/trezcool/coursemate/core/user"
	"github.com/trezcool/coursemate/services/email"
	"github.com/trezcool/coursemate/services/logger"
	"github.com/trezcool/coursemate/services/metrics"
	"github.com/trezcool/coursemate/storage/cache"
	"github.com/trezcool/coursemate/storage/csvstore"
	"github.com/trezcool/coursemate/storage/database"
	"github.com/trezcool/coursemate/storage/database/inmem"
	"github.com/trezcool/coursemate/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(os.Stdout, conf)
	logger.Enable(!conf.Debug)

	logger.Info(fmt.Sprintf("Application initializing: %s", conf))
	defer logger.Info("Application stopped")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up users storage
	usrRepo, closeDB, err := setUpUserRepository(ctx, conf)
	if err != nil {
		logger.Fatal("setting up database", err)
	}
	defer closeDB()

	// set up recommendations cache
	recCache, closeCache := setUpCache(ctx, conf, logger)
	defer closeCache()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(usrRepo, mailSvc, conf)

	courseStore, err := csvstore.NewCourseStore(conf.Catalog.CoursesPath)
	if err != nil {
		logger.Fatal("loading courses catalog", err)
	}
	courseSvc := course.NewService(courseStore, conf)

	m := metricsvc.New()
	recSvc := recommend.NewService(recommend.ConfigFrom(conf), recCache, m, logger)
	if _, err = recSvc.Load(ctx, conf.Recommender.TrainOnStart); err != nil {
		// the API still serves the catalog; recommendations answer 503 until an admin trains a model
		logger.Error("loading recommendation model", err)
	}

	// =========================================================================
	// Initialize App

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error("debug server closed", err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Conf:   conf,
		Logger: logger,
		Shutdown: func() {
			shutdown <- syscall.SIGTERM
		},
		UserSvc:    usrSvc,
		CourseSvc:  courseSvc,
		RecSvc:     recSvc,
		Metrics:    m,
		Validate:   validate,
		Translator: translator,
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening on " + conf.Server.Address)
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		logger.Fatal("server error", err)

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		if err = server.Stop(sctx); err != nil {
			logger.Error("could not stop server gracefully", err)
		}
	}
}

// setUpUserRepository returns the postgres repository, or the in-memory one in TEST mode.
func setUpUserRepository(ctx context.Context, conf *core.Config) (user.Repository, func(), error) {
	if conf.TestMode {
		return inmemdb.NewUserRepository(inmemdb.Open()), func() {}, nil
	}

	db, err := setUpDB(ctx, conf)
	if err != nil {
		return nil, nil, err
	}
	return sqlxrepos.NewUserRepository(db), func() { _ = db.Close() }, nil
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// setUpCache connects to redis when an address is configured and falls back to process memory.
func setUpCache(ctx context.Context, conf *core.Config, logger core.Logger) (recommend.ResultCache, func()) {
	if conf.Cache.RedisAddress != "" {
		client, err := cache.NewRedisClient(ctx, conf.Cache)
		if err == nil {
			c := cache.NewRedisCache(client, conf.Cache.TTL)
			return c, func() { _ = c.Close() }
		}
		logger.Warn("redis unavailable, caching in memory", errors.Wrap(err, "connecting to redis"))
	}
	c := cache.NewMemoryCache(conf.Cache.TTL)
	return c, func() { _ = c.Close() }
}
