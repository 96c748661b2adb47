package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
	cachesvc "github.com/trezcool/academia/services/cache"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/services/telemetry"
	"github.com/trezcool/academia/services/worker"
	"github.com/trezcool/academia/storage/database"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx := context.Background()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up tracing
	shutdownTracing, err := telemetry.Setup(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up tracing: %v", err), err)
	}
	defer func() {
		if err = shutdownTracing(context.Background()); err != nil {
			logger.Error(fmt.Sprintf("flushing traces: %v", err), err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, os.Stdout)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
	}

	cache, closeCache, err := cachesvc.New(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up cache: %v", err), err)
	}
	defer func() {
		if err = closeCache(); err != nil {
			logger.Error(fmt.Sprintf("closing cache: %v", err), err)
		}
	}()

	pool := worker.NewPool(conf.Worker.Concurrency, conf.Worker.QueueSize, logger)
	go func() {
		_ = pool.Run(context.Background())
	}()
	defer func() {
		pool.Close()
		pool.Wait()
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	grade.InitValidators(validate, translator)

	usrRepo := sqlxrepos.NewUserRepository(db)
	courseRepo := sqlxrepos.NewCourseRepository(db)
	gradeRepo := sqlxrepos.NewGradeRepository(db)
	attendanceRepo := sqlxrepos.NewAttendanceRepository(db)

	usrSvc := user.NewService(usrRepo, cache, validate, logger)
	scopes := access.NewResolver(usrSvc)
	dispatcher := notification.NewDispatcher(notification.Deps{
		Repo:        sqlxrepos.NewNotificationRepository(db),
		Users:       usrRepo,
		Grades:      gradeRepo,
		Attendances: attendanceRepo,
		Mail:        mailSvc,
		Queue:       pool,
		Scopes:      scopes,
		Validate:    validate,
		Logger:      logger,
	})
	bus := core.NewEventBus(core.NewAuditHandler(logger), dispatcher.HandleEvent)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			UserSvc:       usrSvc,
			CourseSvc:     course.NewService(courseRepo, usrRepo, cache, course.TTLsFromConfig(conf.Cache), validate, logger),
			GradeSvc:      grade.NewService(gradeRepo, usrRepo, courseRepo, scopes, bus, validate, logger),
			AttendanceSvc: attendance.NewService(attendanceRepo, usrRepo, courseRepo, scopes, bus, validate, logger),
			Notifier:      dispatcher,
			Validate:      validate,
			Translator:    translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, conf.Database.Engine); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
