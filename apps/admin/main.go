package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/services/worker"
	"github.com/trezcool/academia/storage/database"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, os.Stdout)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
	}

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	usrRepo := sqlxrepos.NewUserRepository(db)
	gradeRepo := sqlxrepos.NewGradeRepository(db)
	// admin commands never change cached emails nor delete users
	usrSvc := user.NewService(usrRepo, nil, validate, logger)

	// start CLI
	cli := commandLine{
		db:     db,
		engine: conf.Database.Engine,
		usrSvc: usrSvc,
		notifier: notification.NewDispatcher(notification.Deps{
			Repo:        sqlxrepos.NewNotificationRepository(db),
			Users:       usrRepo,
			Grades:      gradeRepo,
			Attendances: sqlxrepos.NewAttendanceRepository(db),
			Mail:        mailSvc,
			Queue:       worker.NewSyncQueue(logger),
			Scopes:      access.NewResolver(usrSvc),
			Validate:    validate,
			Logger:      logger,
		}),
		out: os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
