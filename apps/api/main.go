package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	echoapi "github.com/farsihub/backend/apps/api/echo"
	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/catalog"
	"github.com/farsihub/backend/core/identity"
	"github.com/farsihub/backend/core/qna"
	"github.com/farsihub/backend/core/quiz"
	"github.com/farsihub/backend/core/realtime"
	"github.com/farsihub/backend/core/session"
	"github.com/farsihub/backend/core/user"
	emailsvc "github.com/farsihub/backend/services/email"
	logsvc "github.com/farsihub/backend/services/logger"
	"github.com/farsihub/backend/storage/database"
)

// build is the git version of this program, set at build time via -ldflags.
var build = "develop"

func main() {
	conf := core.NewConfig(build)

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if conf.Debug {
		logger = core.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	if err := run(conf, logger); err != nil {
		logger.Fatal("api: fatal", err)
	}
}

func run(conf *core.Config, logger core.Logger) error {
	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer db.Close()

	watcher, err := database.NewWatcher(conf, logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	hub := realtime.NewHub()
	idnSvc := identity.NewService(conf, database.NewIdentityRepository(db), mailSvc)
	usrSvc := user.NewService(database.NewUserRepository(db, watcher))
	sessionMgr := session.NewManager(conf, idnSvc, usrSvc, hub, logger)
	defer sessionMgr.Close()

	catalogSvc := catalog.NewService(database.NewCatalogRepository(db, watcher))
	quizSvc := quiz.NewService(database.NewQuizRepository(db), hub)
	qnaSvc := qna.NewService(database.NewQnaRepository(db, watcher))

	validate, translator := core.NewValidator()
	identity.RegisterValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	catalog.RegisterValidators(validate, translator)

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(
		conf.Server.Address(),
		shutdown,
		&echoapi.Deps{
			Conf:       conf,
			Logger:     logger,
			IdnSvc:     idnSvc,
			UsrSvc:     usrSvc,
			SessionMgr: sessionMgr,
			CatalogSvc: catalogSvc,
			QuizSvc:    quizSvc,
			QnaSvc:     qnaSvc,
			Hub:        hub,
			Validate:   validate,
			Translator: translator,
		},
	)
	go app.Start()
	logger.Info("api: listening", map[string]interface{}{"addr": conf.Server.Address(), "build": conf.Build})

	sig := <-shutdown
	logger.Info("api: shutting down", map[string]interface{}{"signal": sig.String()})

	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	return app.Stop(ctx)
}
