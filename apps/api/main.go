package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	echoapi "github.com/recedu/reconline/apps/api/echo"
	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/assignment"
	"github.com/recedu/reconline/core/attendance"
	"github.com/recedu/reconline/core/chat"
	"github.com/recedu/reconline/core/course"
	"github.com/recedu/reconline/core/errbus"
	"github.com/recedu/reconline/core/forum"
	"github.com/recedu/reconline/core/provider"
	"github.com/recedu/reconline/core/realtime"
	"github.com/recedu/reconline/core/user"
	aisvc "github.com/recedu/reconline/services/ai"
	emailsvc "github.com/recedu/reconline/services/email"
	logsvc "github.com/recedu/reconline/services/logger"
	pushsvc "github.com/recedu/reconline/services/push"
	speechsvc "github.com/recedu/reconline/services/speech"
	"github.com/recedu/reconline/storage/database"
	"github.com/recedu/reconline/storage/database/sqlxrepos"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// realtime store: in-process hub, fanned out over redis when configured
	hub := realtime.NewHub()
	var store realtime.Store = hub
	var writer realtime.Writer = realtime.LocalWriter{Hub: hub}
	if conf.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(conf.Redis.URL)
		if err != nil {
			logger.Fatal(fmt.Sprintf("parsing redis url: %v", err), err)
		}
		rstore, err := realtime.NewRedisStore(redis.NewClient(redisOpts), hub)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer rstore.Close()
		store = rstore
		writer = rstore
	}

	bundle, err := provider.Init(provider.Options{
		Conf:   conf,
		Logger: logger,
		OpenDB: func(*core.Config) (*sqlx.DB, error) { return db, nil },
		Store:  store,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("initializing provider: %v", err), err)
	}

	// denied subscriptions surface here rather than in handler return paths
	bundle.Bus.Subscribe(func(perr *errbus.PermissionError) {
		logger.Warn(perr.Error(), perr.Err)
	})

	var mailSvc core.EmailService
	if conf.SendgridAPIKey != "" && !conf.Debug {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	} else {
		mailSvc = emailsvc.NewConsoleService(conf)
	}

	var pushSvc pushsvc.Notifier
	if conf.Push.Endpoint != "" {
		pushSvc = pushsvc.NewHTTPNotifier(conf, logger)
	} else {
		pushSvc = pushsvc.NewConsoleNotifier(logger)
	}

	completer := aisvc.NewCompleter(conf)

	deps := echoapi.ServerDeps{
		Conf:   conf,
		Logger: logger,

		UserSvc:       user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf),
		CourseSvc:     course.NewService(sqlxrepos.NewCourseRepository(db), conf),
		AssignmentSvc: assignment.NewService(sqlxrepos.NewAssignmentRepository(db), conf),
		AttendanceSvc: attendance.NewService(sqlxrepos.NewAttendanceRepository(db), conf),
		ForumSvc:      forum.NewService(sqlxrepos.NewForumRepository(db), conf),
		ChatSvc:       chat.NewService(sqlxrepos.NewChatRepository(db), writer, conf),

		Store: store,
		Bus:   bundle.Bus,

		Tutor:   aisvc.NewTutor(completer),
		Grammar: aisvc.NewGrammarChecker(completer),
		Speech:  speechsvc.NewDedupCache(speechsvc.NewSynthesizer(conf)),
		Push:    pushSvc,
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	deps.Validate = validate
	deps.Translator = translator

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
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(deps)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
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
	if err = database.Ping(db); err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
