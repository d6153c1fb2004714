package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"

	echoapi "github.com/trezcool/cetrack/apps/api/echo"
	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/auth"
	"github.com/trezcool/cetrack/core/password"
	"github.com/trezcool/cetrack/core/recitation"
	"github.com/trezcool/cetrack/core/report"
	"github.com/trezcool/cetrack/core/score"
	"github.com/trezcool/cetrack/core/student"
	"github.com/trezcool/cetrack/core/user"
	logsvc "github.com/trezcool/cetrack/services/logger"
	"github.com/trezcool/cetrack/storage/database"
	gormrepos "github.com/trezcool/cetrack/storage/database/gormdb"
	sqlxrepos "github.com/trezcool/cetrack/storage/database/sqlxdb"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

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
	db, gdb, sdb, err := setUpDB(conf, dbLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	hasher := password.NewHasher(conf.SecretKey, conf.Auth.PasswordIterations)
	tokens := auth.NewTokenManager(conf.SecretKey, conf.Auth.TokenTTL)
	analytics := sqlxrepos.NewAnalyticsRepository(sdb)

	usrSvc := user.NewService(gormrepos.NewUserRepository(gdb), hasher)
	studentSvc := student.NewService(gormrepos.NewStudentRepository(gdb), hasher)
	scoreSvc := score.NewService(gormrepos.NewScoreRepository(gdb), analytics, studentSvc, conf)
	recitationSvc := recitation.NewService(gormrepos.NewRecitationRepository(gdb), studentSvc, conf)
	reportSvc := report.NewService(analytics)
	authSvc := auth.NewService(usrSvc, studentSvc, tokens)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	logger.Info(conf.String())
	defer logger.Info("Application stopped")

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)

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
			Tokens:        tokens,
			AuthSvc:       authSvc,
			UserSvc:       usrSvc,
			StudentSvc:    studentSvc,
			ScoreSvc:      scoreSvc,
			RecitationSvc: recitationSvc,
			ReportSvc:     reportSvc,
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

// setUpDB opens the shared pool, applies the schema and wraps the pool for both repository layers.
func setUpDB(conf *core.Config, dbLogger *logsvc.RollbarLogger) (*sql.DB, *gorm.DB, *sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, nil, nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, nil, nil, err
	}

	gdb, err := database.NewGorm(db, conf.Database.Engine, dbLogger)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}

	// the goose migrations target postgres; a local sqlite file gets the gorm schema
	if conf.Database.Engine == database.EngineSqlite {
		err = gormrepos.AutoMigrate(gdb)
	} else {
		err = database.Migrate(db)
	}
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return db, gdb, database.NewSqlx(db, conf.Database.Engine), nil
}
