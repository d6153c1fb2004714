package main

import (
	"log"
	"os"

	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/password"
	"github.com/trezcool/cetrack/core/student"
	"github.com/trezcool/cetrack/core/user"
	"github.com/trezcool/cetrack/storage/database"
	gormrepos "github.com/trezcool/cetrack/storage/database/gormdb"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	gdb, err := database.NewGorm(db, conf.Database.Engine, logger)
	errAndDie(err)

	// start CLI
	hasher := password.NewHasher(conf.SecretKey, conf.Auth.PasswordIterations)
	cli := commandLine{
		db:         db,
		usrSvc:     user.NewService(gormrepos.NewUserRepository(gdb), hasher),
		studentSvc: student.NewService(gormrepos.NewStudentRepository(gdb), hasher),
		validate:   core.NewValidator(core.NewTranslator()),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
