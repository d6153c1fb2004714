package main

import (
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	appfs "github.com/trezcool/cetrack/fs"
	"github.com/trezcool/cetrack/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(database.EnginePostgres); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, "migrations", arguments...)
}
