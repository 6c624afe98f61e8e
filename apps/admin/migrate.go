package main

import (
	"errors"

	"github.com/neuromagic/academy/storage/database"
)

var (
	gooseRunFunc = database.Migrate // mockable

	errNoSQL = errors.New("migrations need the postgres database engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQL
	}
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}
