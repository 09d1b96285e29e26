package main

import (
	"github.com/MarMar-mg/school-managment-system-sub000/storage/database"
)

var migrateFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return migrateFunc(cli.db, args[0], arguments...)
}
