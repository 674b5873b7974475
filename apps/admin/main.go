package main

import (
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/coursemate/core"
	"github.com/trezcool/coursemate/services/logger"
	"github.com/trezcool/coursemate/storage/database"
	"github.com/trezcool/coursemate/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(os.Stderr, conf)
	logger.Enable(!conf.Debug)

	cli := newCommandLine(conf, os.Stdout)
	cli.connect = func() error {
		if err := database.CreateIfNotExist(conf); err != nil {
			return err
		}
		db, err := database.Open(conf)
		if err != nil {
			return errors.Wrap(err, "setting up database")
		}
		cli.db = db.DB
		cli.usrRepo = sqlxrepos.NewUserRepository(db)
		return nil
	}

	err := cli.run(os.Args)
	if cli.db != nil {
		_ = cli.db.Close()
	}
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
